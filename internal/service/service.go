// Package service implements the read-side orchestration and registration
// removal between HTTP handlers and the query engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/capacity"
	"github.com/Shivanand-hulikatti/seminars/internal/clock"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/pricing"
	"github.com/Shivanand-hulikatti/seminars/internal/queue"
	"github.com/Shivanand-hulikatti/seminars/internal/repository"
	"github.com/Shivanand-hulikatti/seminars/internal/requirement"
	"github.com/Shivanand-hulikatti/seminars/internal/scope"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventStore reads single events and updates their reminder flags.
type EventStore interface {
	bag.Source[*model.Event]
	GetByID(ctx context.Context, uid int64) (*model.Event, error)
	MarkCancelationReminderSent(ctx context.Context, uid int64) error
	MarkTakesPlaceReminderSent(ctx context.Context, uid int64) error
}

// RegistrationFinder resolves public registration references.
type RegistrationFinder interface {
	GetByRef(ctx context.Context, ref uuid.UUID) (*model.Registration, error)
}

// RelationTitles lists the titles of records linked to an event.
type RelationTitles interface {
	TitlesFor(ctx context.Context, rel bagbuilder.Relation, e *model.Event) ([]string, error)
}

// RegistrationRemover removes a registration and promotes from the queue.
type RegistrationRemover interface {
	Remove(ctx context.Context, registrationUID int64) (*queue.Removal, error)
}

// Deps are the collaborators of EventService.
type Deps struct {
	Events        EventStore
	Categories    bag.Source[*model.Category]
	Registrations RegistrationFinder
	Relations     RelationTitles
	Queue         RegistrationRemover
	Scope         *scope.ContainerScope
	Clock         clock.Clock
	Log           *zap.Logger

	// StoragePIDs and Recursion scope listings that do not name containers.
	StoragePIDs string
	Recursion   uint
}

// EventService orchestrates event-related business operations.
type EventService struct {
	deps  Deps
	graph *requirement.Graph
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(deps Deps) *EventService {
	s := &EventService{deps: deps}
	s.graph = requirement.NewGraph(s.newEventBuilder)
	return s
}

func (s *EventService) newEventBuilder() *bagbuilder.EventBuilder {
	return bagbuilder.NewEventBuilder(s.deps.Events, s.deps.Scope, s.deps.Clock)
}

// ListQuery holds the filters of an event listing. Zero values leave the
// corresponding filter unset.
type ListQuery struct {
	StoragePIDs   string
	Recursion     *uint
	TimeFrame     bagbuilder.TimeFrame
	Topics        bool
	Categories    []int64
	Places        []int64
	Organizers    []int64
	TargetGroups  []int64
	EventTypes    []int64
	Cities        []string
	Countries     []string
	Languages     []string
	Age           int
	Status        *model.Status
	Search        string
	MinPrice      float64
	MaxPrice      float64
	OnlyVacancies bool
	Owner         int64
	Manager       int64
	EarliestBegin time.Time
	LatestBegin   time.Time
	OrderBy       string
	Limit         string
}

// EventPage is one page of a listing together with the unlimited total.
type EventPage struct {
	Events []*EventSummary `json:"events"`
	Total  int             `json:"total"`
}

// EventSummary is the listing view of an event.
type EventSummary struct {
	*model.Event
	Title        string          `json:"title"`
	Prices       []pricing.Price `json:"prices"`
	CurrentPrice float64         `json:"current_price"`
	Vacancies    *int            `json:"vacancies"`
	HasVacancy   bool            `json:"has_vacancy"`
}

var orderings = map[string]string{
	"":            "e.begin_date ASC, e.uid ASC",
	"begin_date":  "e.begin_date ASC, e.uid ASC",
	"-begin_date": "e.begin_date DESC, e.uid DESC",
	"title":       "(SELECT t.title FROM events t WHERE t.uid = " + bagbuilder.TopicUIDExpr("e") + ") ASC, e.uid ASC",
	"uid":         "e.uid ASC",
}

// ListEvents returns the events matching q. Dates and singles are listed
// unless q.Topics is set.
func (s *EventService) ListEvents(ctx context.Context, q ListQuery) (*EventPage, error) {
	eb, err := s.listBuilder(ctx, q)
	if err != nil {
		return nil, err
	}

	b := eb.Build(ctx)
	events, err := b.All()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	total, err := b.CountWithoutLimit()
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	now := s.deps.Clock.Now()
	page := &EventPage{Events: make([]*EventSummary, 0, len(events)), Total: total}
	for _, e := range events {
		page.Events = append(page.Events, summarize(e, now))
	}
	return page, nil
}

func (s *EventService) listBuilder(ctx context.Context, q ListQuery) (*bagbuilder.EventBuilder, error) {
	eb := s.newEventBuilder()

	pids, recursion := s.deps.StoragePIDs, s.deps.Recursion
	if strings.TrimSpace(q.StoragePIDs) != "" {
		pids = q.StoragePIDs
	}
	if q.Recursion != nil {
		recursion = *q.Recursion
	}
	if err := eb.SetSourcePages(ctx, pids, recursion); err != nil {
		return nil, fmt.Errorf("resolve storage pages: %w", err)
	}

	if q.Topics {
		eb.LimitToTopicRecords()
	} else {
		eb.LimitToDateAndSingleRecords()
	}
	if q.TimeFrame != "" {
		if err := eb.SetTimeFrame(q.TimeFrame); err != nil {
			return nil, err
		}
	}

	for _, apply := range []func() error{
		func() error { return eb.LimitToCategories(q.Categories) },
		func() error { return eb.LimitToPlaces(q.Places) },
		func() error { return eb.LimitToOrganizers(q.Organizers) },
		func() error { return eb.LimitToTargetGroups(q.TargetGroups) },
		func() error { return eb.LimitToEventTypes(q.EventTypes) },
		func() error { return eb.LimitToAge(q.Age) },
		func() error { return eb.LimitToMinimumPrice(q.MinPrice) },
		func() error { return eb.LimitToMaximumPrice(q.MaxPrice) },
		func() error { return eb.LimitToOwner(q.Owner) },
		func() error { return eb.LimitToEventManager(q.Manager) },
	} {
		if err := apply(); err != nil {
			return nil, err
		}
	}

	eb.LimitToCities(q.Cities)
	eb.LimitToCountries(q.Countries)
	eb.LimitToLanguages(q.Languages)
	eb.LimitToFullTextSearch(q.Search)
	eb.LimitToEarliestBeginDate(q.EarliestBegin)
	eb.LimitToLatestBeginDate(q.LatestBegin)
	if q.Status != nil {
		eb.LimitToStatus(*q.Status)
	}
	if q.OnlyVacancies {
		eb.ShowOnlyEventsWithVacancies()
	}

	orderBy, ok := orderings[q.OrderBy]
	if !ok {
		return nil, model.InvalidArgument("unknown order %q", q.OrderBy)
	}
	eb.SetOrderBy(orderBy)
	if err := eb.SetLimit(q.Limit); err != nil {
		return nil, err
	}
	return eb, nil
}

func summarize(e *model.Event, now time.Time) *EventSummary {
	sum := &EventSummary{
		Event:        e,
		Title:        e.Title(),
		Prices:       pricing.ApplicablePrices(e, now),
		CurrentPrice: pricing.CurrentRegularPrice(e, now),
		HasVacancy:   capacity.HasVacancy(e),
	}
	if free, unlimited := capacity.Vacancies(e); !unlimited {
		sum.Vacancies = &free
	}
	return sum
}

// EventDetail is the detail view of an event.
type EventDetail struct {
	*EventSummary
	Places       []string            `json:"places"`
	Speakers     map[string][]string `json:"speakers"`
	Organizers   []string            `json:"organizers"`
	TargetGroups []string            `json:"target_groups"`
	Categories   []string            `json:"categories"`
}

// GetEvent returns a visible event with its linked records.
func (s *EventService) GetEvent(ctx context.Context, uid int64) (*EventDetail, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}

	detail := &EventDetail{
		EventSummary: summarize(e, s.deps.Clock.Now()),
		Speakers:     make(map[string][]string, len(bagbuilder.SpeakerRoles)),
	}
	titles := func(rel bagbuilder.Relation) ([]string, error) {
		t, err := s.deps.Relations.TitlesFor(ctx, rel, e)
		if err != nil {
			return nil, fmt.Errorf("load %s of event %d: %w", rel.Name, uid, err)
		}
		return t, nil
	}

	if detail.Places, err = titles(bagbuilder.Places); err != nil {
		return nil, err
	}
	if detail.Organizers, err = titles(bagbuilder.Organizers); err != nil {
		return nil, err
	}
	if detail.TargetGroups, err = titles(bagbuilder.TargetGroups); err != nil {
		return nil, err
	}
	if detail.Categories, err = titles(bagbuilder.Categories); err != nil {
		return nil, err
	}
	for _, role := range bagbuilder.SpeakerRoles {
		names, err := titles(role)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			detail.Speakers[role.Name] = names
		}
	}
	return detail, nil
}

// visibleEvent loads an event and hides it from the public surface when it
// is hidden.
func (s *EventService) visibleEvent(ctx context.Context, uid int64) (*model.Event, error) {
	if err := model.RequirePositive("event uid", uid); err != nil {
		return nil, err
	}
	e, err := s.deps.Events.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if e.Hidden {
		return nil, repository.ErrNotFound
	}
	return e, nil
}

// Prices returns the prices of an event that apply now.
func (s *EventService) Prices(ctx context.Context, uid int64) ([]pricing.Price, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	return pricing.ApplicablePrices(e, s.deps.Clock.Now()), nil
}

// SeatCheck answers whether a registration for some seats can be accepted.
type SeatCheck struct {
	Requested   string `json:"requested"`
	Vacancies   *int   `json:"vacancies"`
	Unlimited   bool   `json:"unlimited"`
	HasVacancy  bool   `json:"has_vacancy"`
	Queue       bool   `json:"queue"`
	CanRegister bool   `json:"can_register"`
}

// CheckSeats reports the vacancies of an event and whether requested seats
// can be registered.
func (s *EventService) CheckSeats(ctx context.Context, uid int64, requested string) (*SeatCheck, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	free, unlimited := capacity.Vacancies(e)
	check := &SeatCheck{
		Requested:   requested,
		Unlimited:   unlimited,
		HasVacancy:  capacity.HasVacancy(e),
		Queue:       e.QueueEnabled,
		CanRegister: capacity.CanRegisterSeats(e, requested),
	}
	if !unlimited {
		check.Vacancies = &free
	}
	return check, nil
}

// RequiredTopics lists the topics directly required by the event's topic.
func (s *EventService) RequiredTopics(ctx context.Context, uid int64) ([]*model.Event, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	b, err := s.graph.RequiredTopics(ctx, e)
	if err != nil {
		return nil, err
	}
	return all(b, "required topics")
}

// DependingTopics lists the topics that directly require the event's topic.
func (s *EventService) DependingTopics(ctx context.Context, uid int64) ([]*model.Event, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	b, err := s.graph.DependingTopics(ctx, e)
	if err != nil {
		return nil, err
	}
	return all(b, "depending topics")
}

// MissingTopics lists the required topics the user has not attended.
func (s *EventService) MissingTopics(ctx context.Context, uid, userUID int64) ([]*model.Event, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	b, err := s.graph.MissingRequiredTopics(ctx, e, userUID)
	if err != nil {
		return nil, err
	}
	return all(b, "missing topics")
}

// Categories lists the categories of the event's topic in relation order.
func (s *EventService) Categories(ctx context.Context, uid int64) ([]*model.Category, error) {
	e, err := s.visibleEvent(ctx, uid)
	if err != nil {
		return nil, err
	}
	cb := bagbuilder.NewCategoryBuilder(s.deps.Categories)
	if err := cb.LimitToEvents([]int64{e.TopicUID()}); err != nil {
		return nil, err
	}
	if err := cb.SortByRelationOrder(); err != nil {
		return nil, err
	}
	return all(cb.Build(ctx), "categories")
}

// RemoveRegistration removes the registration with the given reference and
// fills the freed seats from the queue.
func (s *EventService) RemoveRegistration(ctx context.Context, ref uuid.UUID) (*queue.Removal, error) {
	if ref == uuid.Nil {
		return nil, model.InvalidArgument("registration reference is required")
	}
	reg, err := s.deps.Registrations.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	removal, err := s.deps.Queue.Remove(ctx, reg.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("remove registration: %w", err)
	}
	s.deps.Log.Info("registration removed",
		zap.Stringer("ref", ref),
		zap.Int64("event_uid", reg.EventID),
		zap.Bool("promoted", removal.Promoted != nil),
	)
	return removal, nil
}

// ReminderKind names one of the two organizer reminders.
type ReminderKind string

const (
	CancelationReminder ReminderKind = "cancelation"
	TakesPlaceReminder  ReminderKind = "takes-place"
)

// DueReminders lists confirmed or planned events beginning within days days
// for which the reminder has not been sent yet.
func (s *EventService) DueReminders(ctx context.Context, kind ReminderKind, days int) ([]*model.Event, error) {
	eb := s.newEventBuilder()
	eb.SetBackEndMode()
	eb.LimitToDateAndSingleRecords()
	if err := eb.SetTimeFrame(bagbuilder.UpcomingWithBeginDate); err != nil {
		return nil, err
	}
	if err := eb.LimitToDaysBeforeBeginDate(days); err != nil {
		return nil, err
	}

	switch kind {
	case CancelationReminder:
		eb.LimitToCancelationReminderSent(false)
		eb.LimitToStatus(model.StatusPlanned)
	case TakesPlaceReminder:
		eb.LimitToTakesPlaceReminderSent(false)
		eb.LimitToStatus(model.StatusConfirmed)
	default:
		return nil, model.InvalidArgument("unknown reminder %q", kind)
	}
	eb.SetOrderBy(orderings["begin_date"])
	return all(eb.Build(ctx), "due reminders")
}

// MarkReminderSent records that a reminder for the event went out.
func (s *EventService) MarkReminderSent(ctx context.Context, kind ReminderKind, uid int64) error {
	var err error
	switch kind {
	case CancelationReminder:
		err = s.deps.Events.MarkCancelationReminderSent(ctx, uid)
	case TakesPlaceReminder:
		err = s.deps.Events.MarkTakesPlaceReminderSent(ctx, uid)
	default:
		return model.InvalidArgument("unknown reminder %q", kind)
	}
	if err != nil {
		return err
	}
	s.deps.Log.Info("reminder marked as sent", zap.String("kind", string(kind)), zap.Int64("event_uid", uid))
	return nil
}

func all[T bag.Record](b *bag.Bag[T], what string) ([]T, error) {
	items, err := b.All()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
