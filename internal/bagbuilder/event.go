package bagbuilder

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/clock"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/scope"
	"github.com/jackc/pgx/v5"
)

// Fragment keys of the event builder.
const (
	keySource         = "source"
	keyVisibility     = "visibility"
	keyTitle          = "title"
	keyTimeFrame      = "timeframe"
	keyCategories     = "categories"
	keyPlaces         = "places"
	keyCities         = "cities"
	keyCountries      = "countries"
	keyLanguages      = "languages"
	keyEventTypes     = "event_types"
	keyOrganizers     = "organizers"
	keyTargetGroups   = "target_groups"
	keyAge            = "age"
	keyRequiredOf     = "required_of"
	keyDependingOn    = "depending_on"
	keyStatus         = "status"
	keyVariant        = "variant"
	keySearch         = "search"
	keyMinimumPrice   = "minimum_price"
	keyMaximumPrice   = "maximum_price"
	keyVacancies      = "vacancies"
	keyOwner          = "owner"
	keyManager        = "manager"
	keyEarliestBegin  = "earliest_begin"
	keyLatestBegin    = "latest_begin"
	keyDaysBefore     = "days_before"
	keyCancelReminder = "cancelation_reminder"
	keyTakesReminder  = "takes_place_reminder"
	keyOtherDates     = "other_dates"
	keyNextDay        = "next_day"
	keyNoRegistration = "no_registration"
)

// EventBuilder composes the selection of events.
type EventBuilder struct {
	b      *bag.Builder
	source bag.Source[*model.Event]
	scope  *scope.ContainerScope
	clock  clock.Clock
}

// NewEventBuilder returns a builder in front-end visibility mode.
func NewEventBuilder(source bag.Source[*model.Event], sc *scope.ContainerScope, clk clock.Clock) *EventBuilder {
	eb := &EventBuilder{b: bag.NewBuilder(), source: source, scope: sc, clock: clk}
	eb.SetFrontEndMode()
	return eb
}

// Statement renders the current selection.
func (eb *EventBuilder) Statement() bag.Statement { return eb.b.Statement() }

// Build returns a Bag over the current selection.
func (eb *EventBuilder) Build(ctx context.Context) *bag.Bag[*model.Event] {
	return bag.New(ctx, eb.source, eb.b.Statement())
}

// SetOrderBy replaces the ORDER BY clause; "" clears it.
func (eb *EventBuilder) SetOrderBy(orderBy string) { eb.b.SetOrderBy(orderBy) }

// SetLimit sets "count" or "offset,count"; "" clears it.
func (eb *EventBuilder) SetLimit(limit string) error { return eb.b.SetLimit(limit) }

// SetSourcePages restricts the selection to the given containers and their
// descendants up to recursion levels deep. Empty or malformed input removes
// the restriction.
func (eb *EventBuilder) SetSourcePages(ctx context.Context, pids string, recursion uint) error {
	ids, restricted, err := eb.scope.ResolveList(ctx, pids, recursion)
	if err != nil {
		return err
	}
	if !restricted {
		eb.b.Remove(keySource)
		return nil
	}
	eb.b.Set(keySource, "e.pid = ANY(@source_pids)", pgx.NamedArgs{"source_pids": ids})
	return nil
}

// SetFrontEndMode hides hidden, deleted and time-gated records.
func (eb *EventBuilder) SetFrontEndMode() {
	eb.b.Set(keyVisibility,
		"NOT e.hidden AND NOT e.deleted AND (e.starttime = 0 OR e.starttime <= @visibility_now) AND (e.endtime = 0 OR e.endtime > @visibility_now)",
		pgx.NamedArgs{"visibility_now": eb.clock.Now().Unix()})
}

// SetBackEndMode shows hidden and time-gated records, never deleted ones.
func (eb *EventBuilder) SetBackEndMode() {
	eb.b.Set(keyVisibility, "NOT e.deleted", nil)
}

// LimitToTitle restricts to records with exactly this title.
func (eb *EventBuilder) LimitToTitle(title string) {
	eb.b.Set(keyTitle, "e.title = @title", pgx.NamedArgs{"title": title})
}

// SetTimeFrame restricts by begin, end and registration deadline relative to now.
func (eb *EventBuilder) SetTimeFrame(tf TimeFrame) error {
	if _, err := ParseTimeFrame(string(tf)); err != nil {
		return err
	}
	sql, args := timeFrameSQL(tf, eventAlias, eb.clock.Now())
	if sql == "" {
		eb.b.Remove(keyTimeFrame)
		return nil
	}
	eb.b.Set(keyTimeFrame, sql, args)
	return nil
}

func requirePositiveUIDs(name string, uids []int64) error {
	for _, uid := range uids {
		if err := model.RequirePositive(name, uid); err != nil {
			return err
		}
	}
	return nil
}

func (eb *EventBuilder) limitToRelation(key string, rel Relation, uids []int64) error {
	if len(uids) == 0 {
		eb.b.Remove(key)
		return nil
	}
	if err := requirePositiveUIDs(rel.Name+" uid", uids); err != nil {
		return err
	}
	eb.b.Set(key, rel.Membership(eventAlias, key), pgx.NamedArgs{key: uids})
	return nil
}

// LimitToCategories restricts to events whose topic is in one of the
// categories. An empty list removes the restriction.
func (eb *EventBuilder) LimitToCategories(uids []int64) error {
	return eb.limitToRelation(keyCategories, Categories, uids)
}

// LimitToPlaces restricts to events at one of the places.
func (eb *EventBuilder) LimitToPlaces(uids []int64) error {
	return eb.limitToRelation(keyPlaces, Places, uids)
}

// LimitToOrganizers restricts to events whose topic is run by one of the organizers.
func (eb *EventBuilder) LimitToOrganizers(uids []int64) error {
	return eb.limitToRelation(keyOrganizers, Organizers, uids)
}

// LimitToTargetGroups restricts to events whose topic addresses one of the groups.
func (eb *EventBuilder) LimitToTargetGroups(uids []int64) error {
	return eb.limitToRelation(keyTargetGroups, TargetGroups, uids)
}

func (eb *EventBuilder) limitToPlaceColumn(key, column string, values []string) {
	values = nonEmpty(values)
	if len(values) == 0 {
		eb.b.Remove(key)
		return
	}
	eb.b.Set(key, Places.Matching(eventAlias, fmt.Sprintf("f.%s = ANY(@%s)", column, key)),
		pgx.NamedArgs{key: values})
}

// LimitToCities restricts to events at a place in one of the cities.
func (eb *EventBuilder) LimitToCities(cities []string) {
	eb.limitToPlaceColumn(keyCities, "city", cities)
}

// LimitToCountries restricts to events at a place in one of the countries.
func (eb *EventBuilder) LimitToCountries(countries []string) {
	eb.limitToPlaceColumn(keyCountries, "country", countries)
}

// LimitToLanguages restricts to events held in one of the languages.
func (eb *EventBuilder) LimitToLanguages(languages []string) {
	languages = nonEmpty(languages)
	if len(languages) == 0 {
		eb.b.Remove(keyLanguages)
		return
	}
	eb.b.Set(keyLanguages, "e.language = ANY(@languages)", pgx.NamedArgs{keyLanguages: languages})
}

// LimitToEventTypes restricts to events whose topic has one of the types.
func (eb *EventBuilder) LimitToEventTypes(uids []int64) error {
	if len(uids) == 0 {
		eb.b.Remove(keyEventTypes)
		return nil
	}
	if err := requirePositiveUIDs("event type uid", uids); err != nil {
		return err
	}
	eb.b.Set(keyEventTypes, topicColumns(eventAlias, func(t string) string {
		return t + ".event_type = ANY(@event_types)"
	}), pgx.NamedArgs{keyEventTypes: uids})
	return nil
}

// LimitToAge restricts to events without target groups or with a target group
// whose age range contains age. An age of 0 removes the restriction.
func (eb *EventBuilder) LimitToAge(age int) error {
	if age < 0 {
		return model.InvalidArgument("age must be >= 0, got %d", age)
	}
	if age == 0 {
		eb.b.Remove(keyAge)
		return nil
	}
	covering := TargetGroups.Matching(eventAlias,
		"(f.minimum_age = 0 OR f.minimum_age <= @age) AND (f.maximum_age = 0 OR f.maximum_age >= @age)")
	eb.b.Set(keyAge, fmt.Sprintf("(%s) OR (%s)", TargetGroups.Unlinked(eventAlias), covering),
		pgx.NamedArgs{keyAge: age})
	return nil
}

// LimitToRequiredEventTopics restricts to the topics directly required by the
// topic of e.
func (eb *EventBuilder) LimitToRequiredEventTopics(e *model.Event) error {
	if err := RequireRequirementNode(e); err != nil {
		return err
	}
	eb.b.Set(keyRequiredOf,
		fmt.Sprintf("e.uid IN (SELECT mm.uid_foreign FROM %s mm WHERE mm.uid_local = @required_of)", Requirements.Table),
		pgx.NamedArgs{keyRequiredOf: e.TopicUID()})
	return nil
}

// LimitToDependingEventTopics restricts to the topics that directly require
// the topic of e.
func (eb *EventBuilder) LimitToDependingEventTopics(e *model.Event) error {
	if err := RequireRequirementNode(e); err != nil {
		return err
	}
	eb.b.Set(keyDependingOn,
		fmt.Sprintf("e.uid IN (SELECT mm.uid_local FROM %s mm WHERE mm.uid_foreign = @depending_on)", Requirements.Table),
		pgx.NamedArgs{keyDependingOn: e.TopicUID()})
	return nil
}

// LimitToTopicsWithoutRegistrationByUser restricts to topics on none of whose
// dates the user holds a registration that is still valid. Registrations on
// dates whose expiry has passed do not count; an expiry of 0 never passes.
func (eb *EventBuilder) LimitToTopicsWithoutRegistrationByUser(userUID int64) error {
	if err := model.RequirePositive("user uid", userUID); err != nil {
		return err
	}
	eb.b.Set(keyNoRegistration, fmt.Sprintf(
		"e.object_type = %d AND NOT EXISTS (SELECT 1 FROM registrations r JOIN events d ON d.uid = r.event "+
			"WHERE r.user_uid = @no_registration_user AND NOT r.hidden AND NOT r.deleted "+
			"AND d.object_type = %d AND d.topic = e.uid AND (d.expiry = 0 OR d.expiry >= @no_registration_now))",
		model.VariantTopic, model.VariantDate),
		pgx.NamedArgs{"no_registration_user": userUID, "no_registration_now": eb.clock.Now().Unix()})
	return nil
}

// LimitToStatus restricts to records with exactly this status.
func (eb *EventBuilder) LimitToStatus(status model.Status) {
	eb.b.Set(keyStatus, "e.status = @status", pgx.NamedArgs{keyStatus: int(status)})
}

// RemoveLimitToStatus drops the status restriction.
func (eb *EventBuilder) RemoveLimitToStatus() { eb.b.Remove(keyStatus) }

// LimitToTopicRecords restricts to topic records.
func (eb *EventBuilder) LimitToTopicRecords() {
	eb.b.Set(keyVariant, variantClause(eventAlias, true), nil)
}

// LimitToDateAndSingleRecords restricts to date and single records. Topics
// are then represented by their dates.
func (eb *EventBuilder) LimitToDateAndSingleRecords() {
	eb.b.Set(keyVariant, variantClause(eventAlias, false), nil)
}

// RemoveLimitToVariant drops the topic / date-and-single restriction.
func (eb *EventBuilder) RemoveLimitToVariant() { eb.b.Remove(keyVariant) }

// LimitToFullTextSearch requires each search token to occur in a searchable
// field. Input without any token of two or more characters is ignored.
func (eb *EventBuilder) LimitToFullTextSearch(text string) {
	sql, args := searchSQL(eventAlias, text)
	if sql == "" {
		eb.b.Remove(keySearch)
		return
	}
	eb.b.Set(keySearch, sql, args)
}

// priceClause renders "some applicable price of the row compares to @arg".
// Prices are read from the topic; the early-bird deadline from the row itself.
// A regular price of 0 counts as free only when no other price is set.
func priceClause(op, arg, nowArg string) string {
	return topicColumns(eventAlias, func(t string) string {
		r := strings.NewReplacer("{t}", t, "{op}", op, "{x}", "@"+arg, "{now}", "@"+nowArg)
		return r.Replace("(({t}.price_regular > 0 OR ({t}.price_regular_board = 0 AND {t}.price_special = 0" +
			" AND {t}.price_special_board = 0 AND {t}.price_regular_early = 0 AND {t}.price_special_early = 0))" +
			" AND {t}.price_regular {op} {x})" +
			" OR ({t}.price_regular_board > 0 AND {t}.price_regular_board {op} {x})" +
			" OR ({t}.price_special > 0 AND {t}.price_special {op} {x})" +
			" OR ({t}.price_special_board > 0 AND {t}.price_special_board {op} {x})" +
			" OR (e.deadline_early_bird > 0 AND e.deadline_early_bird >= {now} AND (" +
			"({t}.price_regular_early > 0 AND {t}.price_regular_early {op} {x})" +
			" OR ({t}.price_special_early > 0 AND {t}.price_special_early {op} {x})))")
	})
}

// LimitToMinimumPrice keeps events with an applicable price >= amount.
// An amount of 0 removes the restriction.
func (eb *EventBuilder) LimitToMinimumPrice(amount float64) error {
	return eb.limitToPrice(keyMinimumPrice, ">=", amount)
}

// LimitToMaximumPrice keeps events with an applicable price <= amount.
// An amount of 0 removes the restriction.
func (eb *EventBuilder) LimitToMaximumPrice(amount float64) error {
	return eb.limitToPrice(keyMaximumPrice, "<=", amount)
}

func (eb *EventBuilder) limitToPrice(key, op string, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.InvalidArgument("%s must be a finite amount >= 0, got %v", key, amount)
	}
	if amount == 0 {
		eb.b.Remove(key)
		return nil
	}
	nowArg := key + "_now"
	eb.b.Set(key, priceClause(op, key, nowArg),
		pgx.NamedArgs{key: amount, nowArg: eb.clock.Now().Unix()})
	return nil
}

// ShowOnlyEventsWithVacancies keeps events without registration, with
// unlimited seats, or with at least one free seat.
func (eb *EventBuilder) ShowOnlyEventsWithVacancies() {
	eb.b.Set(keyVacancies,
		"NOT e.needs_registration OR e.attendees_max = 0 OR e.attendees_max > e.offline_attendees + "+RegularSeatsExpr(eventAlias),
		nil)
}

// RegularSeatsExpr sums the seats of visible, non-queued registrations of alias.
func RegularSeatsExpr(alias string) string {
	return fmt.Sprintf("(SELECT COALESCE(SUM(rs.seats), 0) FROM registrations rs WHERE rs.event = %s.uid AND NOT rs.registration_queue AND NOT rs.hidden AND NOT rs.deleted)", alias)
}

// LimitToOwner restricts to events owned by the front-end user; 0 removes it.
func (eb *EventBuilder) LimitToOwner(userUID int64) error {
	if userUID == 0 {
		eb.b.Remove(keyOwner)
		return nil
	}
	if err := model.RequirePositive("owner uid", userUID); err != nil {
		return err
	}
	eb.b.Set(keyOwner, "e.owner_feuser = @owner", pgx.NamedArgs{keyOwner: userUID})
	return nil
}

// LimitToEventManager restricts to events managed by the front-end user; 0 removes it.
func (eb *EventBuilder) LimitToEventManager(userUID int64) error {
	if userUID == 0 {
		eb.b.Remove(keyManager)
		return nil
	}
	if err := model.RequirePositive("event manager uid", userUID); err != nil {
		return err
	}
	eb.b.Set(keyManager, EventManagers.Membership(eventAlias, keyManager),
		pgx.NamedArgs{keyManager: []int64{userUID}})
	return nil
}

// LimitToEarliestBeginDate keeps events beginning at or after t; the zero time removes it.
func (eb *EventBuilder) LimitToEarliestBeginDate(t time.Time) {
	if t.IsZero() {
		eb.b.Remove(keyEarliestBegin)
		return
	}
	eb.b.Set(keyEarliestBegin, "e.begin_date >= @earliest_begin", pgx.NamedArgs{keyEarliestBegin: unix(t)})
}

// LimitToLatestBeginDate keeps dated events beginning at or before t; the zero time removes it.
func (eb *EventBuilder) LimitToLatestBeginDate(t time.Time) {
	if t.IsZero() {
		eb.b.Remove(keyLatestBegin)
		return
	}
	eb.b.Set(keyLatestBegin, "e.begin_date <> 0 AND e.begin_date <= @latest_begin", pgx.NamedArgs{keyLatestBegin: unix(t)})
}

// LimitToDaysBeforeBeginDate keeps events without begin date, events that
// begin within the next days days, and events that already began.
func (eb *EventBuilder) LimitToDaysBeforeBeginDate(days int) error {
	if days < 0 {
		return model.InvalidArgument("days must be >= 0, got %d", days)
	}
	horizon := eb.clock.Now().Add(time.Duration(days) * 24 * time.Hour)
	eb.b.Set(keyDaysBefore, "e.begin_date = 0 OR e.begin_date <= @days_before",
		pgx.NamedArgs{keyDaysBefore: horizon.Unix()})
	return nil
}

// LimitToCancelationReminderSent matches the cancelation-deadline reminder flag.
func (eb *EventBuilder) LimitToCancelationReminderSent(sent bool) {
	eb.b.Set(keyCancelReminder, "e.cancelation_deadline_reminder_sent = @cancelation_reminder",
		pgx.NamedArgs{keyCancelReminder: sent})
}

// LimitToTakesPlaceReminderSent matches the event-takes-place reminder flag.
func (eb *EventBuilder) LimitToTakesPlaceReminderSent(sent bool) {
	eb.b.Set(keyTakesReminder, "e.event_takes_place_reminder_sent = @takes_place_reminder",
		pgx.NamedArgs{keyTakesReminder: sent})
}

// LimitToOtherDatesForTopic keeps the dates of e's topic except e itself.
// e must be a topic or a date.
func (eb *EventBuilder) LimitToOtherDatesForTopic(e *model.Event) error {
	if e == nil {
		return model.InvalidArgument("event must not be nil")
	}
	if e.IsSingle() {
		return fmt.Errorf("%w: event %d is a single event and has no other dates", model.ErrInvalidVariant, e.ID)
	}
	if err := model.RequirePositive("topic uid", e.TopicUID()); err != nil {
		return err
	}
	eb.b.Set(keyOtherDates,
		fmt.Sprintf("e.object_type = %d AND e.topic = @other_dates_topic AND e.uid <> @other_dates_self", model.VariantDate),
		pgx.NamedArgs{"other_dates_topic": e.TopicUID(), "other_dates_self": e.ID})
	return nil
}

// LimitToEventsNextDay keeps events of e's topic that begin within 24 hours
// after e ends. e must have an end date.
func (eb *EventBuilder) LimitToEventsNextDay(e *model.Event) error {
	if e == nil {
		return model.InvalidArgument("event must not be nil")
	}
	if e.IsTopic() {
		return fmt.Errorf("%w: topic %d has no dates", model.ErrInvalidVariant, e.ID)
	}
	if !e.HasEndDate() {
		return model.InvalidArgument("event %d has no end date", e.ID)
	}
	eb.b.Set(keyNextDay,
		"e.begin_date >= @next_day_from AND e.begin_date < @next_day_to AND e.uid <> @next_day_self AND "+
			TopicUIDExpr(eventAlias)+" = @next_day_topic",
		pgx.NamedArgs{
			"next_day_from":  e.EndDate.Unix(),
			"next_day_to":    e.EndDate.Add(24 * time.Hour).Unix(),
			"next_day_self":  e.ID,
			"next_day_topic": e.TopicUID(),
		})
	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
