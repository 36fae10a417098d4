// Package repository implements all database queries for the seminar
// system. It uses pgx directly (no ORM): the bag builders compose WHERE
// clauses and named arguments, and the repositories here only execute them.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

const eventColumns = `e.uid, e.pid, e.object_type, e.topic,
	e.title, e.subtitle, e.description, e.event_type,
	e.price_regular, e.price_regular_early, e.price_regular_board,
	e.price_special, e.price_special_early, e.price_special_board,
	e.accreditation_number, e.language,
	e.begin_date, e.end_date, e.deadline_registration, e.deadline_early_bird, e.expiry,
	e.needs_registration, e.attendees_max, e.offline_attendees, e.queue_enabled,
	e.status, e.owner_feuser,
	e.cancelation_deadline_reminder_sent, e.event_takes_place_reminder_sent, e.hidden`

// eventSelect lists the event columns followed by the regular seat count.
var eventSelect = eventColumns + ", " + bagbuilder.RegularSeatsExpr("e")

// fromUnix maps a unix timestamp to a time, 0 to the zero time.
func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e                                   model.Event
		variant, status                     int
		begin, end, deadline, early, expiry int64
	)
	err := row.Scan(
		&e.ID, &e.PID, &variant, &e.TopicID,
		&e.Details.Title, &e.Details.Subtitle, &e.Details.Description, &e.Details.EventTypeID,
		&e.Details.Prices.Regular, &e.Details.Prices.RegularEarly, &e.Details.Prices.RegularBoard,
		&e.Details.Prices.Special, &e.Details.Prices.SpecialEarly, &e.Details.Prices.SpecialBoard,
		&e.AccreditationNumber, &e.Language,
		&begin, &end, &deadline, &early, &expiry,
		&e.NeedsRegistration, &e.MaxAttendees, &e.OfflineAttendees, &e.QueueEnabled,
		&status, &e.OwnerID,
		&e.CancelationReminderSent, &e.TakesPlaceReminderSent, &e.Hidden,
		&e.RegularSeats,
	)
	if err != nil {
		return nil, err
	}
	e.Variant = model.Variant(variant)
	e.Status = model.Status(status)
	e.BeginDate = fromUnix(begin)
	e.EndDate = fromUnix(end)
	e.RegistrationDeadline = fromUnix(deadline)
	e.EarlyBirdDeadline = fromUnix(early)
	e.Expiry = fromUnix(expiry)
	if !e.IsDate() {
		e.TopicID = 0
	}
	return &e, nil
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db database.Querier
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db database.Querier) *EventRepository {
	return &EventRepository{db: db}
}

var _ bag.Source[*model.Event] = (*EventRepository)(nil)

// Select runs a composed statement and returns the matching events. Dates
// come back with their topic attached.
func (r *EventRepository) Select(ctx context.Context, st bag.Statement) ([]*model.Event, error) {
	events, err := r.query(ctx, "SELECT "+eventSelect+" FROM events e WHERE "+st.WhereClause()+st.Tail(), st.Args)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if err := r.attachTopics(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count counts the events matching st, ignoring its order and limit.
func (r *EventRepository) Count(ctx context.Context, st bag.Statement) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM events e WHERE "+st.WhereClause(), st.Args).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (r *EventRepository) query(ctx context.Context, sql string, args ...any) ([]*model.Event, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// attachTopics loads the topics of all dates in events with one query.
func (r *EventRepository) attachTopics(ctx context.Context, events []*model.Event) error {
	var topicUIDs []int64
	seen := make(map[int64]bool)
	for _, e := range events {
		if e.IsDate() && e.TopicID > 0 && !seen[e.TopicID] {
			seen[e.TopicID] = true
			topicUIDs = append(topicUIDs, e.TopicID)
		}
	}
	if len(topicUIDs) == 0 {
		return nil
	}

	topics, err := r.query(ctx,
		fmt.Sprintf("SELECT %s FROM events e WHERE e.uid = ANY($1) AND e.object_type = %d AND NOT e.deleted",
			eventSelect, model.VariantTopic),
		topicUIDs)
	if err != nil {
		return fmt.Errorf("load topics: %w", err)
	}
	byUID := make(map[int64]*model.Event, len(topics))
	for _, t := range topics {
		byUID[t.ID] = t
	}
	for _, e := range events {
		if e.IsDate() {
			e.Topic = byUID[e.TopicID]
		}
	}
	return nil
}

// GetByID returns a single event that is not deleted, or ErrNotFound.
// Hidden and time-gated events are returned as well.
func (r *EventRepository) GetByID(ctx context.Context, uid int64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		"SELECT "+eventSelect+" FROM events e WHERE e.uid = $1 AND NOT e.deleted", uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := r.attachTopics(ctx, []*model.Event{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// MarkCancelationReminderSent records that the cancelation-deadline reminder
// for the event went out.
func (r *EventRepository) MarkCancelationReminderSent(ctx context.Context, uid int64) error {
	return r.setFlag(ctx, "cancelation_deadline_reminder_sent", uid)
}

// MarkTakesPlaceReminderSent records that the event-takes-place reminder for
// the event went out.
func (r *EventRepository) MarkTakesPlaceReminderSent(ctx context.Context, uid int64) error {
	return r.setFlag(ctx, "event_takes_place_reminder_sent", uid)
}

func (r *EventRepository) setFlag(ctx context.Context, column string, uid int64) error {
	if err := model.RequirePositive("event uid", uid); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf("UPDATE events SET %s = TRUE WHERE uid = $1 AND object_type <> %d AND NOT deleted", column, model.VariantTopic),
		uid)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var variant int
	err = r.db.QueryRow(ctx, "SELECT object_type FROM events WHERE uid = $1 AND NOT deleted", uid).Scan(&variant)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("set %s: %w", column, err)
	}
	return fmt.Errorf("%w: event %d is a %s, reminders are sent for dates and singles",
		model.ErrInvalidVariant, uid, model.Variant(variant))
}
