package bagbuilder

import (
	"context"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/jackc/pgx/v5"
)

const (
	keyRegEvent    = "event"
	keyRegQueue    = "queue"
	keyRegPaid     = "paid"
	keyRegAttendee = "attendee"
	keyRegSeats    = "seats"
	keyRegVisible  = "visible"
)

// RegistrationBuilder composes the selection of registrations (alias r).
type RegistrationBuilder struct {
	b      *bag.Builder
	source bag.Source[*model.Registration]
}

// NewRegistrationBuilder returns a builder over visible registrations.
func NewRegistrationBuilder(source bag.Source[*model.Registration]) *RegistrationBuilder {
	rb := &RegistrationBuilder{b: bag.NewBuilder(), source: source}
	rb.b.Set(keyRegVisible, "NOT r.hidden AND NOT r.deleted", nil)
	return rb
}

// Statement renders the current selection.
func (rb *RegistrationBuilder) Statement() bag.Statement { return rb.b.Statement() }

// Build returns a Bag over the current selection.
func (rb *RegistrationBuilder) Build(ctx context.Context) *bag.Bag[*model.Registration] {
	return bag.New(ctx, rb.source, rb.b.Statement())
}

// SetOrderBy replaces the ORDER BY clause; "" clears it.
func (rb *RegistrationBuilder) SetOrderBy(orderBy string) { rb.b.SetOrderBy(orderBy) }

// SetLimit sets "count" or "offset,count"; "" clears it.
func (rb *RegistrationBuilder) SetLimit(limit string) error { return rb.b.SetLimit(limit) }

// OrderByCreation sorts oldest first.
func (rb *RegistrationBuilder) OrderByCreation() { rb.b.SetOrderBy("r.crdate ASC, r.uid ASC") }

// LimitToEvent restricts to registrations for one event.
func (rb *RegistrationBuilder) LimitToEvent(eventUID int64) error {
	if err := model.RequirePositive("event uid", eventUID); err != nil {
		return err
	}
	rb.b.Set(keyRegEvent, "r.event = @event", pgx.NamedArgs{keyRegEvent: eventUID})
	return nil
}

// LimitToRegular keeps registrations holding a regular seat.
func (rb *RegistrationBuilder) LimitToRegular() {
	rb.b.Set(keyRegQueue, "NOT r.registration_queue", nil)
}

// LimitToOnQueue keeps waitlisted registrations.
func (rb *RegistrationBuilder) LimitToOnQueue() {
	rb.b.Set(keyRegQueue, "r.registration_queue", nil)
}

// RemoveQueueLimit keeps regular and waitlisted registrations.
func (rb *RegistrationBuilder) RemoveQueueLimit() { rb.b.Remove(keyRegQueue) }

// LimitToPaid keeps registrations with a payment date.
func (rb *RegistrationBuilder) LimitToPaid() { rb.b.Set(keyRegPaid, "r.datepaid <> 0", nil) }

// LimitToUnpaid keeps registrations without a payment date.
func (rb *RegistrationBuilder) LimitToUnpaid() { rb.b.Set(keyRegPaid, "r.datepaid = 0", nil) }

// LimitToAttendee restricts to one front-end user; 0 removes it.
func (rb *RegistrationBuilder) LimitToAttendee(userUID int64) error {
	if userUID == 0 {
		rb.b.Remove(keyRegAttendee)
		return nil
	}
	if err := model.RequirePositive("user uid", userUID); err != nil {
		return err
	}
	rb.b.Set(keyRegAttendee, "r.user_uid = @attendee", pgx.NamedArgs{keyRegAttendee: userUID})
	return nil
}

// LimitToSeatsAtMost keeps registrations for at most seats seats.
func (rb *RegistrationBuilder) LimitToSeatsAtMost(seats int) error {
	if seats < 0 {
		return model.InvalidArgument("seats must be >= 0, got %d", seats)
	}
	rb.b.Set(keyRegSeats, "r.seats <= @seats", pgx.NamedArgs{keyRegSeats: seats})
	return nil
}
