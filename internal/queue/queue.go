// Package queue removes registrations and promotes waitlisted registrations
// into the seats that become free.
package queue

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/capacity"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"go.uber.org/zap"
)

// Store is the storage seen from inside one transaction.
//
// Every writer locks the event row before any registration row of that
// event, so removals on one event serialize on the event lock.
type Store interface {
	// EventOf returns the event uid of a visible registration without locking.
	EventOf(ctx context.Context, registrationUID int64) (int64, error)
	// LockRegistration loads a visible registration and locks its row.
	LockRegistration(ctx context.Context, uid int64) (*model.Registration, error)
	// LockEvent loads an event with its regular seat count and locks its row.
	LockEvent(ctx context.Context, uid int64) (*model.Event, error)
	HideRegistration(ctx context.Context, uid int64) error
	MoveToRegular(ctx context.Context, uid int64) error
	Registrations() bag.Source[*model.Registration]
}

// TxRunner runs fn inside a single transaction, committing when fn returns
// nil and rolling back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Removal describes what Remove did.
type Removal struct {
	Removed  *model.Registration `json:"removed"`
	Promoted *model.Registration `json:"promoted,omitempty"`
}

// Manager removes registrations and fills the freed seats from the queue.
type Manager struct {
	tx  TxRunner
	log *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(tx TxRunner, log *zap.Logger) *Manager {
	return &Manager{tx: tx, log: log}
}

// Remove hides the registration. When it held a regular seat on an event
// that needs registration and has a waitlist, the oldest queued registration
// that fits into the free seats is moved to a regular seat. At most one
// registration is promoted. Hiding and promoting happen in one transaction
// that locks the event row first, so concurrent removals on the same event
// serialize.
func (m *Manager) Remove(ctx context.Context, registrationUID int64) (*Removal, error) {
	if err := model.RequirePositive("registration uid", registrationUID); err != nil {
		return nil, err
	}

	var result *Removal
	err := m.tx.InTx(ctx, func(s Store) error {
		eventUID, err := s.EventOf(ctx, registrationUID)
		if err != nil {
			return err
		}
		event, err := s.LockEvent(ctx, eventUID)
		if err != nil {
			return err
		}
		reg, err := s.LockRegistration(ctx, registrationUID)
		if err != nil {
			return err
		}
		if reg.EventID != eventUID {
			return fmt.Errorf("registration %d moved from event %d to %d during removal", reg.ID, eventUID, reg.EventID)
		}

		if err := s.HideRegistration(ctx, reg.ID); err != nil {
			return fmt.Errorf("hide registration %d: %w", reg.ID, err)
		}
		reg.Hidden = true
		result = &Removal{Removed: reg}

		if reg.OnQueue || !event.NeedsRegistration || !event.QueueEnabled {
			return nil
		}
		if reg.IsRegular() {
			event.RegularSeats -= reg.Seats
		}

		candidate, err := oldestFitting(ctx, s, event)
		if err != nil || candidate == nil {
			return err
		}
		if err := s.MoveToRegular(ctx, candidate.ID); err != nil {
			return fmt.Errorf("promote registration %d: %w", candidate.ID, err)
		}
		candidate.OnQueue = false
		result.Promoted = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Promoted != nil {
		m.log.Info("promoted queued registration",
			zap.Int64("event_uid", result.Removed.EventID),
			zap.Int64("removed_uid", result.Removed.ID),
			zap.Int64("promoted_uid", result.Promoted.ID),
			zap.Int("seats", result.Promoted.Seats),
		)
	}
	return result, nil
}

// oldestFitting finds the oldest queued registration of event whose seats fit
// into its current vacancies.
func oldestFitting(ctx context.Context, s Store, event *model.Event) (*model.Registration, error) {
	rb := bagbuilder.NewRegistrationBuilder(s.Registrations())
	if err := rb.LimitToEvent(event.ID); err != nil {
		return nil, err
	}
	rb.LimitToOnQueue()
	if free, unlimited := capacity.Vacancies(event); !unlimited {
		if free == 0 {
			return nil, nil
		}
		if err := rb.LimitToSeatsAtMost(free); err != nil {
			return nil, err
		}
	}
	rb.OrderByCreation()
	if err := rb.SetLimit("1"); err != nil {
		return nil, err
	}

	b := rb.Build(ctx)
	if !b.HasNext() {
		return nil, b.Err()
	}
	return b.Next(), nil
}
