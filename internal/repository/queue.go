package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/queue"
	"github.com/jackc/pgx/v5"
)

// QueueTx runs registration removals in a database transaction.
type QueueTx struct {
	db database.TxBeginner
}

// NewQueueTx constructs a QueueTx.
func NewQueueTx(db database.TxBeginner) *QueueTx {
	return &QueueTx{db: db}
}

// InTx implements queue.TxRunner.
func (q *QueueTx) InTx(ctx context.Context, fn func(queue.Store) error) error {
	return database.WithTx(ctx, q.db, func(tx pgx.Tx) error {
		return fn(&queueStore{tx: tx, registrations: NewRegistrationRepository(tx)})
	})
}

type queueStore struct {
	tx            pgx.Tx
	registrations *RegistrationRepository
}

func (s *queueStore) EventOf(ctx context.Context, registrationUID int64) (int64, error) {
	var eventUID int64
	err := s.tx.QueryRow(ctx,
		"SELECT event FROM registrations WHERE uid = $1 AND NOT hidden AND NOT deleted", registrationUID).Scan(&eventUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("find event of registration: %w", err)
	}
	return eventUID, nil
}

// LockRegistration runs after LockEvent. A registration hidden by a removal
// that held the event lock before us is reported as ErrNotFound.
func (s *queueStore) LockRegistration(ctx context.Context, uid int64) (*model.Registration, error) {
	reg, err := scanRegistration(s.tx.QueryRow(ctx,
		"SELECT "+registrationColumns+" FROM registrations r WHERE r.uid = $1 AND NOT r.hidden AND NOT r.deleted FOR UPDATE", uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock registration: %w", err)
	}
	return reg, nil
}

// LockEvent takes the row lock first and reads the event in a second
// statement, so the seat count reflects removals committed while waiting.
func (s *queueStore) LockEvent(ctx context.Context, uid int64) (*model.Event, error) {
	var locked int64
	err := s.tx.QueryRow(ctx, "SELECT uid FROM events WHERE uid = $1 AND NOT deleted FOR UPDATE", uid).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	e, err := scanEvent(s.tx.QueryRow(ctx, "SELECT "+eventSelect+" FROM events e WHERE e.uid = $1", uid))
	if err != nil {
		return nil, fmt.Errorf("read locked event: %w", err)
	}
	return e, nil
}

func (s *queueStore) HideRegistration(ctx context.Context, uid int64) error {
	return s.exec(ctx, "UPDATE registrations SET hidden = TRUE WHERE uid = $1", uid)
}

func (s *queueStore) MoveToRegular(ctx context.Context, uid int64) error {
	return s.exec(ctx, "UPDATE registrations SET registration_queue = FALSE WHERE uid = $1 AND registration_queue", uid)
}

func (s *queueStore) exec(ctx context.Context, sql string, uid int64) error {
	tag, err := s.tx.Exec(ctx, sql, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *queueStore) Registrations() bag.Source[*model.Registration] { return s.registrations }
