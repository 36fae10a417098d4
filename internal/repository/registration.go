package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const registrationColumns = `r.uid, r.ref, r.event, r.user_uid, r.seats, r.datepaid,
	r.registration_queue, r.hidden, r.crdate`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg          model.Registration
		paid, crdate int64
	)
	err := row.Scan(&reg.ID, &reg.Ref, &reg.EventID, &reg.UserID, &reg.Seats, &paid,
		&reg.OnQueue, &reg.Hidden, &crdate)
	if err != nil {
		return nil, err
	}
	reg.PaidAt = fromUnix(paid)
	reg.CreatedAt = fromUnix(crdate)
	return &reg, nil
}

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db database.Querier
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db database.Querier) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

var _ bag.Source[*model.Registration] = (*RegistrationRepository)(nil)

// Select runs a composed statement and returns the matching registrations.
func (r *RegistrationRepository) Select(ctx context.Context, st bag.Statement) ([]*model.Registration, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+registrationColumns+" FROM registrations r WHERE "+st.WhereClause()+st.Tail(), st.Args)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []*model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// Count counts the registrations matching st.
func (r *RegistrationRepository) Count(ctx context.Context, st bag.Statement) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM registrations r WHERE "+st.WhereClause(), st.Args).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// GetByRef returns the visible registration with the given public reference,
// or ErrNotFound.
func (r *RegistrationRepository) GetByRef(ctx context.Context, ref uuid.UUID) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		"SELECT "+registrationColumns+" FROM registrations r WHERE r.ref = $1 AND NOT r.hidden AND NOT r.deleted", ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}
