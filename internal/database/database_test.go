package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records how a transaction ended. Methods not overridden panic
// through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTx_Commits(t *testing.T) {
	tx := &fakeTx{}
	err := WithTx(context.Background(), fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil })

	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), fakeBeginner{tx: tx}, func(pgx.Tx) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}

func TestWithTx_CommitFailure(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("serialization failure")}
	err := WithTx(context.Background(), fakeBeginner{tx: tx}, func(pgx.Tx) error { return nil })

	assert.ErrorContains(t, err, "commit transaction")
	assert.True(t, tx.rolledBack)
}

func TestWithTx_BeginFailure(t *testing.T) {
	called := false
	err := WithTx(context.Background(), fakeBeginner{err: errors.New("no connection")}, func(pgx.Tx) error {
		called = true
		return nil
	})

	assert.ErrorContains(t, err, "begin transaction")
	assert.False(t, called)
}

func TestSchemaDeclaresEveryRelationTable(t *testing.T) {
	for _, table := range []string{
		"events", "registrations", "pages", "categories", "places", "organizers",
		"speakers", "target_groups", "event_types",
		"events_categories_mm", "events_places_mm", "events_speakers_mm",
		"events_partners_mm", "events_tutors_mm", "events_leaders_mm",
		"events_organizers_mm", "events_target_groups_mm",
		"events_requirements_mm", "events_managers_mm",
	} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
}
