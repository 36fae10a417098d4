package bagbuilder

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/jackc/pgx/v5"
)

const keyCategoryEvents = "category_events"

// CategoryBuilder composes the selection of categories (alias c).
type CategoryBuilder struct {
	b               *bag.Builder
	source          bag.Source[*model.Category]
	byRelationOrder bool
}

// NewCategoryBuilder returns an unrestricted category builder.
func NewCategoryBuilder(source bag.Source[*model.Category]) *CategoryBuilder {
	return &CategoryBuilder{b: bag.NewBuilder(), source: source}
}

// Statement renders the current selection.
func (cb *CategoryBuilder) Statement() bag.Statement { return cb.b.Statement() }

// Build returns a Bag over the current selection.
func (cb *CategoryBuilder) Build(ctx context.Context) *bag.Bag[*model.Category] {
	return bag.New(ctx, cb.source, cb.b.Statement())
}

// SetOrderBy replaces the ORDER BY clause; "" clears it.
func (cb *CategoryBuilder) SetOrderBy(orderBy string) {
	cb.byRelationOrder = false
	cb.b.SetOrderBy(orderBy)
}

// LimitToEvents keeps categories linked to any of the given topic-level
// event uids. An empty list removes the restriction together with any
// relation ordering that depended on it.
func (cb *CategoryBuilder) LimitToEvents(eventUIDs []int64) error {
	if len(eventUIDs) == 0 {
		cb.b.Remove(keyCategoryEvents)
		if cb.byRelationOrder {
			cb.SetOrderBy("")
		}
		return nil
	}
	if err := requirePositiveUIDs("event uid", eventUIDs); err != nil {
		return err
	}
	cb.b.Set(keyCategoryEvents,
		fmt.Sprintf("c.uid IN (SELECT mm.uid_foreign FROM %s mm WHERE mm.uid_local = ANY(@%s))", Categories.Table, keyCategoryEvents),
		pgx.NamedArgs{keyCategoryEvents: eventUIDs})
	return nil
}

// SortByRelationOrder sorts categories the way they are ordered on the
// events. LimitToEvents must have been called first.
func (cb *CategoryBuilder) SortByRelationOrder() error {
	if !cb.b.Has(keyCategoryEvents) {
		return model.InvalidArgument("sorting by relation order requires a limit to events")
	}
	cb.b.SetOrderBy(fmt.Sprintf(
		"(SELECT MIN(mm.sorting) FROM %s mm WHERE mm.uid_foreign = c.uid AND mm.uid_local = ANY(@%s)), c.uid",
		Categories.Table, keyCategoryEvents))
	cb.byRelationOrder = true
	return nil
}
