package bag

import "context"

// Bag is a forward-iterable, countable result set. Nothing is read from
// storage until the first call that needs the records.
//
// Like pgx.Rows, a Bag keeps the context it was created with and uses it for
// the deferred query. It is not safe for concurrent use.
type Bag[T Record] struct {
	ctx       context.Context
	source    Source[T]
	statement Statement

	items  []T
	loaded bool
	pos    int
	err    error
}

// New returns a Bag that will run st against source on first use.
func New[T Record](ctx context.Context, source Source[T], st Statement) *Bag[T] {
	return &Bag[T]{ctx: ctx, source: source, statement: st}
}

// Statement returns the statement the Bag was built from.
func (b *Bag[T]) Statement() Statement { return b.statement }

func (b *Bag[T]) load() error {
	if b.loaded {
		return b.err
	}
	b.loaded = true
	b.items, b.err = b.source.Select(b.ctx, b.statement)
	return b.err
}

// HasNext reports whether Next will return another record. It returns false
// when loading failed; check Err.
func (b *Bag[T]) HasNext() bool {
	if b.load() != nil {
		return false
	}
	return b.pos < len(b.items)
}

// Next returns the next record, or the zero value when the Bag is exhausted.
func (b *Bag[T]) Next() T {
	var zero T
	if !b.HasNext() {
		return zero
	}
	item := b.items[b.pos]
	b.pos++
	return item
}

// Rewind moves the cursor back to the first record.
func (b *Bag[T]) Rewind() { b.pos = 0 }

// Err returns the error that occurred while loading, if any.
func (b *Bag[T]) Err() error { return b.err }

// All returns every record.
func (b *Bag[T]) All() ([]T, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	return b.items, nil
}

// Count returns the number of records in the Bag, honoring any limit.
func (b *Bag[T]) Count() (int, error) {
	if err := b.load(); err != nil {
		return 0, err
	}
	return len(b.items), nil
}

// CountWithoutLimit counts all matching records, ignoring the limit.
func (b *Bag[T]) CountWithoutLimit() (int, error) {
	st := b.statement
	st.Limit = nil
	st.OrderBy = ""
	return b.source.Count(b.ctx, st)
}

// IsEmpty reports whether the Bag holds no records.
func (b *Bag[T]) IsEmpty() (bool, error) {
	n, err := b.Count()
	return n == 0, err
}

// UIDs returns the uids of all records in iteration order.
func (b *Bag[T]) UIDs() ([]int64, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	uids := make([]int64, 0, len(b.items))
	for _, item := range b.items {
		uids = append(uids, item.GetID())
	}
	return uids, nil
}
