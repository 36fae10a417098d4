// Package bag holds the generic pieces of the query engine: keyed predicate
// fragments, the rendered Statement handed to storage, and the lazily loaded
// Bag cursor over its results.
package bag

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/jackc/pgx/v5"
)

// Record is anything a Bag can hold.
type Record interface {
	GetID() int64
}

// Limit is an optional OFFSET/LIMIT pair.
type Limit struct {
	Offset int
	Count  int
}

// Statement is a fully composed selection. Where is a conjunction over the
// main table alias; it is empty when nothing is restricted.
type Statement struct {
	Where   string
	Args    pgx.NamedArgs
	OrderBy string
	Limit   *Limit
}

// WhereClause returns Where, or TRUE when no fragment is set.
func (s Statement) WhereClause() string {
	if s.Where == "" {
		return "TRUE"
	}
	return s.Where
}

// Tail renders the ORDER BY and LIMIT/OFFSET suffix.
func (s Statement) Tail() string {
	var sb strings.Builder
	if s.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(s.OrderBy)
	}
	if s.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", s.Limit.Count, s.Limit.Offset)
	}
	return sb.String()
}

// Source executes statements for one entity kind.
type Source[T Record] interface {
	Select(ctx context.Context, st Statement) ([]T, error)
	Count(ctx context.Context, st Statement) (int, error)
}

type fragment struct {
	sql  string
	args pgx.NamedArgs
}

// Builder accumulates named WHERE fragments. Setting a key again replaces the
// previous fragment under that key; fragments never accumulate.
type Builder struct {
	fragments map[string]fragment
	orderBy   string
	limit     *Limit
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{fragments: make(map[string]fragment)}
}

// Set stores sql under key. Named args must be unique across keys; by
// convention they are prefixed with the key.
func (b *Builder) Set(key, sql string, args pgx.NamedArgs) {
	b.fragments[key] = fragment{sql: sql, args: args}
}

// Remove drops the fragment stored under key, if any.
func (b *Builder) Remove(key string) {
	delete(b.fragments, key)
}

// Has reports whether a fragment is stored under key.
func (b *Builder) Has(key string) bool {
	_, ok := b.fragments[key]
	return ok
}

// Fragment returns the SQL stored under key.
func (b *Builder) Fragment(key string) (string, bool) {
	f, ok := b.fragments[key]
	return f.sql, ok
}

// SetOrderBy replaces the ORDER BY clause; an empty string clears it.
func (b *Builder) SetOrderBy(orderBy string) {
	b.orderBy = strings.TrimSpace(orderBy)
}

// SetLimit parses "count" or "offset,count". An empty string clears the limit.
func (b *Builder) SetLimit(limit string) error {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		b.limit = nil
		return nil
	}

	parts := strings.Split(limit, ",")
	if len(parts) > 2 {
		return model.InvalidArgument("limit %q must be \"count\" or \"offset,count\"", limit)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return model.InvalidArgument("limit %q must be \"count\" or \"offset,count\"", limit)
		}
		nums[i] = n
	}

	if len(nums) == 1 {
		b.limit = &Limit{Count: nums[0]}
	} else {
		b.limit = &Limit{Offset: nums[0], Count: nums[1]}
	}
	return nil
}

// Statement renders the current fragments in key order.
func (b *Builder) Statement() Statement {
	keys := make([]string, 0, len(b.fragments))
	for k := range b.fragments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := pgx.NamedArgs{}
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		f := b.fragments[k]
		clauses = append(clauses, "("+f.sql+")")
		for name, v := range f.args {
			args[name] = v
		}
	}

	st := Statement{
		Where:   strings.Join(clauses, " AND "),
		Args:    args,
		OrderBy: b.orderBy,
	}
	if b.limit != nil {
		l := *b.limit
		st.Limit = &l
	}
	return st
}
