package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bagbuilder"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

// RelationIndex looks up the titles of records linked to an event.
type RelationIndex struct {
	db database.Querier
}

// NewRelationIndex constructs a RelationIndex.
func NewRelationIndex(db database.Querier) *RelationIndex {
	return &RelationIndex{db: db}
}

// TitlesFor returns the titles linked to e through rel in relation order.
// Topic-level relations of a date are read from its topic.
func (x *RelationIndex) TitlesFor(ctx context.Context, rel bagbuilder.Relation, e *model.Event) ([]string, error) {
	if e == nil {
		return nil, model.InvalidArgument("event must not be nil")
	}
	if rel.Table == "" || rel.ForeignTable == "" {
		return nil, model.InvalidArgument("relation %q has no table", rel.Name)
	}
	subject := e.ID
	if rel.TopicLevel {
		subject = e.TopicUID()
	}
	if err := model.RequirePositive("event uid", subject); err != nil {
		return nil, err
	}

	column := "title"
	if rel.ForeignTable == "fe_users" {
		column = "name"
	}
	rows, err := x.db.Query(ctx, fmt.Sprintf(
		"SELECT f.%s FROM %s mm JOIN %s f ON f.uid = mm.uid_foreign WHERE mm.uid_local = $1 ORDER BY mm.sorting, f.uid",
		column, rel.Table, rel.ForeignTable), subject)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel.Name, err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rel.Name, err)
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}
