package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/bag"
	"github.com/Shivanand-hulikatti/seminars/internal/database"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db database.Querier
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db database.Querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ bag.Source[*model.Category] = (*CategoryRepository)(nil)

// Select runs a composed statement and returns the matching categories.
func (r *CategoryRepository) Select(ctx context.Context, st bag.Statement) ([]*model.Category, error) {
	rows, err := r.db.Query(ctx, "SELECT c.uid, c.title FROM categories c WHERE "+st.WhereClause()+st.Tail(), st.Args)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// Count counts the categories matching st.
func (r *CategoryRepository) Count(ctx context.Context, st bag.Statement) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM categories c WHERE "+st.WhereClause(), st.Args).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}
