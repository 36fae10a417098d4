package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/seminars/internal/database"
)

// PageRepository reads the container page tree.
type PageRepository struct {
	db database.Querier
}

// NewPageRepository constructs a PageRepository.
func NewPageRepository(db database.Querier) *PageRepository {
	return &PageRepository{db: db}
}

// ChildrenOf returns the uids of the direct, non-deleted children of the
// given pages.
func (r *PageRepository) ChildrenOf(ctx context.Context, pids []int64) ([]int64, error) {
	if len(pids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, "SELECT uid FROM pages WHERE pid = ANY($1) AND NOT deleted ORDER BY uid", pids)
	if err != nil {
		return nil, fmt.Errorf("list child pages: %w", err)
	}
	defer rows.Close()

	var children []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		children = append(children, uid)
	}
	return children, rows.Err()
}
