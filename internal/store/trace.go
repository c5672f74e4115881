package store

import (
	"context"
	"fmt"

	"github.com/roach88/hopper"
	"github.com/roach88/hopper/internal/query"
)

// FilterEvents returns the events matching a trace filter, in commit
// order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) FilterEvents(ctx context.Context, f query.Filter) ([]hopper.Event, error) {
	sqlText, args, err := f.Compile()
	if err != nil {
		return nil, fmt.Errorf("filter events: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("filter events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}
