package tablestore

import (
	"context"
	"fmt"

	"scrutin/internal/schema"
)

// Seed creates every election table with its header row.
func (s *Store) Seed(ctx context.Context) error {
	for _, table := range schema.Tables() {
		if err := s.EnsureSheet(ctx, string(table), schema.MustLookup(table).Header()); err != nil {
			return fmt.Errorf("seed %s: %w", table, err)
		}
	}
	return nil
}
