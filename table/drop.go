package table

import (
	"context"
	"fmt"

	"github.com/wkalt/lakelet/util/log"
)

// Drop destructively removes every object under the table's location: the
// transaction log, checkpoints, and all data files, including those only
// referenced by historical versions. It is not versioned and not recoverable.
// Dropping a table that does not exist is a no-op.
func (t *Table) Drop(ctx context.Context) error {
	ids, err := t.store.List(ctx, t.location+"/")
	if err != nil {
		return fmt.Errorf("failed to list table objects: %w", err)
	}
	for _, id := range ids {
		if err := t.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	t.resolver.Reset()
	log.Infow(ctx, "dropped table", "location", t.location, "objects", len(ids))
	return nil
}
