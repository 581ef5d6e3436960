package table

import (
	"context"
	"fmt"
	"time"

	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/snapshot"
)

/*
Read paths. Queries resolve a snapshot and concatenate the contents of its
live files in file-list order: commit order across commits, add order within a
commit. Row order within the result is therefore storage order, not any
content order.

Reads never block writers and always observe a complete version: a commit is
invisible until its log file exists in full.
*/

////////////////////////////////////////////////////////////////////////////////

// Query returns the rows visible at the latest version.
func (t *Table) Query(ctx context.Context) ([]schema.Row, error) {
	snap, err := t.latestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return t.readSnapshot(ctx, snap)
}

// QueryAt returns the rows visible as of the given version.
func (t *Table) QueryAt(ctx context.Context, version uint64) ([]schema.Row, error) {
	snap, err := t.resolver.Resolve(ctx, version)
	if err != nil {
		return nil, err
	}
	return t.readSnapshot(ctx, snap)
}

// QueryAsOf returns the rows visible as of the last version committed at or
// before the given time.
func (t *Table) QueryAsOf(ctx context.Context, ts time.Time) ([]schema.Row, error) {
	version, err := t.VersionAsOf(ctx, ts)
	if err != nil {
		return nil, err
	}
	return t.QueryAt(ctx, version)
}

// VersionAsOf returns the last version committed at or before the given time.
func (t *Table) VersionAsOf(ctx context.Context, ts time.Time) (uint64, error) {
	latest, err := t.latestSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := ts.UnixMilli()
	found := false
	version := uint64(0)
	for v := uint64(0); v <= latest.Version; v++ {
		record, err := t.log.ReadRecord(ctx, v)
		if err != nil {
			return 0, fmt.Errorf("failed to read history: %w", err)
		}
		if record.Commit.Timestamp > cutoff {
			break
		}
		version = v
		found = true
	}
	if !found {
		return 0, fmt.Errorf("no version of %s committed at or before %s", t.location, ts)
	}
	return version, nil
}

func (t *Table) readSnapshot(ctx context.Context, snap *snapshot.Snapshot) ([]schema.Row, error) {
	s := snap.Schema()
	var rows []schema.Row
	for _, file := range snap.Files {
		decoded, err := t.readFile(ctx, snap.Version, file, s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, decoded...)
	}
	return rows, nil
}
