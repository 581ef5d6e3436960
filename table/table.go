package table

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/wkalt/lakelet/datafile"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/snapshot"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/txlog"
	"github.com/wkalt/lakelet/util/log"
	"golang.org/x/sync/errgroup"
)

/*
The table engine is the public interface to a single table. A table is
addressed by its storage location (a prefix in the blob store) and owns a
transaction log under <location>/_log and immutable data files under
<location>/data.

Mutations follow the optimistic commit protocol: resolve the current snapshot,
compute the intended record against it, and propose the record at the next
version. When the proposal loses the version slot to a concurrent writer the
whole computation is redone against the fresh snapshot - for updates and
deletes this re-evaluates the predicate, which is what prevents lost updates.
Retries are bounded; exhausting them surfaces ErrConcurrentModification.

There is no lock anywhere: correctness rests entirely on the storage
provider's atomic create-if-absent primitive. Data files written for a commit
that ultimately conflicts are orphaned and unreferenced; garbage collection of
orphans is out of scope.
*/

////////////////////////////////////////////////////////////////////////////////

// FormatName is the table format identifier reported by DescribeDetail.
const FormatName = "lakelet"

const dataDir = "data"

// Table is the engine for a single table.
type Table struct {
	store    storage.Provider
	location string
	log      *txlog.Log
	resolver *snapshot.Resolver
	config   config
}

// New returns a table engine for the given storage location. The location
// need not exist yet; Create initializes it.
func New(store storage.Provider, location string, opts ...Option) *Table {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	txl := txlog.New(store, location)
	return &Table{
		store:    store,
		location: location,
		log:      txl,
		resolver: snapshot.NewResolver(txl, config.snapshotCacheSize),
		config:   config,
	}
}

// Location returns the table's storage location.
func (t *Table) Location() string {
	return t.location
}

func (t *Table) commitInfo(op txlog.Operation, params map[string]string) txlog.CommitInfo {
	return txlog.CommitInfo{
		Timestamp:           time.Now().UnixMilli(),
		User:                t.config.user,
		Operation:           op,
		OperationParameters: params,
	}
}

func (t *Table) objectID(relpath string) string {
	return path.Join(t.location, relpath)
}

// Snapshot returns the table state at the latest version.
func (t *Table) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	return t.latestSnapshot(ctx)
}

func (t *Table) latestSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := t.resolver.ResolveLatest(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrTableNotInitialized) {
			return nil, TableNotFoundError{t.location}
		}
		return nil, err
	}
	return snap, nil
}

// Create initializes the table at version 0 with the given schema. Fails with
// TableExistsError if any version has already been committed.
func (t *Table) Create(ctx context.Context, s *schema.Schema) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	_, ok, err := t.log.LatestVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest version: %w", err)
	}
	if ok {
		return TableExistsError{t.location}
	}
	record := &txlog.Record{
		Metadata: &txlog.Metadata{
			ID:          uuid.NewString(),
			Format:      FormatName,
			Schema:      s,
			CreatedTime: time.Now().UnixMilli(),
		},
		Commit: t.commitInfo(txlog.OpCreate, nil),
	}
	if err := t.log.Propose(ctx, 0, record); err != nil {
		if errors.Is(err, txlog.ErrVersionConflict) {
			return TableExistsError{t.location}
		}
		return fmt.Errorf("failed to commit create: %w", err)
	}
	log.Infow(ctx, "created table", "location", t.location, "schema", s.String())
	return nil
}

// commitWithRetry runs the optimistic commit loop: resolve the latest
// snapshot, build the intended record against it, and propose it at the next
// version, rebuilding from scratch on conflict.
func (t *Table) commitWithRetry(
	ctx context.Context,
	build func(snap *snapshot.Snapshot) (*txlog.Record, error),
) (uint64, error) {
	for attempt := 0; attempt < t.config.maxRetries; attempt++ {
		snap, err := t.latestSnapshot(ctx)
		if err != nil {
			return 0, err
		}
		record, err := build(snap)
		if err != nil {
			return 0, err
		}
		next := snap.Version + 1
		switch err := t.log.Propose(ctx, next, record); {
		case err == nil:
			t.maybeCheckpoint(ctx, next)
			return next, nil
		case errors.Is(err, txlog.ErrVersionConflict):
			log.Debugw(ctx, "commit conflict, retrying",
				"location", t.location, "version", next, "attempt", attempt+1)
		default:
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: gave up after %d attempts on %s",
		ErrConcurrentModification, t.config.maxRetries, t.location)
}

// Insert appends rows to the table, committing one INSERT version. Rows are
// encoded and uploaded once; on commit conflict only the proposal is retried,
// since appended files do not depend on the snapshot they were computed
// against. A concurrent schema change fails the operation instead.
func (t *Table) Insert(ctx context.Context, rows []schema.Row) (uint64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("no rows to insert")
	}
	var adds []txlog.AddFile
	var encodedWith *schema.Schema
	version, err := t.commitWithRetry(ctx, func(snap *snapshot.Snapshot) (*txlog.Record, error) {
		s := snap.Schema()
		if encodedWith != nil {
			if !encodedWith.Equal(s) {
				return nil, fmt.Errorf("%w: schema of %s changed during insert",
					ErrConcurrentModification, t.location)
			}
		} else {
			normalized := make([]schema.Row, len(rows))
			for i, row := range rows {
				norm, err := s.Normalize(row)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				normalized[i] = norm
			}
			var err error
			if adds, err = t.writeFiles(ctx, s, normalized); err != nil {
				return nil, err
			}
			encodedWith = s
		}
		return &txlog.Record{
			Adds:   adds,
			Commit: t.commitInfo(txlog.OpInsert, nil),
		}, nil
	})
	if err != nil {
		return 0, err
	}
	log.Infow(ctx, "inserted rows",
		"location", t.location, "version", version, "rows", len(rows), "files", len(adds))
	return version, nil
}

// writeFiles encodes a normalized row batch and uploads the resulting data
// files concurrently, returning the add records.
func (t *Table) writeFiles(
	ctx context.Context, s *schema.Schema, rows []schema.Row,
) ([]txlog.AddFile, error) {
	files, err := datafile.Encode(s, rows, t.config.maxFileBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	now := time.Now().UnixMilli()
	adds := make([]txlog.AddFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.writeWorkers)
	for i, file := range files {
		i, file := i, file
		adds[i] = txlog.AddFile{
			Path:             path.Join(dataDir, file.Name),
			Size:             file.Size,
			RowCount:         file.RowCount,
			ModificationTime: now,
			DataChange:       true,
		}
		g.Go(func() error {
			if err := t.store.Put(gctx, t.objectID(adds[i].Path), file.Data); err != nil {
				return fmt.Errorf("failed to write data file %s: %w", file.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return adds, nil
}

// Update rewrites every live file containing at least one row matching the
// predicate, applying the transform to the matching rows. Files with no
// matches are untouched.
func (t *Table) Update(ctx context.Context, pred Predicate, transform Transform) (uint64, error) {
	params := map[string]string{"predicate": pred.Text}
	if transform.Text != "" {
		params["set"] = transform.Text
	}
	version, err := t.commitWithRetry(ctx, func(snap *snapshot.Snapshot) (*txlog.Record, error) {
		adds, removes, err := t.rewrite(ctx, snap, pred, &transform)
		if err != nil {
			return nil, err
		}
		return &txlog.Record{
			Adds:    adds,
			Removes: removes,
			Commit:  t.commitInfo(txlog.OpUpdate, params),
		}, nil
	})
	if err != nil {
		return 0, err
	}
	log.Infow(ctx, "updated rows", "location", t.location, "version", version, "predicate", pred.Text)
	return version, nil
}

// Delete rewrites every live file containing at least one row matching the
// predicate, dropping the matching rows. Files with no matches are untouched.
func (t *Table) Delete(ctx context.Context, pred Predicate) (uint64, error) {
	params := map[string]string{"predicate": pred.Text}
	version, err := t.commitWithRetry(ctx, func(snap *snapshot.Snapshot) (*txlog.Record, error) {
		adds, removes, err := t.rewrite(ctx, snap, pred, nil)
		if err != nil {
			return nil, err
		}
		return &txlog.Record{
			Adds:    adds,
			Removes: removes,
			Commit:  t.commitInfo(txlog.OpDelete, params),
		}, nil
	})
	if err != nil {
		return 0, err
	}
	log.Infow(ctx, "deleted rows", "location", t.location, "version", version, "predicate", pred.Text)
	return version, nil
}

// rewrite performs the copy-on-write pass over a snapshot's live files. Files
// are processed concurrently; the returned adds and removes preserve the
// snapshot's file order. A nil transform drops matching rows.
func (t *Table) rewrite(
	ctx context.Context, snap *snapshot.Snapshot, pred Predicate, transform *Transform,
) ([]txlog.AddFile, []txlog.RemoveFile, error) {
	s := snap.Schema()
	now := time.Now().UnixMilli()
	type rewriteResult struct {
		touched bool
		adds    []txlog.AddFile
	}
	results := make([]rewriteResult, len(snap.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.writeWorkers)
	for i, file := range snap.Files {
		i, file := i, file
		g.Go(func() error {
			rows, err := t.readFile(gctx, snap.Version, file, s)
			if err != nil {
				return err
			}
			kept := make([]schema.Row, 0, len(rows))
			matched := 0
			for _, row := range rows {
				ok, err := pred.Match(s, row)
				if err != nil {
					return fmt.Errorf("predicate failed on %s: %w", file.Path, err)
				}
				if !ok {
					kept = append(kept, row)
					continue
				}
				matched++
				if transform == nil {
					continue
				}
				replaced, err := transform.Apply(s, row.Clone())
				if err != nil {
					return fmt.Errorf("transform failed on %s: %w", file.Path, err)
				}
				if replaced, err = s.Normalize(replaced); err != nil {
					return fmt.Errorf("transform produced an invalid row on %s: %w", file.Path, err)
				}
				kept = append(kept, replaced)
			}
			if matched == 0 {
				return nil
			}
			results[i].touched = true
			if len(kept) == 0 {
				return nil
			}
			adds, err := t.writeFiles(gctx, s, kept)
			if err != nil {
				return err
			}
			results[i].adds = adds
			for j := range results[i].adds {
				results[i].adds[j].ModificationTime = now
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	var adds []txlog.AddFile
	var removes []txlog.RemoveFile
	for i, result := range results {
		if !result.touched {
			continue
		}
		removes = append(removes, txlog.RemoveFile{
			Path:              snap.Files[i].Path,
			DeletionTimestamp: now,
		})
		adds = append(adds, result.adds...)
	}
	return adds, removes, nil
}

// readFile reads and decodes a data file referenced by a snapshot. A missing
// file indicates log/store inconsistency and is fatal.
func (t *Table) readFile(
	ctx context.Context, version uint64, file txlog.AddFile, s *schema.Schema,
) ([]schema.Row, error) {
	data, err := t.store.Get(ctx, t.objectID(file.Path))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("data file %s referenced by version %d of %s is missing: %w",
				file.Path, version, t.location, err)
		}
		return nil, fmt.Errorf("failed to read data file %s: %w", file.Path, err)
	}
	rows, err := datafile.Decode(s, data)
	if err != nil {
		return nil, fmt.Errorf("data file %s of %s: %w", file.Path, t.location, err)
	}
	return rows, nil
}

// maybeCheckpoint writes a checkpoint after a commit once enough
// un-checkpointed commits have accumulated. Failures are logged and swallowed:
// the log alone is authoritative.
func (t *Table) maybeCheckpoint(ctx context.Context, version uint64) {
	interval := t.config.checkpointInterval
	if interval <= 0 {
		return
	}
	uncheckpointed := version + 1
	if checkpoint, ok, err := t.log.LatestCheckpoint(ctx, version); err != nil {
		log.Warnw(ctx, "failed to locate latest checkpoint",
			"location", t.location, "error", err)
		return
	} else if ok {
		uncheckpointed = version - checkpoint.Version
	}
	if uncheckpointed < uint64(interval) {
		return
	}
	snap, err := t.resolver.Resolve(ctx, version)
	if err != nil {
		log.Warnw(ctx, "failed to resolve snapshot for checkpoint",
			"location", t.location, "version", version, "error", err)
		return
	}
	err = t.log.WriteCheckpoint(ctx, &txlog.Checkpoint{
		Version:  version,
		Metadata: snap.Metadata,
		Files:    snap.Files,
	})
	if err != nil {
		log.Warnw(ctx, "failed to write checkpoint",
			"location", t.location, "version", version, "error", err)
		return
	}
	log.Debugw(ctx, "wrote checkpoint", "location", t.location, "version", version)
}
