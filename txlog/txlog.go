package txlog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/wkalt/lakelet/storage"
)

/*
The transaction log owns the total order and atomic durability of commits. A
table's log is a sequence of commit files under <prefix>/_log/, named with the
fixed-width zero-padded decimal version number, so that lexicographic listing
order equals numeric order.

Commits are proposed with the storage provider's PutIfAbsent primitive: a
commit file either exists in full or not at all, and exactly one writer wins
any contested version slot. The log never retries a conflicted proposal
itself - the caller must re-read the latest version, recompute its intended
record against the new state, and propose again at version+1.

Transient storage errors are retried with backoff on the read paths only.
Writes are never blindly retried, since a retried write that raced its own
first attempt could double-commit.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	logDir           = "_log"
	commitExt        = ".json"
	checkpointSuffix = ".checkpoint.json"

	versionWidth = 20

	readAttempts = 3
	readBackoff  = 50 * time.Millisecond
)

// Log is the transaction log of a single table.
type Log struct {
	store  storage.Provider
	prefix string
}

// New returns the transaction log for the table at the given storage prefix.
func New(store storage.Provider, prefix string) *Log {
	return &Log{store: store, prefix: prefix}
}

// Prefix returns the table storage prefix the log serves.
func (l *Log) Prefix() string {
	return l.prefix
}

func versionName(version uint64) string {
	return fmt.Sprintf("%0*d", versionWidth, version)
}

func (l *Log) commitPath(version uint64) string {
	return path.Join(l.prefix, logDir, versionName(version)+commitExt)
}

func (l *Log) checkpointPath(version uint64) string {
	return path.Join(l.prefix, logDir, versionName(version)+checkpointSuffix)
}

func (l *Log) logPrefix() string {
	return path.Join(l.prefix, logDir) + "/"
}

// get reads an object, retrying transient failures. Not-found results are
// returned immediately.
func (l *Log) get(ctx context.Context, id string) ([]byte, error) {
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		var data []byte
		data, err = l.store.Get(ctx, id)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * readBackoff):
		}
	}
	return nil, fmt.Errorf("failed to read %s: %w", id, err)
}

// list lists objects under the log directory, retrying transient failures.
func (l *Log) list(ctx context.Context) ([]string, error) {
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		var ids []string
		ids, err = l.store.List(ctx, l.logPrefix())
		if err == nil {
			return ids, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * readBackoff):
		}
	}
	return nil, fmt.Errorf("failed to list %s: %w", l.logPrefix(), err)
}

func (l *Log) parseCommitVersion(id string) (uint64, bool) {
	name := strings.TrimPrefix(id, l.logPrefix())
	if strings.HasSuffix(name, checkpointSuffix) || !strings.HasSuffix(name, commitExt) {
		return 0, false
	}
	name = strings.TrimSuffix(name, commitExt)
	if len(name) != versionWidth {
		return 0, false
	}
	version, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}
	return version, true
}

// Propose attempts to durably commit the record at the given version. If the
// version slot is already taken it returns ErrVersionConflict, and the caller
// must re-resolve and retry at a later version.
func (l *Log) Propose(ctx context.Context, version uint64, record *Record) error {
	data, err := record.encode()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := l.store.PutIfAbsent(ctx, l.commitPath(version), data); err != nil {
		if errors.Is(err, storage.ErrObjectExists) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to write commit %d: %w", version, err)
	}
	return nil
}

// ReadRecord reads the record committed at the given version.
func (l *Log) ReadRecord(ctx context.Context, version uint64) (*Record, error) {
	data, err := l.get(ctx, l.commitPath(version))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, VersionNotFoundError{l.prefix, version}
		}
		return nil, err
	}
	record, err := decodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("corrupt log record at version %d of %s: %w", version, l.prefix, err)
	}
	return record, nil
}

// ReadRaw reads the raw bytes of the commit file at the given version, for
// inspection tooling.
func (l *Log) ReadRaw(ctx context.Context, version uint64) ([]byte, error) {
	data, err := l.get(ctx, l.commitPath(version))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, VersionNotFoundError{l.prefix, version}
		}
		return nil, err
	}
	return data, nil
}

// LatestVersion returns the highest committed version. The boolean is false
// when the log is empty, i.e. the table has not been created.
func (l *Log) LatestVersion(ctx context.Context) (uint64, bool, error) {
	ids, err := l.list(ctx)
	if err != nil {
		return 0, false, err
	}
	latest, found := uint64(0), false
	for _, id := range ids {
		version, ok := l.parseCommitVersion(id)
		if !ok {
			continue
		}
		if !found || version > latest {
			latest = version
			found = true
		}
	}
	return latest, found, nil
}
