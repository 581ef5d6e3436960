package txlog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/wkalt/lakelet/storage"
)

/*
Checkpoints consolidate the replay prefix of the log into a single file, so
that resolving a snapshot replays only the commits after the checkpoint. They
are purely an optimization: the log alone is authoritative, and a missing or
stale checkpoint changes replay cost but never query results.

Checkpoint files live alongside commit files, named with the version number
plus a distinguishing suffix. A _last_checkpoint pointer object is maintained
best-effort as a discovery shortcut; readers fall back to listing when it is
missing, stale, or ahead of the version being resolved.
*/

////////////////////////////////////////////////////////////////////////////////

const lastCheckpointName = "_last_checkpoint"

// Checkpoint is a consolidated snapshot of the table at a version.
type Checkpoint struct {
	Version  uint64    `json:"version"`
	Metadata *Metadata `json:"metaData"`
	Files    []AddFile `json:"files"`
}

type lastCheckpoint struct {
	Version uint64 `json:"version"`
}

func (l *Log) lastCheckpointPath() string {
	return path.Join(l.prefix, logDir, lastCheckpointName)
}

// WriteCheckpoint writes a checkpoint file for a version. Writing is
// idempotent: checkpoint content for a version is fully determined by the
// log, so overwrites are harmless.
func (l *Log) WriteCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := l.store.Put(ctx, l.checkpointPath(checkpoint.Version), data); err != nil {
		return fmt.Errorf("failed to write checkpoint %d: %w", checkpoint.Version, err)
	}
	pointer, err := json.Marshal(lastCheckpoint{Version: checkpoint.Version})
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint pointer: %w", err)
	}
	// Pointer is best-effort: a stale pointer only costs a listing.
	if err := l.store.Put(ctx, l.lastCheckpointPath(), pointer); err != nil {
		return fmt.Errorf("failed to write checkpoint pointer: %w", err)
	}
	return nil
}

// ReadCheckpoint reads the checkpoint at the given version.
func (l *Log) ReadCheckpoint(ctx context.Context, version uint64) (*Checkpoint, error) {
	data, err := l.get(ctx, l.checkpointPath(version))
	if err != nil {
		return nil, err
	}
	checkpoint := &Checkpoint{}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint at version %d of %s: %w", version, l.prefix, err)
	}
	return checkpoint, nil
}

// LatestCheckpoint returns the newest checkpoint with version <= maxVersion.
// The boolean is false when no such checkpoint exists.
func (l *Log) LatestCheckpoint(ctx context.Context, maxVersion uint64) (*Checkpoint, bool, error) {
	if version, ok := l.readLastCheckpointPointer(ctx); ok && version <= maxVersion {
		checkpoint, err := l.ReadCheckpoint(ctx, version)
		if err == nil {
			return checkpoint, true, nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			return nil, false, err
		}
	}
	version, ok, err := l.latestCheckpointVersion(ctx, maxVersion)
	if err != nil || !ok {
		return nil, false, err
	}
	checkpoint, err := l.ReadCheckpoint(ctx, version)
	if err != nil {
		return nil, false, err
	}
	return checkpoint, true, nil
}

func (l *Log) readLastCheckpointPointer(ctx context.Context) (uint64, bool) {
	data, err := l.store.Get(ctx, l.lastCheckpointPath())
	if err != nil {
		return 0, false
	}
	pointer := lastCheckpoint{}
	if err := json.Unmarshal(data, &pointer); err != nil {
		return 0, false
	}
	return pointer.Version, true
}

func (l *Log) latestCheckpointVersion(ctx context.Context, maxVersion uint64) (uint64, bool, error) {
	ids, err := l.list(ctx)
	if err != nil {
		return 0, false, err
	}
	latest, found := uint64(0), false
	for _, id := range ids {
		name := strings.TrimPrefix(id, l.logPrefix())
		if !strings.HasSuffix(name, checkpointSuffix) {
			continue
		}
		name = strings.TrimSuffix(name, checkpointSuffix)
		version, err := strconv.ParseUint(name, 10, 64)
		if err != nil || len(name) != versionWidth {
			continue
		}
		if version > maxVersion {
			continue
		}
		if !found || version > latest {
			latest = version
			found = true
		}
	}
	return latest, found, nil
}
