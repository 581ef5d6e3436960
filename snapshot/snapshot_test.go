package snapshot_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/snapshot"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/txlog"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Column{Name: "id", Type: schema.Int})
	require.NoError(t, err)
	return s
}

func commit(
	t *testing.T, log *txlog.Log, version uint64, op txlog.Operation,
	metadata *txlog.Metadata, adds []txlog.AddFile, removes []txlog.RemoveFile,
) {
	t.Helper()
	require.NoError(t, log.Propose(context.Background(), version, &txlog.Record{
		Adds:     adds,
		Removes:  removes,
		Metadata: metadata,
		Commit: txlog.CommitInfo{
			Timestamp: int64(1000 + version),
			User:      "tester",
			Operation: op,
		},
	}))
}

func add(path string, rows int64) txlog.AddFile {
	return txlog.AddFile{Path: path, Size: rows * 10, RowCount: rows, DataChange: true}
}

func paths(files []txlog.AddFile) []string {
	if len(files) == 0 {
		return nil
	}
	out := make([]string, len(files))
	for i, file := range files {
		out[i] = file.Path
	}
	return out
}

func TestResolveUninitialized(t *testing.T) {
	ctx := context.Background()
	resolver := snapshot.NewResolver(txlog.New(storage.NewMemStore(), "t"), 4)
	_, err := resolver.ResolveLatest(ctx)
	require.ErrorIs(t, err, snapshot.ErrTableNotInitialized)
}

func TestResolveReplaysAddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	log := txlog.New(storage.NewMemStore(), "t")
	resolver := snapshot.NewResolver(log, 4)

	metadata := &txlog.Metadata{ID: "abc", Format: "lakelet", Schema: testSchema(t)}
	commit(t, log, 0, txlog.OpCreate, metadata, nil, nil)
	commit(t, log, 1, txlog.OpInsert, nil, []txlog.AddFile{add("data/a", 5)}, nil)
	commit(t, log, 2, txlog.OpInsert, nil, []txlog.AddFile{add("data/b", 2)}, nil)
	commit(t, log, 3, txlog.OpUpdate, nil,
		[]txlog.AddFile{add("data/c", 5)},
		[]txlog.RemoveFile{{Path: "data/a", DeletionTimestamp: 1003}},
	)

	t.Run("historical versions", func(t *testing.T) {
		cases := []struct {
			version uint64
			files   []string
			rows    int64
		}{
			{0, nil, 0},
			{1, []string{"data/a"}, 5},
			{2, []string{"data/a", "data/b"}, 7},
			{3, []string{"data/b", "data/c"}, 7},
		}
		for _, c := range cases {
			t.Run(fmt.Sprintf("version %d", c.version), func(t *testing.T) {
				snap, err := resolver.Resolve(ctx, c.version)
				require.NoError(t, err)
				require.Equal(t, c.version, snap.Version)
				require.Equal(t, c.files, paths(snap.Files))
				require.Equal(t, c.rows, snap.RowCount())
				require.True(t, testSchema(t).Equal(snap.Schema()))
			})
		}
	})

	t.Run("latest", func(t *testing.T) {
		snap, err := resolver.ResolveLatest(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(3), snap.Version)
		require.Equal(t, []string{"data/b", "data/c"}, paths(snap.Files))
	})
}

func TestCheckpointTransparency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	log := txlog.New(store, "t")

	metadata := &txlog.Metadata{ID: "abc", Format: "lakelet", Schema: testSchema(t)}
	commit(t, log, 0, txlog.OpCreate, metadata, nil, nil)
	for version := uint64(1); version <= 8; version++ {
		var removes []txlog.RemoveFile
		if version%3 == 0 {
			removes = []txlog.RemoveFile{{Path: fmt.Sprintf("data/%d", version-1)}}
		}
		commit(t, log, version, txlog.OpInsert, nil,
			[]txlog.AddFile{add(fmt.Sprintf("data/%d", version), int64(version))}, removes)
	}

	// Resolve every version with no checkpoint in place.
	var want [][]string
	resolver := snapshot.NewResolver(log, 16)
	for version := uint64(0); version <= 8; version++ {
		snap, err := resolver.Resolve(ctx, version)
		require.NoError(t, err)
		want = append(want, paths(snap.Files))
	}

	// Write a checkpoint at version 5 and resolve with a fresh resolver. The
	// results must be identical for every version, before and after 5.
	snap5, err := resolver.Resolve(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, log.WriteCheckpoint(ctx, &txlog.Checkpoint{
		Version:  5,
		Metadata: snap5.Metadata,
		Files:    snap5.Files,
	}))
	fresh := snapshot.NewResolver(log, 16)
	for version := uint64(0); version <= 8; version++ {
		snap, err := fresh.Resolve(ctx, version)
		require.NoError(t, err)
		require.Equal(t, want[version], paths(snap.Files), "version %d", version)
		require.True(t, testSchema(t).Equal(snap.Schema()))
	}
}

func TestSchemaChangeReplay(t *testing.T) {
	ctx := context.Background()
	log := txlog.New(storage.NewMemStore(), "t")
	resolver := snapshot.NewResolver(log, 4)

	original := testSchema(t)
	widened, err := schema.New(
		schema.Column{Name: "id", Type: schema.Int},
		schema.Column{Name: "name", Type: schema.String},
	)
	require.NoError(t, err)

	commit(t, log, 0, txlog.OpCreate, &txlog.Metadata{ID: "abc", Schema: original}, nil, nil)
	commit(t, log, 1, txlog.OpSchemaChange, &txlog.Metadata{ID: "abc", Schema: widened}, nil, nil)

	snap0, err := resolver.Resolve(ctx, 0)
	require.NoError(t, err)
	require.True(t, original.Equal(snap0.Schema()))

	snap1, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.True(t, widened.Equal(snap1.Schema()))
}
