package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/table"
)

func TestOpenTable(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	location := filepath.Join(root, "employees")
	require.NoError(t, os.Mkdir(location, 0o755))

	t.Run("errors name the table", func(t *testing.T) {
		_, err := openTable(location).Query(ctx)
		require.ErrorIs(t, err, table.TableNotFoundError{})
		require.Contains(t, err.Error(), "employees")
	})

	t.Run("reads a table created at the location", func(t *testing.T) {
		store, err := storage.NewDirectoryStore(root)
		require.NoError(t, err)
		tbl := table.New(store, "employees")
		s, err := schema.New(schema.Column{Name: "id", Type: schema.Int})
		require.NoError(t, err)
		require.NoError(t, tbl.Create(ctx, s))
		_, err = tbl.Insert(ctx, []schema.Row{{int64(1)}, {int64(2)}})
		require.NoError(t, err)

		rows, err := openTable(location).Query(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})
}
