package table_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/table"
	"github.com/wkalt/lakelet/txlog"
)

func employeeSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Column{Name: "id", Type: schema.Int},
		schema.Column{Name: "name", Type: schema.String},
		schema.Column{Name: "salary", Type: schema.Double},
	)
	require.NoError(t, err)
	return s
}

func employee(id int64, name string, salary float64) schema.Row {
	return schema.Row{id, name, salary}
}

func livePaths(t *testing.T, ctx context.Context, store storage.Provider, location string) map[string]bool {
	t.Helper()
	log := txlog.New(store, location)
	latest, ok, err := log.LatestVersion(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	live := make(map[string]bool)
	for version := uint64(0); version <= latest; version++ {
		record, err := log.ReadRecord(ctx, version)
		require.NoError(t, err)
		for _, remove := range record.Removes {
			delete(live, remove.Path)
		}
		for _, add := range record.Adds {
			live[add.Path] = true
		}
	}
	return live
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "tables/employees")

	t.Run("create initializes version zero", func(t *testing.T) {
		require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
		detail, err := tbl.DescribeDetail(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(0), detail.Version)
		require.Equal(t, "lakelet", detail.Format)
		require.Equal(t, int64(0), detail.NumFiles)
		require.NotEmpty(t, detail.ID)
	})
	t.Run("create of existing table fails", func(t *testing.T) {
		err := tbl.Create(ctx, employeeSchema(t))
		require.ErrorIs(t, err, table.TableExistsError{})
	})
	t.Run("invalid schema is rejected", func(t *testing.T) {
		other := table.New(store, "tables/other")
		require.Error(t, other.Create(ctx, &schema.Schema{}))
	})
}

func TestOperationsOnMissingTable(t *testing.T) {
	ctx := context.Background()
	tbl := table.New(storage.NewMemStore(), "tables/missing")

	_, err := tbl.Query(ctx)
	require.ErrorIs(t, err, table.TableNotFoundError{})
	_, err = tbl.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.ErrorIs(t, err, table.TableNotFoundError{})
	_, err = tbl.DescribeHistory(ctx)
	require.ErrorIs(t, err, table.TableNotFoundError{})
	_, err = tbl.DescribeDetail(ctx)
	require.ErrorIs(t, err, table.TableNotFoundError{})
}

// TestEmployeeScenario walks the table through the canonical create, insert,
// duplicate insert, and copy-on-write update sequence, checking the visible
// data, versions, file turnover, and history at each step.
func TestEmployeeScenario(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "tables/employees")

	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))

	version, err := tbl.Insert(ctx, []schema.Row{
		employee(1, "John", 100000),
		employee(2, "Jane", 120000),
		employee(3, "Bob", 80000),
		employee(4, "Alice", 90000),
		employee(5, "Mary", 110000),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), version)

	version, err = tbl.Insert(ctx, []schema.Row{
		employee(6, "John", 100000),
		employee(7, "Jane", 120000),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2), version)

	rows, err := tbl.Query(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	liveBefore := livePaths(t, ctx, store, "tables/employees")

	version, err = tbl.Update(ctx,
		table.ColumnPredicate("name", table.Eq, "John"),
		table.Assignments(table.Assignment{Column: "salary", Op: table.Mul, Value: 1.1}),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(3), version)

	t.Run("both Johns are updated, others unchanged", func(t *testing.T) {
		rows, err := tbl.Query(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 7)
		salaries := make(map[int64]float64)
		for _, row := range rows {
			salaries[row[0].(int64)] = row[2].(float64)
		}
		require.Equal(t, 100000*1.1, salaries[1])
		require.Equal(t, 100000*1.1, salaries[6])
		require.Equal(t, float64(120000), salaries[2])
		require.Equal(t, float64(80000), salaries[3])
		require.Equal(t, float64(90000), salaries[4])
		require.Equal(t, float64(110000), salaries[5])
		require.Equal(t, float64(120000), salaries[7])
	})

	t.Run("rewritten files are replaced", func(t *testing.T) {
		liveAfter := livePaths(t, ctx, store, "tables/employees")
		// Every pre-update file contained a John, so the file sets are disjoint.
		for path := range liveBefore {
			require.False(t, liveAfter[path], "old file %s still live", path)
		}
		require.NotEmpty(t, liveAfter)
	})

	t.Run("history is complete and ordered", func(t *testing.T) {
		history, err := tbl.DescribeHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 4)
		ops := make([]txlog.Operation, len(history))
		for i, commit := range history {
			require.Equal(t, uint64(i), commit.Version)
			ops[i] = commit.Operation
		}
		require.Equal(t, []txlog.Operation{
			txlog.OpCreate, txlog.OpInsert, txlog.OpInsert, txlog.OpUpdate,
		}, ops)
		require.Equal(t, `name = "John"`, history[3].OperationParameters["predicate"])
	})

	t.Run("time travel sees historical data", func(t *testing.T) {
		rows, err := tbl.QueryAt(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rows, 5)
		rows, err = tbl.QueryAt(ctx, 2)
		require.NoError(t, err)
		require.Len(t, rows, 7)
		for _, row := range rows {
			if row[1].(string) == "John" {
				require.Equal(t, float64(100000), row[2].(float64))
			}
		}
	})

	t.Run("describe detail is idempotent", func(t *testing.T) {
		first, err := tbl.DescribeDetail(ctx)
		require.NoError(t, err)
		second, err := tbl.DescribeDetail(ctx)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestUpdateTouchesOnlyMatchingFiles(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))

	_, err := tbl.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.NoError(t, err)
	_, err = tbl.Insert(ctx, []schema.Row{employee(2, "Jane", 120000)})
	require.NoError(t, err)

	liveBefore := livePaths(t, ctx, store, "t")
	_, err = tbl.Update(ctx,
		table.ColumnPredicate("name", table.Eq, "Jane"),
		table.Assignments(table.Assignment{Column: "salary", Op: table.Set, Value: 130000.0}),
	)
	require.NoError(t, err)
	liveAfter := livePaths(t, ctx, store, "t")

	surviving := 0
	for path := range liveBefore {
		if liveAfter[path] {
			surviving++
		}
	}
	// The John file had no matches and must not have been rewritten.
	require.Equal(t, 1, surviving)
}

func TestUpdateWithNoMatches(t *testing.T) {
	ctx := context.Background()
	tbl := table.New(storage.NewMemStore(), "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
	_, err := tbl.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.NoError(t, err)

	version, err := tbl.Update(ctx,
		table.ColumnPredicate("name", table.Eq, "Nobody"),
		table.Assignments(table.Assignment{Column: "salary", Op: table.Set, Value: 0.0}),
	)
	require.NoError(t, err)
	require.Equal(t, uint64(2), version)

	rows, err := tbl.Query(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, float64(100000), rows[0][2])
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	tbl := table.New(storage.NewMemStore(), "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
	_, err := tbl.Insert(ctx, []schema.Row{
		employee(1, "John", 100000),
		employee(2, "Jane", 120000),
	})
	require.NoError(t, err)

	t.Run("delete drops matching rows", func(t *testing.T) {
		version, err := tbl.Delete(ctx, table.ColumnPredicate("name", table.Eq, "John"))
		require.NoError(t, err)
		require.Equal(t, uint64(2), version)
		rows, err := tbl.Query(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Jane", rows[0][1])
	})
	t.Run("deleting every row leaves an empty table", func(t *testing.T) {
		_, err := tbl.Delete(ctx, table.ColumnPredicate("id", table.Gt, int64(0)))
		require.NoError(t, err)
		rows, err := tbl.Query(ctx)
		require.NoError(t, err)
		require.Empty(t, rows)
		detail, err := tbl.DescribeDetail(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(0), detail.NumFiles)
	})
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))

	n := 8
	var wg sync.WaitGroup
	versions := make([]uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Each writer gets its own engine, as separate processes would.
			engine := table.New(store, "t")
			version, err := engine.Insert(ctx, []schema.Row{
				employee(int64(i), "worker", float64(i)),
			})
			require.NoError(t, err)
			versions[i] = version
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, version := range versions {
		require.False(t, seen[version], "version %d assigned twice", version)
		seen[version] = true
	}

	rows, err := tbl.Query(ctx)
	require.NoError(t, err)
	require.Len(t, rows, n)
	ids := make(map[int64]bool)
	for _, row := range rows {
		ids[row[0].(int64)] = true
	}
	require.Len(t, ids, n)
}

// conflictStore wedges every commit proposal to exercise retry exhaustion.
type conflictStore struct {
	storage.Provider
}

func (c *conflictStore) PutIfAbsent(ctx context.Context, id string, data []byte) error {
	if strings.Contains(id, "_log/") && strings.HasSuffix(id, ".json") {
		return storage.ErrObjectExists
	}
	return c.Provider.PutIfAbsent(ctx, id, data)
}

func TestRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))

	wedged := table.New(&conflictStore{store}, "t", table.WithMaxRetries(3))
	_, err := wedged.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.ErrorIs(t, err, table.ErrConcurrentModification)
}

func TestCheckpointing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "t", table.WithCheckpointInterval(3))
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
	for i := 0; i < 7; i++ {
		_, err := tbl.Insert(ctx, []schema.Row{employee(int64(i), "worker", 1000)})
		require.NoError(t, err)
	}

	ids, err := store.List(ctx, "t/_log/")
	require.NoError(t, err)
	checkpoints := 0
	for _, id := range ids {
		if strings.HasSuffix(id, ".checkpoint.json") {
			checkpoints++
		}
	}
	require.Greater(t, checkpoints, 0)

	// A fresh engine resolves through the checkpoint and sees identical data.
	fresh := table.New(store, "t")
	rows, err := fresh.Query(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	for version := uint64(1); version <= 7; version++ {
		rows, err := fresh.QueryAt(ctx, version)
		require.NoError(t, err)
		require.Len(t, rows, int(version))
	}
}

func TestQueryAsOf(t *testing.T) {
	ctx := context.Background()
	tbl := table.New(storage.NewMemStore(), "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))

	_, err := tbl.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	mid := time.Now()
	time.Sleep(5 * time.Millisecond)
	_, err = tbl.Insert(ctx, []schema.Row{employee(2, "Jane", 120000)})
	require.NoError(t, err)

	t.Run("as of a mid point sees the first insert only", func(t *testing.T) {
		rows, err := tbl.QueryAsOf(ctx, mid)
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})
	t.Run("as of now sees everything", func(t *testing.T) {
		rows, err := tbl.QueryAsOf(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, rows, 2)
	})
	t.Run("as of before creation fails", func(t *testing.T) {
		_, err := tbl.QueryAsOf(ctx, time.Now().Add(-time.Hour))
		require.Error(t, err)
	})
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	tbl := table.New(store, "t")
	require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
	_, err := tbl.Insert(ctx, []schema.Row{employee(1, "John", 100000)})
	require.NoError(t, err)

	require.NoError(t, tbl.Drop(ctx))
	_, err = tbl.Query(ctx)
	require.ErrorIs(t, err, table.TableNotFoundError{})

	ids, err := store.List(ctx, "t/")
	require.NoError(t, err)
	require.Empty(t, ids)

	t.Run("dropped location can be recreated", func(t *testing.T) {
		require.NoError(t, tbl.Create(ctx, employeeSchema(t)))
		rows, err := tbl.Query(ctx)
		require.NoError(t, err)
		require.Empty(t, rows)
	})
	t.Run("dropping a missing table is a no-op", func(t *testing.T) {
		other := table.New(store, "never-created")
		require.NoError(t, other.Drop(ctx))
	})
}
