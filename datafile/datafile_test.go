package datafile_test

import (
	"testing"

	"github.com/spaolacci/murmur3"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/lakelet/datafile"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/util"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Column{Name: "id", Type: schema.Int},
		schema.Column{Name: "name", Type: schema.String},
		schema.Column{Name: "salary", Type: schema.Double},
		schema.Column{Name: "active", Type: schema.Bool},
	)
	require.NoError(t, err)
	return s
}

func testRows(n int) []schema.Row {
	rows := make([]schema.Row, n)
	for i := range rows {
		rows[i] = schema.Row{int64(i), "employee", float64(i) * 1000.5, i%2 == 0}
	}
	return rows
}

func TestRoundTrip(t *testing.T) {
	s := testSchema(t)
	rows := testRows(100)
	files, err := datafile.Encode(s, rows, 1<<20)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, int64(100), files[0].RowCount)
	require.Equal(t, int64(len(files[0].Data)), files[0].Size)

	decoded, err := datafile.Decode(s, files[0].Data)
	require.NoError(t, err)
	require.Equal(t, rows, decoded)
}

func TestEncodeSplitsByTargetSize(t *testing.T) {
	s := testSchema(t)
	rows := testRows(100)
	files, err := datafile.Encode(s, rows, 256)
	require.NoError(t, err)
	require.Greater(t, len(files), 1)

	var total int64
	var decoded []schema.Row
	names := make(map[string]bool)
	for _, file := range files {
		require.LessOrEqual(t, file.Size, int64(256))
		require.False(t, names[file.Name])
		names[file.Name] = true
		total += file.RowCount
		rows, err := datafile.Decode(s, file.Data)
		require.NoError(t, err)
		require.Len(t, rows, int(file.RowCount))
		decoded = append(decoded, rows...)
	}
	require.Equal(t, int64(100), total)
	require.Equal(t, rows, decoded)
}

func TestEncodeAlwaysWritesAtLeastOneRowPerFile(t *testing.T) {
	s := testSchema(t)
	rows := testRows(3)
	files, err := datafile.Encode(s, rows, 1)
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestEncodeEmptyBatch(t *testing.T) {
	files, err := datafile.Encode(testSchema(t), nil, 1<<20)
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestDecodeCorruption(t *testing.T) {
	s := testSchema(t)
	files, err := datafile.Encode(s, testRows(10), 1<<20)
	require.NoError(t, err)
	data := files[0].Data

	t.Run("short file", func(t *testing.T) {
		_, err := datafile.Decode(s, data[:8])
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("flipped bit", func(t *testing.T) {
		corrupted := append([]byte{}, data...)
		corrupted[len(corrupted)/2] ^= 0xff
		_, err := datafile.Decode(s, corrupted)
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("truncation", func(t *testing.T) {
		_, err := datafile.Decode(s, data[:len(data)-1])
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("schema arity mismatch", func(t *testing.T) {
		narrow, err := schema.New(schema.Column{Name: "id", Type: schema.Int})
		require.NoError(t, err)
		_, err = datafile.Decode(narrow, data)
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("schema type mismatch", func(t *testing.T) {
		twisted, err := schema.New(
			schema.Column{Name: "id", Type: schema.String},
			schema.Column{Name: "name", Type: schema.Int},
			schema.Column{Name: "salary", Type: schema.Double},
			schema.Column{Name: "active", Type: schema.Bool},
		)
		require.NoError(t, err)
		_, err = datafile.Decode(twisted, data)
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
}

// resign recomputes the checksum footer over a tampered body, producing a file
// that passes integrity validation but carries malformed content.
func resign(data []byte) []byte {
	body := data[:len(data)-16]
	h1, h2 := murmur3.Sum128(body)
	out := append([]byte{}, body...)
	footer := make([]byte, 16)
	util.U64(footer, h1)
	util.U64(footer[8:], h2)
	return append(out, footer...)
}

// TestDecodeMalformedBodyWithValidChecksum covers bodies whose checksum
// validates but whose declared counts and lengths do not fit the file. These
// must fail with ErrCorruptFile, never panic.
func TestDecodeMalformedBodyWithValidChecksum(t *testing.T) {
	stringSchema, err := schema.New(schema.Column{Name: "name", Type: schema.String})
	require.NoError(t, err)
	intSchema, err := schema.New(schema.Column{Name: "id", Type: schema.Int})
	require.NoError(t, err)

	// header is magic (4) + version (1) + column count (4) + row count (8)
	const rowCountOffset = 9
	const firstValueOffset = 18

	t.Run("string length exceeds body", func(t *testing.T) {
		files, err := datafile.Encode(stringSchema, []schema.Row{{"hi"}}, 1<<20)
		require.NoError(t, err)
		data := append([]byte{}, files[0].Data...)
		util.U32(data[firstValueOffset:], 1000)
		_, err = datafile.Decode(stringSchema, resign(data))
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("row count exceeds body", func(t *testing.T) {
		files, err := datafile.Encode(intSchema, []schema.Row{{int64(1)}}, 1<<20)
		require.NoError(t, err)
		data := append([]byte{}, files[0].Data...)
		util.U64(data[rowCountOffset:], 1<<40)
		_, err = datafile.Decode(intSchema, resign(data))
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("row count overruns fixed-width vector", func(t *testing.T) {
		files, err := datafile.Encode(intSchema, []schema.Row{{int64(1)}}, 1<<20)
		require.NoError(t, err)
		data := append([]byte{}, files[0].Data...)
		util.U64(data[rowCountOffset:], 2)
		_, err = datafile.Decode(intSchema, resign(data))
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
	t.Run("string row count overruns prefixes", func(t *testing.T) {
		rows := []schema.Row{{"aaaaaaaaaaaaaaaa"}}
		files, err := datafile.Encode(stringSchema, rows, 1<<20)
		require.NoError(t, err)
		data := append([]byte{}, files[0].Data...)
		util.U64(data[rowCountOffset:], 3)
		_, err = datafile.Decode(stringSchema, resign(data))
		require.ErrorIs(t, err, datafile.ErrCorruptFile)
	})
}
