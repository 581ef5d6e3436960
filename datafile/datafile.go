package datafile

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"
	"github.com/wkalt/lakelet/schema"
	"github.com/wkalt/lakelet/util"
)

/*
datafile implements the immutable columnar container the engine stores row
batches in. Files are written once and never modified; mutations rewrite whole
files and swap the references in the transaction log.

Layout:

	magic (4 bytes)
	format version (1 byte)
	column count (4 bytes)
	row count (8 bytes)
	per column, in schema order:
	  type tag (1 byte)
	  value vector (fixed 8 bytes per value for int/double, 1 for bool,
	    length-prefixed for string)
	checksum (16 bytes, murmur3-128 of all preceding bytes)

The checksum is validated before any content is parsed. It only proves the
body matches its own footer, not that the body is well formed, so the parse
path additionally bounds-checks counts and lengths against the body before
reading.
*/

////////////////////////////////////////////////////////////////////////////////

var magic = []byte{0x4c, 0x4b, 0x4c, 0x54} // "LKLT"

const (
	formatVersion = uint8(1)

	headerSize   = 4 + 1 + 4 + 8
	checksumSize = 16
)

// ErrCorruptFile is returned when a data file does not match the expected
// container format or schema.
var ErrCorruptFile = errors.New("corrupt data file")

// File is an encoded data file ready for storage, along with its statistics.
type File struct {
	Name     string
	Data     []byte
	RowCount int64
	Size     int64
}

// NewName returns a unique data file name.
func NewName() string {
	return "part-" + uuid.NewString() + ".lkl"
}

func valueSize(t schema.Type, value any) int {
	switch t {
	case schema.Int, schema.Double:
		return 8
	case schema.Bool:
		return 1
	case schema.String:
		return 4 + len(value.(string))
	default:
		return 0
	}
}

func rowSize(s *schema.Schema, row schema.Row) int {
	size := 0
	for i, col := range s.Columns {
		size += valueSize(col.Type, row[i])
	}
	return size
}

// Encode serializes a normalized row batch into one or more data files,
// splitting by the maxFileBytes target size. Every file holds at least one
// row regardless of the threshold.
func Encode(s *schema.Schema, rows []schema.Row, maxFileBytes int64) ([]File, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var files []File
	var chunk []schema.Row
	overhead := headerSize + len(s.Columns) + checksumSize
	size := overhead
	for _, row := range rows {
		if len(row) != len(s.Columns) {
			return nil, fmt.Errorf("row has %d values, schema has %d columns", len(row), len(s.Columns))
		}
		rsize := rowSize(s, row)
		if len(chunk) > 0 && int64(size+rsize) > maxFileBytes {
			file, err := encodeOne(s, chunk, size)
			if err != nil {
				return nil, err
			}
			files = append(files, file)
			chunk = nil
			size = overhead
		}
		chunk = append(chunk, row)
		size += rsize
	}
	file, err := encodeOne(s, chunk, size)
	if err != nil {
		return nil, err
	}
	return append(files, file), nil
}

func encodeOne(s *schema.Schema, rows []schema.Row, size int) (File, error) {
	buf := make([]byte, size)
	offset := copy(buf, magic)
	offset += util.U8(buf[offset:], formatVersion)
	offset += util.U32(buf[offset:], uint32(len(s.Columns)))
	offset += util.U64(buf[offset:], uint64(len(rows)))
	for i, col := range s.Columns {
		offset += util.U8(buf[offset:], uint8(col.Type))
		for _, row := range rows {
			n, err := encodeValue(buf[offset:], col.Type, row[i])
			if err != nil {
				return File{}, fmt.Errorf("column %s: %w", col.Name, err)
			}
			offset += n
		}
	}
	h1, h2 := murmur3.Sum128(buf[:offset])
	offset += util.U64(buf[offset:], h1)
	offset += util.U64(buf[offset:], h2)
	if offset != size {
		return File{}, fmt.Errorf("encoded %d bytes, expected %d", offset, size)
	}
	return File{
		Name:     NewName(),
		Data:     buf,
		RowCount: int64(len(rows)),
		Size:     int64(size),
	}, nil
}

func encodeValue(dst []byte, t schema.Type, value any) (int, error) {
	switch t {
	case schema.Int:
		v, ok := value.(int64)
		if !ok {
			return 0, fmt.Errorf("value %v (%T) is not an int64", value, value)
		}
		return util.U64(dst, uint64(v)), nil
	case schema.Double:
		v, ok := value.(float64)
		if !ok {
			return 0, fmt.Errorf("value %v (%T) is not a float64", value, value)
		}
		return util.F64(dst, v), nil
	case schema.String:
		v, ok := value.(string)
		if !ok {
			return 0, fmt.Errorf("value %v (%T) is not a string", value, value)
		}
		return util.WritePrefixedString(dst, v), nil
	case schema.Bool:
		v, ok := value.(bool)
		if !ok {
			return 0, fmt.Errorf("value %v (%T) is not a bool", value, value)
		}
		return util.Bool(dst, v), nil
	default:
		return 0, fmt.Errorf("unsupported type %s", t)
	}
}

// Decode parses a data file into rows. It returns ErrCorruptFile when the
// bytes do not match the container format, the checksum does not validate, or
// the column layout does not match the schema.
func Decode(s *schema.Schema, data []byte) ([]schema.Row, error) {
	if len(data) < headerSize+checksumSize {
		return nil, fmt.Errorf("%w: short file (%d bytes)", ErrCorruptFile, len(data))
	}
	body := data[:len(data)-checksumSize]
	var h1, h2 uint64
	offset := len(body)
	offset += util.ReadU64(data[offset:], &h1)
	util.ReadU64(data[offset:], &h2)
	sum1, sum2 := murmur3.Sum128(body)
	if h1 != sum1 || h2 != sum2 {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptFile)
	}
	offset = 0
	for i, b := range magic {
		if body[offset+i] != b {
			return nil, fmt.Errorf("%w: bad magic", ErrCorruptFile)
		}
	}
	offset += len(magic)
	var version uint8
	offset += util.ReadU8(body[offset:], &version)
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptFile, version)
	}
	var columnCount uint32
	offset += util.ReadU32(body[offset:], &columnCount)
	if int(columnCount) != len(s.Columns) {
		return nil, fmt.Errorf("%w: file has %d columns, schema has %d",
			ErrCorruptFile, columnCount, len(s.Columns))
	}
	var rowCount uint64
	offset += util.ReadU64(body[offset:], &rowCount)
	remaining := len(body) - offset
	if rowCount > uint64(remaining) || int(rowCount)*minRowSize(s)+len(s.Columns) > remaining {
		return nil, fmt.Errorf("%w: row count %d exceeds file size", ErrCorruptFile, rowCount)
	}
	rows := make([]schema.Row, rowCount)
	for i := range rows {
		rows[i] = make(schema.Row, columnCount)
	}
	for i, col := range s.Columns {
		if offset >= len(body) {
			return nil, fmt.Errorf("%w: truncated column %s", ErrCorruptFile, col.Name)
		}
		var tag uint8
		offset += util.ReadU8(body[offset:], &tag)
		if schema.Type(tag) != col.Type {
			return nil, fmt.Errorf("%w: column %s has type tag %d, schema says %s",
				ErrCorruptFile, col.Name, tag, col.Type)
		}
		for j := uint64(0); j < rowCount; j++ {
			n, value, err := decodeValue(body[offset:], col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			rows[j][i] = value
			offset += n
		}
	}
	if offset != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptFile, len(body)-offset)
	}
	return rows, nil
}

// minRowSize returns the smallest possible encoded size of one row, used to
// sanity-check the declared row count before allocating.
func minRowSize(s *schema.Schema) int {
	size := 0
	for _, col := range s.Columns {
		switch col.Type {
		case schema.Int, schema.Double:
			size += 8
		case schema.String:
			size += 4
		default:
			size++
		}
	}
	return size
}

func decodeValue(src []byte, t schema.Type) (int, any, error) {
	switch t {
	case schema.Int:
		if len(src) < 8 {
			return 0, nil, fmt.Errorf("%w: truncated value", ErrCorruptFile)
		}
		var v uint64
		n := util.ReadU64(src, &v)
		return n, int64(v), nil
	case schema.Double:
		if len(src) < 8 {
			return 0, nil, fmt.Errorf("%w: truncated value", ErrCorruptFile)
		}
		var v float64
		n := util.ReadF64(src, &v)
		return n, v, nil
	case schema.String:
		if len(src) < 4 {
			return 0, nil, fmt.Errorf("%w: truncated value", ErrCorruptFile)
		}
		var length uint32
		util.ReadU32(src, &length)
		if uint64(len(src)) < 4+uint64(length) {
			return 0, nil, fmt.Errorf("%w: string length %d exceeds file size",
				ErrCorruptFile, length)
		}
		var v string
		n := util.ReadPrefixedString(src, &v)
		return n, v, nil
	case schema.Bool:
		if len(src) < 1 {
			return 0, nil, fmt.Errorf("%w: truncated value", ErrCorruptFile)
		}
		var v bool
		n := util.ReadBool(src, &v)
		return n, v, nil
	default:
		return 0, nil, fmt.Errorf("%w: unsupported type %s", ErrCorruptFile, t)
	}
}
