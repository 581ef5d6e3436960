package util

/*
Encoding utilities for fixed-layout binary serialization. These functions do
not check lengths - callers must size buffers correctly and validate content
(i.e. via checksum validation first) before parsing, or a panic may result.
*/

import (
	"encoding/binary"
	"math"
)

////////////////////////////////////////////////////////////////////////////////

// U8 writes a uint8 to dst and returns the written length.
func U8(dst []byte, src uint8) int {
	dst[0] = src
	return 1
}

// U32 writes a uint32 to dst and returns the written length.
func U32(dst []byte, src uint32) int {
	binary.LittleEndian.PutUint32(dst, src)
	return 4
}

// U64 writes a uint64 to dst and returns the written length.
func U64(dst []byte, src uint64) int {
	binary.LittleEndian.PutUint64(dst, src)
	return 8
}

// F64 writes a float64 to dst and returns the written length.
func F64(dst []byte, src float64) int {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(src))
	return 8
}

// Bool writes a bool to dst and returns the written length.
func Bool(dst []byte, src bool) int {
	if src {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	return 1
}

// WritePrefixedString writes a length-prefixed string to dst and returns the
// written length.
func WritePrefixedString(dst []byte, s string) int {
	binary.LittleEndian.PutUint32(dst, uint32(len(s)))
	return 4 + copy(dst[4:], s)
}

// ReadU8 reads a uint8 from src and stores it in x, returning the read length.
func ReadU8(src []byte, x *uint8) int {
	*x = src[0]
	return 1
}

// ReadU32 reads a uint32 from src and stores it in x, returning the read length.
func ReadU32(src []byte, x *uint32) int {
	*x = binary.LittleEndian.Uint32(src)
	return 4
}

// ReadU64 reads a uint64 from src and stores it in x, returning the read length.
func ReadU64(src []byte, x *uint64) int {
	*x = binary.LittleEndian.Uint64(src)
	return 8
}

// ReadF64 reads a float64 from src and stores it in x, returning the read length.
func ReadF64(src []byte, x *float64) int {
	*x = math.Float64frombits(binary.LittleEndian.Uint64(src))
	return 8
}

// ReadBool reads a bool from src and stores it in x, returning the read length.
func ReadBool(src []byte, x *bool) int {
	*x = src[0] == 1
	return 1
}

// ReadPrefixedString reads a length-prefixed string from src and stores it in
// s, returning the read length.
func ReadPrefixedString(src []byte, s *string) int {
	length := int(binary.LittleEndian.Uint32(src))
	*s = string(src[4 : length+4])
	return 4 + length
}
