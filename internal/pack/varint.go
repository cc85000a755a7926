// Package pack implements the low-level packed-integer and block primitives
// shared by every on-disk block family: unsigned LEB128 varints, packed
// 16-bit position arrays, and a skip-scan helper over sorted fixed-size
// records (spec.md §4.1, §6 "Varint format").
package pack

import "encoding/binary"

// PutUvarint appends the LEB128 encoding of v to dst and returns the
// extended slice. This is the wire format named in spec.md §6.
func PutUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Uvarint decodes a LEB128 value from src, returning the value and the
// number of bytes consumed. Returns (0, 0) if src does not hold a complete
// varint, matching encoding/binary.Uvarint's convention.
func Uvarint(src []byte) (uint64, int) {
	return binary.Uvarint(src)
}

// PutUint16 appends a little-endian 16-bit position value, per spec.md §6:
// "Position integer format (in all packed blobs): little-endian 16-bit
// unsigned."
func PutUint16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

// Uint16 reads a little-endian 16-bit value at offset off.
func Uint16(src []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(src[off : off+2])
}

// PutUint32 appends a little-endian 32-bit value (used for docno base
// fields inside DocIndexNode and StructureField group headers).
func PutUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// Uint32 reads a little-endian 32-bit value at offset off.
func Uint32(src []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(src[off : off+4])
}
