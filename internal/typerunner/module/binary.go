// Package module implements the Module binary file format described in
// spec.md §4.2: a self-contained, little-endian byte buffer combining a
// header, an interned-string storage pool, a source map, a subroutine
// table, and the concatenated subroutine bodies themselves. Grounded on
// original_source/src/checker/vm2.h's Module/parseHeader and on the
// teacher's EncodedInstruction/Program encode-decode pair
// (vm/instruction.go), adapted from the teacher's field-element words to
// this format's byte-oriented layout.
package module

import "encoding/binary"

// PutUint32 appends v to buf in little-endian order.
func PutUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutUint16 appends v to buf in little-endian order.
func PutUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// PutInt32 appends the little-endian two's-complement encoding of v.
func PutInt32(buf []byte, v int32) []byte {
	return PutUint32(buf, uint32(v))
}

// PutUint64 appends v to buf in little-endian order.
func PutUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ReadUint32 reads a little-endian u32 at offset.
func ReadUint32(bin []byte, offset uint32) uint32 {
	return binary.LittleEndian.Uint32(bin[offset : offset+4])
}

// ReadUint16 reads a little-endian u16 at offset.
func ReadUint16(bin []byte, offset uint32) uint16 {
	return binary.LittleEndian.Uint16(bin[offset : offset+2])
}

// ReadInt32 reads a little-endian, signed two's-complement i32 at offset —
// used for Jump/JumpCondition relative displacements.
func ReadInt32(bin []byte, offset uint32) int32 {
	return int32(ReadUint32(bin, offset))
}

// ReadUint64 reads a little-endian u64 at offset — used for storage-entry
// content hashes.
func ReadUint64(bin []byte, offset uint32) uint64 {
	return binary.LittleEndian.Uint64(bin[offset : offset+8])
}
