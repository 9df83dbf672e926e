package module

import "github.com/tsvm/typerunner/internal/typerunner/types"

// StoragePool builds the Module's interned string table while the compiler
// emits bytecode. Each entry is laid out `hash(u64) | length(u16) | bytes`,
// matching spec.md §3's Module.storage description; addresses handed back
// by Add are absolute byte offsets into the final Module buffer once the
// pool is appended after the header.
type StoragePool struct {
	buf []byte
}

// Add interns text, returning the absolute address of its entry's start
// within the final assembled Module buffer — the storage region always
// begins right after the fixed-size Jump header (headerSize bytes), so
// that offset is folded in here rather than left for Assemble to patch.
// Equal strings are not deduplicated — the compiler may still choose to
// cache its own symbol→address map, but the storage format itself does
// not require uniqueness.
func (s *StoragePool) Add(text string) uint32 {
	addr := headerSize + uint32(len(s.buf))
	hash := types.HashText(text)
	s.buf = PutUint64(s.buf, hash)
	s.buf = PutUint16(s.buf, uint16(len(text)))
	s.buf = append(s.buf, text...)
	return addr
}

// Bytes returns the packed storage region built so far.
func (s *StoragePool) Bytes() []byte {
	return s.buf
}

// Len reports the size in bytes of the storage region built so far.
func (s *StoragePool) Len() int {
	return len(s.buf)
}

// ReadStorage reads the entry at the given absolute address in bin,
// returning its text and content hash — the runtime counterpart of
// StoragePool.Add, used by the VM to materialize StringLiteral/
// NumberLiteral/BigIntLiteral operands.
func ReadStorage(bin []byte, addr uint32) (text string, hash uint64) {
	hash = ReadUint64(bin, addr)
	length := ReadUint16(bin, addr+8)
	start := addr + 10
	return string(bin[start : start+uint32(length)]), hash
}
