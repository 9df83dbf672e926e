package module

import (
	"github.com/google/uuid"

	"github.com/tsvm/typerunner/internal/typerunner/isa"
)

// AddressPatch marks a spot inside a CompiledSubroutine's Code that holds a
// placeholder subroutine index rather than a final bytecode address — used
// by Call, TailCall, TypeArgumentDefault, and Set operands, all of which
// reference another subroutine's body before that body's final address in
// the assembled Module is known.
type AddressPatch struct {
	Offset uint32
	Target int // index into Builder.Subroutines
}

// SourceMapRecord is a source-map entry expressed in a subroutine's local
// coordinates; Assemble converts LocalOffset to an absolute bytecode
// position once every subroutine's BodyAddr is known.
type SourceMapRecord struct {
	SubroutineIndex int
	LocalOffset     uint32
	SourcePos       uint32
	SourceEnd       uint32
}

// CompiledSubroutine is one subroutine body as the compiler package hands
// it to Assemble: raw bytecode plus the cross-subroutine references still
// needing resolution.
type CompiledSubroutine struct {
	Name       string
	NameAddr   uint32
	Code       []byte
	Patches    []AddressPatch
	Flags      isa.SubroutineFlag
	ParamCount uint16
}

// Builder accumulates a StoragePool and a set of compiled subroutines and
// produces a finished Module. Subroutine 0 is always the module's Main body,
// matching the header layout in spec.md §4.2.
type Builder struct {
	Storage     *StoragePool
	Subroutines []*CompiledSubroutine
	SourceMap   []SourceMapRecord
}

// NewBuilder creates an empty Builder with a fresh StoragePool.
func NewBuilder() *Builder {
	return &Builder{Storage: &StoragePool{}}
}

// headerSize is the fixed width of the leading Jump pseudo-instruction:
// one opcode byte plus a u32 absolute address. It never changes, which is
// what lets StoragePool.Add hand out final, absolute addresses while the
// compiler is still emitting bytecode — nothing downstream of the header
// shifts the storage region.
const headerSize = 5

// subroutineEntrySize is the width of one Subroutine header entry:
// opcode + nameAddr(u32) + bodyAddr(u32) + flags(u8) + paramCount(u16).
const subroutineEntrySize = 1 + 4 + 4 + 1 + 2

// Assemble lays out the header, storage pool, source map, and subroutine
// table, concatenates subroutine bodies in order, patches every
// cross-subroutine address reference, and returns the finished Module.
func (b *Builder) Assemble() *Module {
	storageLen := uint32(b.Storage.Len())
	sourceMapStart := headerSize + storageLen
	sourceMapRegionSize := uint32(1+4) + uint32(len(b.SourceMap))*12
	subroutineTableStart := sourceMapStart + sourceMapRegionSize
	subroutineTableSize := uint32(len(b.Subroutines)) * subroutineEntrySize
	mainOpAddr := subroutineTableStart + subroutineTableSize
	mainAddress := mainOpAddr + 1

	bodyAddrs := make([]uint32, len(b.Subroutines))
	cursor := mainAddress
	for i, sub := range b.Subroutines {
		bodyAddrs[i] = cursor
		cursor += uint32(len(sub.Code))
	}

	for _, sub := range b.Subroutines {
		for _, p := range sub.Patches {
			target := bodyAddrs[p.Target]
			copy(sub.Code[p.Offset:p.Offset+4], encodeUint32(target))
		}
	}

	bin := make([]byte, 0, cursor)
	bin = append(bin, byte(isa.Jump))
	bin = PutUint32(bin, mainOpAddr)
	bin = append(bin, b.Storage.Bytes()...)

	bin = append(bin, byte(isa.SourceMap))
	bin = PutUint32(bin, sourceMapRegionSize-5)
	entries := make([]SourceMapEntry, len(b.SourceMap))
	for i, rec := range b.SourceMap {
		abs := bodyAddrs[rec.SubroutineIndex] + rec.LocalOffset
		entries[i] = SourceMapEntry{BytecodePos: abs, SourcePos: rec.SourcePos, SourceEnd: rec.SourceEnd}
		bin = PutUint32(bin, abs)
		bin = PutUint32(bin, rec.SourcePos)
		bin = PutUint32(bin, rec.SourceEnd)
	}

	subroutines := make([]*Subroutine, len(b.Subroutines))
	for i, sub := range b.Subroutines {
		bin = append(bin, byte(isa.Subroutine))
		bin = PutUint32(bin, sub.NameAddr)
		bin = PutUint32(bin, bodyAddrs[i])
		bin = append(bin, byte(sub.Flags))
		bin = PutUint16(bin, sub.ParamCount)
		subroutines[i] = &Subroutine{
			Name:       sub.Name,
			NameAddr:   sub.NameAddr,
			BodyAddr:   bodyAddrs[i],
			Flags:      sub.Flags,
			ParamCount: sub.ParamCount,
		}
	}

	bin = append(bin, byte(isa.Main))
	for _, sub := range b.Subroutines {
		bin = append(bin, sub.Code...)
	}

	return &Module{
		ID:          uuid.New(),
		Bin:         bin,
		MainAddress: mainAddress,
		Subroutines: subroutines,
		SourceMap:   entries,
	}
}

func encodeUint32(v uint32) []byte {
	return PutUint32(nil, v)
}
