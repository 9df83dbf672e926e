package module

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tsvm/typerunner/internal/typerunner/isa"
)

// Parse reconstructs a Module's resolved tables by scanning a raw bytecode
// buffer's header, mirroring parseHeader in original_source/src/checker/
// vm2.h. It is the counterpart to Builder.Assemble, used when a Module is
// loaded from a serialized .tsvmc file rather than freshly compiled.
func Parse(bin []byte) (*Module, error) {
	if len(bin) < headerSize || isa.Op(bin[0]) != isa.Jump {
		return nil, fmt.Errorf("module: missing Jump header at offset 0")
	}
	mainOpAddr := ReadUint32(bin, 1)
	offset := uint32(headerSize)

	for offset < uint32(len(bin)) && isa.Op(bin[offset]) != isa.SourceMap {
		offset++
	}
	if offset >= uint32(len(bin)) {
		return nil, fmt.Errorf("module: missing SourceMap region")
	}
	regionSize := ReadUint32(bin, offset+1)
	offset += 5
	count := regionSize / 12
	sourceMap := make([]SourceMapEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		pos := ReadUint32(bin, offset)
		sourcePos := ReadUint32(bin, offset+4)
		sourceEnd := ReadUint32(bin, offset+8)
		sourceMap = append(sourceMap, SourceMapEntry{BytecodePos: pos, SourcePos: sourcePos, SourceEnd: sourceEnd})
		offset += 12
	}

	var subroutines []*Subroutine
	for offset < mainOpAddr && isa.Op(bin[offset]) == isa.Subroutine {
		nameAddr := ReadUint32(bin, offset+1)
		bodyAddr := ReadUint32(bin, offset+5)
		flags := isa.SubroutineFlag(bin[offset+9])
		paramCount := ReadUint16(bin, offset+10)
		name, _ := ReadStorage(bin, nameAddr)
		subroutines = append(subroutines, &Subroutine{
			Name:       name,
			NameAddr:   nameAddr,
			BodyAddr:   bodyAddr,
			Flags:      flags,
			ParamCount: paramCount,
		})
		offset += subroutineEntrySize
	}
	if offset != mainOpAddr || isa.Op(bin[mainOpAddr]) != isa.Main {
		return nil, fmt.Errorf("module: subroutine table did not terminate at Main")
	}

	return &Module{
		ID:          uuid.New(),
		Bin:         bin,
		MainAddress: mainOpAddr + 1,
		Subroutines: subroutines,
		SourceMap:   sourceMap,
	}, nil
}
