package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsvm/typerunner/internal/typerunner/isa"
)

func buildSimpleModule(t *testing.T) *Module {
	t.Helper()
	b := NewBuilder()
	nameAddr := b.Storage.Add("main")

	code := []byte{byte(isa.String), byte(isa.Return)}
	b.Subroutines = append(b.Subroutines, &CompiledSubroutine{
		Name: "main", NameAddr: nameAddr, Code: code,
	})
	b.SourceMap = append(b.SourceMap, SourceMapRecord{
		SubroutineIndex: 0, LocalOffset: 0, SourcePos: 10, SourceEnd: 16,
	})
	return b.Assemble()
}

func TestAssembleRoundTripsThroughParse(t *testing.T) {
	m := buildSimpleModule(t)

	require.Equal(t, isa.Jump, isa.Op(m.Bin[0]))
	mainOpAddr := ReadUint32(m.Bin, 1)
	assert.Equal(t, isa.Main, isa.Op(m.Bin[mainOpAddr]))
	assert.Equal(t, mainOpAddr+1, m.MainAddress)

	reloaded, err := Parse(m.Bin)
	require.NoError(t, err)
	assert.Equal(t, m.MainAddress, reloaded.MainAddress)
	require.Len(t, reloaded.Subroutines, 1)
	assert.Equal(t, "main", reloaded.Subroutines[0].Name)
	require.Len(t, reloaded.SourceMap, 1)
	assert.Equal(t, uint32(10), reloaded.SourceMap[0].SourcePos)
}

func TestAssemblePatchesCrossSubroutineCalls(t *testing.T) {
	b := NewBuilder()
	mainName := b.Storage.Add("main")
	helperName := b.Storage.Add("helper")

	helperCode := []byte{byte(isa.Number), byte(isa.Return)}
	b.Subroutines = append(b.Subroutines, &CompiledSubroutine{Name: "helper", NameAddr: helperName, Code: helperCode})

	mainCode := make([]byte, 0, 8)
	mainCode = append(mainCode, byte(isa.Call))
	patchOffset := uint32(len(mainCode))
	mainCode = PutUint32(mainCode, 0) // placeholder, patched to helper's bodyAddr
	mainCode = PutUint16(mainCode, 0)
	mainCode = append(mainCode, byte(isa.Return))

	b.Subroutines = append([]*CompiledSubroutine{{
		Name: "main", NameAddr: mainName, Code: mainCode,
		Patches: []AddressPatch{{Offset: patchOffset, Target: 1}},
	}}, b.Subroutines...)
	// patch target index must refer to helper's final position in b.Subroutines (1)

	m := b.Assemble()
	helper := m.Subroutines[1]
	require.NotNil(t, helper)

	callOperand := ReadUint32(m.Bin, m.Subroutines[0].BodyAddr+1)
	assert.Equal(t, helper.BodyAddr, callOperand, "Call's address operand must be patched to helper's resolved BodyAddr")
}

func TestStorageAddressesAreAbsoluteWithinTheAssembledBuffer(t *testing.T) {
	m := buildSimpleModule(t)
	text, _ := ReadStorage(m.Bin, m.Subroutines[0].NameAddr)
	assert.Equal(t, "main", text)
}

func TestResolveFindsNearestPrecedingEntry(t *testing.T) {
	m := &Module{
		SourceMap: []SourceMapEntry{
			{BytecodePos: 10, SourcePos: 100, SourceEnd: 110},
			{BytecodePos: 20, SourcePos: 200, SourceEnd: 210},
		},
	}
	pos, end := m.Resolve(25)
	assert.Equal(t, uint32(200), pos)
	assert.Equal(t, uint32(210), end)

	pos, end = m.Resolve(5)
	assert.Equal(t, uint32(0), pos)
	assert.Equal(t, uint32(0), end)
}

func TestReportAttachesResolvedSourceRange(t *testing.T) {
	m := &Module{SourceMap: []SourceMapEntry{{BytecodePos: 0, SourcePos: 3, SourceEnd: 9}}}
	m.Report("not assignable", 1001, 0)
	require.Len(t, m.Diagnostics, 1)
	d := m.Diagnostics[0]
	assert.Equal(t, uint16(1001), d.Code)
	assert.Equal(t, uint32(3), d.SourcePos)
	assert.Same(t, m, d.Module)
}

func TestClearEmptiesCachesAndDiagnostics(t *testing.T) {
	m := buildSimpleModule(t)
	m.Diagnostics = append(m.Diagnostics, Diagnostic{Message: "x"})

	m.Clear()
	assert.Nil(t, m.Subroutines[0].Result)
	assert.Nil(t, m.Subroutines[0].Narrowed)
	assert.Empty(t, m.Diagnostics)
}
