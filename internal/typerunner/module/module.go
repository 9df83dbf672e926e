package module

import (
	"github.com/google/uuid"

	"github.com/tsvm/typerunner/internal/typerunner/isa"
	"github.com/tsvm/typerunner/internal/typerunner/types"
)

// Diagnostic codes reported inline via the bytecode's Error opcode or the
// VM's Assign check — category 1 of spec.md §7, accumulated in
// Module.Diagnostics, never returned as a Go error.
const (
	DiagUnresolvedReference uint16 = 1
	DiagNotAssignableCode   uint16 = 2
)

// Subroutine is the Module's resolved, address-indexed subroutine table
// entry described in spec.md §3: a callable typed computation plus its two
// runtime caches.
type Subroutine struct {
	Name       string
	NameAddr   uint32
	BodyAddr   uint32
	Flags      isa.SubroutineFlag
	ParamCount uint16

	// Result is populated only by a zero-argument Call/Return — calls with
	// type arguments always re-execute (spec.md §3 invariants).
	Result *types.Type

	// Narrowed holds the value last stored by the `Set` opcode. Call and
	// TailCall do not read it: they use Result (or run the body) whether or
	// not Narrowed is set. The compiler does not emit Set.
	Narrowed *types.Type
}

// SourceMapEntry maps one bytecode position to the source range that
// produced it.
type SourceMapEntry struct {
	BytecodePos uint32
	SourcePos   uint32
	SourceEnd   uint32
}

// Diagnostic is a single reported finding, resolved to a source range
// through the owning Module's source map (spec.md §6).
type Diagnostic struct {
	Message    string
	Code       uint16
	BytecodeIP uint32
	SourcePos  uint32
	SourceEnd  uint32
	Module     *Module `json:"-"`
}

// Module is the compiler's immutable output: a self-contained byte buffer
// plus the resolved structures the VM needs to execute it without
// re-parsing the header on every call (spec.md §3/§4.2).
type Module struct {
	ID uuid.UUID

	Bin         []byte
	MainAddress uint32

	Subroutines []*Subroutine
	SourceMap   []SourceMapEntry

	Diagnostics []Diagnostic
}

// GetSubroutine returns the subroutine whose body starts at addr, or nil.
// The VM's Call/TailCall opcodes carry a subroutine's BodyAddr as their
// operand, so this is a linear scan over a typically small table; modules
// with enough subroutines to matter can build an index once at Prepare time
// (left to the vm package, which owns the hot path).
func (m *Module) GetSubroutine(addr uint32) *Subroutine {
	for _, s := range m.Subroutines {
		if s.BodyAddr == addr {
			return s
		}
	}
	return nil
}

// Resolve finds the source range covering ip — the first entry whose
// BytecodePos is the greatest one <= ip, matching the VM's "nearest
// preceding position" source-map semantics. If no entry matches, the
// location is (0, 0) and the diagnostic is file-scoped, per spec.md §6.
func (m *Module) Resolve(ip uint32) (pos, end uint32) {
	var best *SourceMapEntry
	for i := range m.SourceMap {
		e := &m.SourceMap[i]
		if e.BytecodePos <= ip && (best == nil || e.BytecodePos > best.BytecodePos) {
			best = e
		}
	}
	if best == nil {
		return 0, 0
	}
	return best.SourcePos, best.SourceEnd
}

// Report appends a Diagnostic whose source range is resolved from ip
// through the module's source map.
func (m *Module) Report(message string, code uint16, ip uint32) {
	pos, end := m.Resolve(ip)
	m.Diagnostics = append(m.Diagnostics, Diagnostic{
		Message:    message,
		Code:       code,
		BytecodeIP: ip,
		SourcePos:  pos,
		SourceEnd:  end,
		Module:     m,
	})
}

// Clear empties a Module's mutable caches (per-subroutine Result/Narrowed)
// and its diagnostics vector so the Module can be rerun from scratch,
// mirroring clear(module) in vm2.h.
func (m *Module) Clear() {
	for _, s := range m.Subroutines {
		s.Result = nil
		s.Narrowed = nil
	}
	m.Diagnostics = nil
}
