// Package vm implements the stack-based bytecode interpreter: a single
// fetch-decode-execute loop over a Module's bytecode buffer, an operand
// stack of *types.Type, an active-subroutine call stack, a parallel
// argument-frame stack for generic type parameters, and a loop stack for
// distributive conditionals (spec.md §4.6). Grounded on the teacher's
// VMState (vm/vm_state.go): the Run/Step split, the per-opcode exec<Op>
// handler shape, and IncrementIP-style explicit instruction-pointer
// advancement all carry over; the stack shapes themselves are this
// checker's own (type values and frames, not field elements and RAM).
package vm

import (
	"github.com/tsvm/typerunner/internal/typerunner/module"
	"github.com/tsvm/typerunner/internal/typerunner/types"
)

// Frame holds one active subroutine's generic type-argument slots, read by
// TypeArgument and filled in by TypeArgumentDefault for parameters the
// caller did not supply.
type Frame struct {
	Slots    []*types.Type
	ArgCount int

	// Borrowed marks a frame that shares its Slots backing array with an
	// enclosing frame rather than owning it — used when running a type
	// parameter's default-value subroutine, which must see the same
	// already-bound parameters as its enclosing alias. A borrowed frame's
	// slots are never dropped when the frame is popped; the frame that
	// actually owns them does that once, on its own Return.
	Borrowed bool
}

// callEntry is one active-subroutine stack entry (spec.md's "active
// subroutine" stack).
type callEntry struct {
	ReturnIP   uint32
	Subroutine *module.Subroutine
	ArgCount   int
}

// loopEntry is one active distributive-conditional iteration (spec.md's
// "loop stack").
type loopEntry struct {
	Slot      uint16
	Frame     *Frame
	Members   []*types.Type
	Index     int
	Results   []*types.Type
	BodyStart uint32
	End       uint32
}

// VM is one execution context over a single Module. It owns the type heap
// that every materialized Type is allocated from, so diagnostics and
// Module.Clear can release everything a run produced.
type VM struct {
	Module *module.Module
	Heap   *types.Heap

	Stack  []*types.Type
	Calls  []*callEntry
	Frames []*Frame
	Loops  []*loopEntry

	IP uint32

	lastExtends bool
	cycles      uint64
}

// New prepares a VM ready to run m from its entry point — the Go analogue
// of prepare() in original_source/src/checker/vm2.h.
func New(m *module.Module) *VM {
	return &VM{
		Module: m,
		Heap:   types.NewHeap(),
		IP:     m.MainAddress,
	}
}

// Run executes the module's main subroutine to completion (Halt), returning
// only once the operand stack has been fully drained by the closing stack
// GC. The returned error is reserved for VM invariant violations (spec.md
// §7 category 3) — user-facing findings are Module.Diagnostics, populated
// as a side effect of running, never returned here.
func (vm *VM) Run() error {
	for {
		halted, err := vm.Step()
		if err != nil {
			return err
		}
		if halted {
			vm.Heap.StackGC(vm.Stack)
			vm.Stack = nil
			vm.Heap.Flush()
			vm.Heap.FlushRefs()
			return nil
		}
	}
}

func (vm *VM) rawPop() *types.Type {
	n := len(vm.Stack) - 1
	t := vm.Stack[n]
	vm.Stack = vm.Stack[:n]
	return t
}

// push adds t to the operand stack as a new owning reference.
func (vm *VM) push(t *types.Type) {
	types.Use(t)
	vm.Stack = append(vm.Stack, t)
}

// pushTransfer adds t to the operand stack without incrementing Users,
// for values whose single existing ownership unit is simply moving onto
// the stack (e.g. a subroutine's return value moving into its caller's
// slot).
func (vm *VM) pushTransfer(t *types.Type) {
	vm.Stack = append(vm.Stack, t)
}

// popDiscard pops t and releases the stack's ownership of it entirely.
func (vm *VM) popDiscard() *types.Type {
	t := vm.rawPop()
	vm.Heap.Drop(t)
	return t
}

// popAsChild pops t and returns a TypeRef owning it, releasing the stack's
// own ownership unit in the same step so Users reflects only the new
// parent-child link.
func (vm *VM) popAsChild() *types.TypeRef {
	t := vm.rawPop()
	ref := vm.Heap.AllocRef(t)
	vm.Heap.Drop(t)
	return ref
}

// popAsSingleChild pops t for direct assignment into a parent's single
// Child field — a pure ownership transfer, no count change.
func (vm *VM) popAsSingleChild() *types.Type {
	return vm.rawPop()
}

// report appends a Diagnostic resolved against the current instruction
// pointer.
func (vm *VM) report(code uint16, message string) {
	vm.Module.Report(message, code, vm.IP)
}
