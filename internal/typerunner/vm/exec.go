package vm

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tsvm/typerunner/internal/typerunner/extends"
	"github.com/tsvm/typerunner/internal/typerunner/isa"
	"github.com/tsvm/typerunner/internal/typerunner/module"
	"github.com/tsvm/typerunner/internal/typerunner/types"
)

func invariant(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

func (vm *VM) readByte() byte {
	b := vm.Module.Bin[vm.IP]
	vm.IP++
	return b
}

func (vm *VM) readU16() uint16 {
	v := module.ReadUint16(vm.Module.Bin, vm.IP)
	vm.IP += 2
	return v
}

func (vm *VM) readU32() uint32 {
	v := module.ReadUint32(vm.Module.Bin, vm.IP)
	vm.IP += 4
	return v
}

func (vm *VM) readI32() int32 {
	v := module.ReadInt32(vm.Module.Bin, vm.IP)
	vm.IP += 4
	return v
}

func (vm *VM) currentFrame() *Frame {
	return vm.Frames[len(vm.Frames)-1]
}

// Step executes exactly one instruction, mirroring the teacher's
// Step()/ExecuteInstruction() split (vm/vm_state.go). It returns halted =
// true once a Halt instruction runs.
func (vm *VM) Step() (halted bool, err error) {
	vm.cycles++

	if vm.checkLoopBoundary() {
		return false, nil
	}

	op := isa.Op(vm.readByte())

	switch op {
	case isa.Halt:
		return true, nil
	case isa.Noop, isa.Frame:
		// Frame is an emission-time marker only; argument collection
		// happens on the operand stack regardless of it.

	case isa.Any:
		vm.push(vm.Heap.Allocate(types.Any))
	case isa.Unknown:
		vm.push(vm.Heap.Allocate(types.Unknown))
	case isa.Never:
		vm.push(vm.Heap.Allocate(types.Never))
	case isa.Null:
		vm.push(vm.Heap.Allocate(types.Null))
	case isa.Undefined:
		vm.push(vm.Heap.Allocate(types.Undefined))
	case isa.String:
		vm.push(vm.Heap.Allocate(types.String))
	case isa.Number:
		vm.push(vm.Heap.Allocate(types.Number))
	case isa.Boolean:
		vm.push(vm.Heap.Allocate(types.Boolean))
	case isa.BigInt:
		vm.push(vm.Heap.Allocate(types.BigInt))
	case isa.Symbol:
		vm.push(vm.Heap.Allocate(types.Symbol))
	case isa.True:
		t := vm.Heap.Allocate(types.Literal)
		t.SetFlag(types.True)
		vm.push(t)
	case isa.False:
		t := vm.Heap.Allocate(types.Literal)
		t.SetFlag(types.False)
		vm.push(t)

	case isa.StringLiteral, isa.NumberLiteral, isa.BigIntLiteral:
		addr := vm.readU32()
		text, _ := module.ReadStorage(vm.Module.Bin, addr)
		t := vm.Heap.Allocate(types.Literal)
		switch op {
		case isa.StringLiteral:
			t.SetLiteral(types.StringLiteral, text)
		case isa.NumberLiteral:
			t.SetLiteral(types.NumberLiteral, text)
		case isa.BigIntLiteral:
			t.SetLiteral(types.BigIntLiteral, text)
		}
		vm.push(t)

	case isa.Union:
		err = vm.execCompound(types.Union, int(vm.readU16()))
	case isa.Tuple:
		err = vm.execCompound(types.Tuple, int(vm.readU16()))
	case isa.ObjectLiteral:
		err = vm.execCompound(types.ObjectLiteral, int(vm.readU16()))
	case isa.TemplateLiteral:
		err = vm.execTemplateLiteral(int(vm.readU16()))

	case isa.TupleMember:
		nameAddr := vm.readU32()
		flags := vm.readByte()
		elem := vm.popAsSingleChild()
		t := vm.Heap.Allocate(types.TupleMember)
		t.Child = elem
		if nameAddr != 0xFFFFFFFF {
			name, _ := module.ReadStorage(vm.Module.Bin, nameAddr)
			t.Text = name
		}
		if flags&1 != 0 {
			t.SetFlag(types.Optional)
		}
		vm.push(t)

	case isa.PropertySignature:
		nameAddr := vm.readU32()
		flags := vm.readByte()
		value := vm.popAsSingleChild()
		name, _ := module.ReadStorage(vm.Module.Bin, nameAddr)
		t := vm.Heap.Allocate(types.PropertySignature)
		t.Child = value
		t.Text = name
		if flags&1 != 0 {
			t.SetFlag(types.Optional)
		}
		if flags&2 != 0 {
			t.SetFlag(types.Readonly)
		}
		vm.push(t)

	case isa.Array:
		elem := vm.popAsSingleChild()
		t := vm.Heap.Allocate(types.Array)
		t.Child = elem
		vm.push(t)

	case isa.Rest, isa.RestReuse:
		elem := vm.popAsSingleChild()
		t := vm.Heap.Allocate(types.Rest)
		t.Child = elem
		if op == isa.RestReuse {
			t.SetFlag(types.RestReuse)
		}
		vm.push(t)

	case isa.IndexAccess:
		obj := vm.rawPop()
		if obj.Kind == types.Tuple {
			lit := vm.Heap.Allocate(types.Literal)
			lit.SetLiteral(types.NumberLiteral, strconv.Itoa(types.ChildCount(obj)))
			vm.Heap.Drop(obj)
			vm.push(lit)
		} else {
			vm.Heap.Drop(obj)
			vm.push(vm.Heap.Allocate(types.Never))
		}

	case isa.Widen:
		t := vm.rawPop()
		if t.Kind == types.Literal {
			widened := vm.Heap.Allocate(widenedPrimitive(t))
			vm.Heap.Drop(t)
			vm.push(widened)
		} else {
			vm.pushTransfer(t)
		}

	case isa.Extends:
		right := vm.popDiscard()
		left := vm.popDiscard()
		vm.lastExtends = extends.Extends(left, right)

	case isa.Assign:
		target := vm.popDiscard()
		value := vm.popDiscard()
		if !extends.Extends(value, target) {
			vm.report(module.DiagNotAssignableCode, types.Stringify(value)+" is not assignable to "+types.Stringify(target))
		}

	case isa.Error:
		code := vm.readU16()
		context := vm.popDiscard()
		vm.report(code, "cannot find name "+strconv.Quote(context.Text))
		vm.push(vm.Heap.Allocate(types.Any))

	case isa.Jump:
		rel := vm.readI32()
		vm.IP = uint32(int32(vm.IP) + rel)

	case isa.JumpCondition:
		falseRel := vm.readI32()
		trueRel := vm.readI32()
		after := vm.IP
		if vm.lastExtends {
			vm.IP = uint32(int32(after) + trueRel)
		} else {
			vm.IP = uint32(int32(after) + falseRel)
		}

	case isa.Distribute:
		err = vm.execDistribute()

	case isa.TypeArgument:
		slot := vm.readU16()
		vm.push(vm.currentFrame().Slots[slot])

	case isa.TypeArgumentDefault:
		err = vm.execTypeArgumentDefault()

	case isa.Call:
		err = vm.execCall()
	case isa.TailCall:
		err = vm.execTailCall()
	case isa.Return:
		err = vm.execReturn()

	case isa.Loads:
		frameUp := vm.readU16()
		idx := vm.readU16()
		frame := vm.Frames[len(vm.Frames)-1-int(frameUp)]
		vm.push(frame.Slots[idx])

	case isa.Set:
		addr := vm.readU32()
		value := vm.popAsSingleChild()
		target := vm.Module.GetSubroutine(addr)
		if target == nil {
			return false, invariant("Set: subroutine at %d not found", addr)
		}
		if target.Narrowed != nil {
			vm.Heap.Drop(target.Narrowed)
		}
		target.Narrowed = value

	case isa.Slots:
		vm.readU16()

	default:
		return false, invariant("unimplemented opcode %s at ip %d", op, vm.IP-1)
	}

	return false, err
}

func widenedPrimitive(lit *types.Type) types.Kind {
	switch {
	case lit.HasFlag(types.StringLiteral):
		return types.String
	case lit.HasFlag(types.NumberLiteral):
		return types.Number
	case lit.HasFlag(types.BigIntLiteral):
		return types.BigInt
	case lit.HasFlag(types.True), lit.HasFlag(types.False):
		return types.Boolean
	default:
		return types.Unknown
	}
}

func (vm *VM) execCompound(kind types.Kind, arity int) error {
	if len(vm.Stack) < arity {
		return invariant("compound constructor needs %d operands, stack has %d", arity, len(vm.Stack))
	}
	children := make([]*types.TypeRef, arity)
	for i := arity - 1; i >= 0; i-- {
		children[i] = vm.popAsChild()
	}
	t := vm.Heap.Allocate(kind)
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Next = t.Children
		t.Children = children[i]
	}
	vm.push(t)
	return nil
}

// execTemplateLiteral lowers a TemplateLiteral's quasi/interpolation
// children. When every child is itself a literal (the common case of an
// interpolation that resolved to a literal type, e.g. `${A['length']}`),
// the whole template collapses to its rendered text as a single string
// Literal rather than staying a TemplateLiteral node — extends has no
// right-hand TemplateLiteral case (spec.md §4.7 names none), and a
// collapsed literal is what a fully-known template actually is.
func (vm *VM) execTemplateLiteral(arity int) error {
	if len(vm.Stack) < arity {
		return invariant("compound constructor needs %d operands, stack has %d", arity, len(vm.Stack))
	}
	children := make([]*types.Type, arity)
	for i := arity - 1; i >= 0; i-- {
		children[i] = vm.rawPop()
	}

	if text, ok := literalTemplateText(children); ok {
		for _, c := range children {
			vm.Heap.Drop(c)
		}
		lit := vm.Heap.Allocate(types.Literal)
		lit.SetLiteral(types.StringLiteral, text)
		vm.push(lit)
		return nil
	}

	t := vm.Heap.Allocate(types.TemplateLiteral)
	for i := len(children) - 1; i >= 0; i-- {
		ref := vm.Heap.AllocRef(children[i])
		vm.Heap.Drop(children[i])
		ref.Next = t.Children
		t.Children = ref
	}
	vm.push(t)
	return nil
}

// literalTemplateText renders children to their concatenated textual form
// if every one is a literal value, mirroring how a fully-literal template
// type stringifies (types.Stringify's TemplateLiteral case).
func literalTemplateText(children []*types.Type) (string, bool) {
	var b strings.Builder
	for _, c := range children {
		if c.Kind != types.Literal {
			return "", false
		}
		switch {
		case c.HasFlag(types.StringLiteral), c.HasFlag(types.NumberLiteral), c.HasFlag(types.BigIntLiteral):
			b.WriteString(c.Text)
		case c.HasFlag(types.True):
			b.WriteString("true")
		case c.HasFlag(types.False):
			b.WriteString("false")
		default:
			return "", false
		}
	}
	return b.String(), true
}

func (vm *VM) execCall() error {
	addr := vm.readU32()
	argCount := int(vm.readU16())
	callee := vm.Module.GetSubroutine(addr)
	if callee == nil {
		return invariant("Call: subroutine at %d not found", addr)
	}
	if callee.ParamCount == 0 && argCount == 0 && callee.Result != nil {
		types.Use(callee.Result)
		vm.pushTransfer(callee.Result)
		return nil
	}

	args := make([]*types.Type, argCount)
	for i := argCount - 1; i >= 0; i-- {
		args[i] = vm.rawPop()
	}
	frame := &Frame{Slots: make([]*types.Type, callee.ParamCount), ArgCount: argCount}
	copy(frame.Slots, args)
	vm.Frames = append(vm.Frames, frame)
	vm.Calls = append(vm.Calls, &callEntry{ReturnIP: vm.IP, Subroutine: callee, ArgCount: argCount})
	vm.IP = callee.BodyAddr
	return nil
}

func (vm *VM) execTailCall() error {
	addr := vm.readU32()
	argCount := int(vm.readU16())
	callee := vm.Module.GetSubroutine(addr)
	if callee == nil {
		return invariant("TailCall: subroutine at %d not found", addr)
	}
	if len(vm.Calls) == 0 {
		return invariant("TailCall with empty call stack")
	}
	top := vm.Calls[len(vm.Calls)-1]
	oldFrame := vm.Frames[len(vm.Frames)-1]

	if callee.ParamCount == 0 && argCount == 0 && callee.Result != nil {
		vm.dropFrame(oldFrame)
		vm.Calls = vm.Calls[:len(vm.Calls)-1]
		vm.Frames = vm.Frames[:len(vm.Frames)-1]
		types.Use(callee.Result)
		vm.pushTransfer(callee.Result)
		vm.IP = top.ReturnIP
		return nil
	}

	args := make([]*types.Type, argCount)
	for i := argCount - 1; i >= 0; i-- {
		args[i] = vm.rawPop()
	}
	vm.dropFrame(oldFrame)
	newFrame := &Frame{Slots: make([]*types.Type, callee.ParamCount), ArgCount: argCount}
	copy(newFrame.Slots, args)
	vm.Frames[len(vm.Frames)-1] = newFrame
	top.Subroutine = callee
	top.ArgCount = argCount
	vm.IP = callee.BodyAddr
	return nil
}

func (vm *VM) execReturn() error {
	if len(vm.Calls) == 0 {
		return invariant("Return with empty call stack")
	}
	result := vm.rawPop()
	top := vm.Calls[len(vm.Calls)-1]
	vm.Calls = vm.Calls[:len(vm.Calls)-1]
	frame := vm.Frames[len(vm.Frames)-1]
	vm.Frames = vm.Frames[:len(vm.Frames)-1]
	vm.dropFrame(frame)

	if top.ArgCount == 0 && top.Subroutine != nil {
		types.Use(result)
		top.Subroutine.Result = result
	}
	vm.pushTransfer(result)
	vm.IP = top.ReturnIP
	return nil
}

func (vm *VM) dropFrame(frame *Frame) {
	if frame.Borrowed {
		return
	}
	for _, slot := range frame.Slots {
		if slot != nil {
			vm.Heap.Drop(slot)
		}
	}
}

// execTypeArgumentDefault runs addr's zero-argument subroutine to
// completion in a frame that shares Slots with the enclosing alias's own
// frame, so the default expression can reference earlier type parameters,
// then stores the result into the current frame's slot if the caller
// didn't already supply it. The default's result is not cached, since it
// can differ between instantiations.
func (vm *VM) execTypeArgumentDefault() error {
	slot := vm.readU16()
	addr := vm.readU32()
	frame := vm.currentFrame()
	if int(slot) < frame.ArgCount || frame.Slots[slot] != nil {
		return nil
	}

	callee := vm.Module.GetSubroutine(addr)
	if callee == nil {
		return invariant("TypeArgumentDefault: subroutine at %d not found", addr)
	}

	savedDepth := len(vm.Calls)
	savedIP := vm.IP
	vm.Frames = append(vm.Frames, &Frame{Slots: frame.Slots, ArgCount: frame.ArgCount, Borrowed: true})
	// Subroutine stays nil so execReturn does not store this result in the
	// default subroutine's Result cache.
	vm.Calls = append(vm.Calls, &callEntry{ReturnIP: vm.IP, ArgCount: 0})
	vm.IP = callee.BodyAddr

	for len(vm.Calls) > savedDepth {
		halted, err := vm.Step()
		if err != nil {
			return err
		}
		if halted {
			return invariant("default-value subroutine reached Halt without returning")
		}
	}

	frame.Slots[slot] = vm.rawPop()
	vm.IP = savedIP
	return nil
}

// execDistribute implements the distributive-conditional loop: rebind the
// named frame slot to each member of the union currently stored there in
// turn, re-running the arm-selection bytecode between here and the
// Distribute instruction's end offset once per member, then union the
// collected per-member results back into a single type.
func (vm *VM) execDistribute() error {
	slot := vm.readU16()
	endRel := vm.readU32()
	bodyStart := vm.IP
	end := bodyStart + endRel

	frame := vm.currentFrame()
	bound := frame.Slots[slot]

	if bound.Kind != types.Union {
		// Non-union bindings distribute trivially over themselves — the
		// loop still needs exactly one iteration so the arm-selection
		// bytecode between bodyStart and end runs once.
		vm.Loops = append(vm.Loops, &loopEntry{
			Slot: slot, Frame: frame, Members: []*types.Type{bound}, BodyStart: bodyStart, End: end,
		})
		return nil
	}

	var members []*types.Type
	types.ForEachChild(bound, func(c *types.Type) bool {
		members = append(members, c)
		return true
	})
	vm.Loops = append(vm.Loops, &loopEntry{Slot: slot, Frame: frame, Members: members, BodyStart: bodyStart, End: end})
	frame.Slots[slot] = members[0]
	return nil
}

// checkLoopBoundary is called by Step before dispatching whenever the
// instruction pointer has just landed on an active loop's End address —
// it collects this iteration's result, advances to the next member or
// closes out the union of collected results.
func (vm *VM) checkLoopBoundary() bool {
	if len(vm.Loops) == 0 {
		return false
	}
	loop := vm.Loops[len(vm.Loops)-1]
	if vm.IP != loop.End {
		return false
	}

	loop.Results = append(loop.Results, vm.rawPop())
	loop.Index++
	if loop.Index < len(loop.Members) {
		loop.Frame.Slots[loop.Slot] = loop.Members[loop.Index]
		vm.IP = loop.BodyStart
		return true
	}

	vm.Loops = vm.Loops[:len(vm.Loops)-1]
	if len(loop.Results) == 1 {
		vm.pushTransfer(loop.Results[0])
	} else {
		t := vm.Heap.Allocate(types.Union)
		for _, r := range loop.Results {
			ref := vm.Heap.AllocRef(r)
			vm.Heap.Drop(r)
			ref.Next = t.Children
			t.Children = ref
		}
		vm.push(t)
	}
	return true
}
