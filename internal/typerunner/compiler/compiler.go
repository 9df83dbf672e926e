// Package compiler lowers an AST (internal/typerunner/ast) into a Module
// (internal/typerunner/module). One subroutine is emitted per named
// type-producing declaration, plus an implicit "main" subroutine holding
// top-level variable statement checks — matching spec.md §4.3. Symbol
// scanning (symbol.go) runs before any body is emitted so forward
// references between type aliases resolve regardless of declaration order;
// the section tree recorded during emission (section.go) feeds the
// post-order tail-call/rest-reuse pass (optimizer.go) once a body is
// complete.
package compiler

import (
	"github.com/pkg/errors"

	"github.com/tsvm/typerunner/internal/typerunner/ast"
	"github.com/tsvm/typerunner/internal/typerunner/isa"
	"github.com/tsvm/typerunner/internal/typerunner/module"
)

// Diagnostic codes emitted inline via the Error opcode — category 1 of
// spec.md §7, never a Go error, always accumulated in Module.Diagnostics.
// Defined in the module package so both the compiler (unresolved
// references) and the VM (failed Assign checks) can report against the
// same code space without an import cycle.
const (
	DiagUnresolvedReference = module.DiagUnresolvedReference
	DiagNotAssignable       = module.DiagNotAssignableCode
)

type localSourceEntry struct {
	offset, sourcePos, sourceEnd uint32
}

// bodyBuilder accumulates one subroutine's bytecode as the compiler walks
// its AST subtree.
type bodyBuilder struct {
	code           []byte
	patches        []module.AddressPatch
	localSourceMap []localSourceEntry
	root           *Section
}

func newBodyBuilder() *bodyBuilder {
	return &bodyBuilder{root: newSection(SectionRoot, 0)}
}

func (b *bodyBuilder) emitOp(op isa.Op) uint32 {
	offset := uint32(len(b.code))
	b.code = append(b.code, byte(op))
	return offset
}

func (b *bodyBuilder) putByte(v byte)  { b.code = append(b.code, v) }
func (b *bodyBuilder) putU16(v uint16) { b.code = module.PutUint16(b.code, v) }
func (b *bodyBuilder) putU32(v uint32) { b.code = module.PutUint32(b.code, v) }
func (b *bodyBuilder) putI32(v int32)  { b.code = module.PutInt32(b.code, v) }

// reserveU32 appends a zero placeholder u32, returning its offset for a
// later patch.
func (b *bodyBuilder) reserveU32() uint32 {
	offset := uint32(len(b.code))
	b.putU32(0)
	return offset
}

// patchRel writes target, expressed relative to afterInstruction, into the
// 4-byte placeholder at operandOffset. Used for Jump/JumpCondition/
// Distribute displacement fields — always forward for Distribute, either
// direction for Jump/JumpCondition.
func (b *bodyBuilder) patchRel(operandOffset, target, afterInstruction uint32) {
	rel := int32(target) - int32(afterInstruction)
	copy(b.code[operandOffset:operandOffset+4], module.PutInt32(nil, rel))
}

func (b *bodyBuilder) mark(pos, end int) {
	b.localSourceMap = append(b.localSourceMap, localSourceEntry{uint32(len(b.code)), uint32(pos), uint32(end)})
}

type compilerState struct {
	builder *module.Builder
	scope   *scope
}

// CompileSourceFile lowers file into a finished Module. The returned error
// is only ever a compiler invariant violation (spec.md §7 category 2) —
// unresolved references and failed assignability checks are user
// diagnostics, emitted inline and surfaced later through Module.Diagnostics
// once the VM runs.
func CompileSourceFile(file *ast.SourceFile) (*module.Module, error) {
	c := &compilerState{builder: module.NewBuilder(), scope: newScope()}
	return c.compile(file)
}

func (c *compilerState) compile(file *ast.SourceFile) (*module.Module, error) {
	mainNameAddr := c.builder.Storage.Add("main")
	c.builder.Subroutines = append(c.builder.Subroutines, &module.CompiledSubroutine{Name: "main", NameAddr: mainNameAddr})

	var aliases []*ast.TypeAlias
	for _, stmt := range file.Statements {
		alias, ok := stmt.(*ast.TypeAlias)
		if !ok {
			continue
		}
		idx := len(c.builder.Subroutines)
		nameAddr := c.builder.Storage.Add(alias.Name)
		c.scope.declareSubroutine(alias.Name, idx)
		c.builder.Subroutines = append(c.builder.Subroutines, &module.CompiledSubroutine{
			Name: alias.Name, NameAddr: nameAddr, ParamCount: uint16(len(alias.Parameters)),
		})
		aliases = append(aliases, alias)
	}

	for _, alias := range aliases {
		idx, _ := c.scope.resolveSubroutine(alias.Name)
		body, err := c.compileAlias(alias)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling type alias %q", alias.Name)
		}
		c.finishBody(idx, body)
	}

	mainBody, err := c.compileMain(file)
	if err != nil {
		return nil, errors.Wrap(err, "compiling top-level statements")
	}
	c.finishBody(0, mainBody)

	return c.builder.Assemble(), nil
}

func (c *compilerState) finishBody(idx int, body *bodyBuilder) {
	sub := c.builder.Subroutines[idx]
	sub.Code = body.code
	sub.Patches = body.patches
	for _, e := range body.localSourceMap {
		c.builder.SourceMap = append(c.builder.SourceMap, module.SourceMapRecord{
			SubroutineIndex: idx, LocalOffset: e.offset, SourcePos: e.sourcePos, SourceEnd: e.sourceEnd,
		})
	}
}

func (c *compilerState) compileAlias(alias *ast.TypeAlias) (*bodyBuilder, error) {
	names := make([]string, len(alias.Parameters))
	for i, p := range alias.Parameters {
		names[i] = p.Name
	}
	c.scope.enterParameters(names)

	b := newBodyBuilder()
	for i, p := range alias.Parameters {
		if p.Default == nil {
			continue
		}
		defaultBody, err := c.compileDefault(alias, p)
		if err != nil {
			return nil, err
		}
		defaultIdx := len(c.builder.Subroutines)
		defaultNameAddr := c.builder.Storage.Add(alias.Name + "$default$" + p.Name)
		c.builder.Subroutines = append(c.builder.Subroutines, &module.CompiledSubroutine{
			Name: alias.Name + "$default$" + p.Name, NameAddr: defaultNameAddr,
		})
		c.finishBody(defaultIdx, defaultBody)

		b.emitOp(isa.TypeArgumentDefault)
		b.putU16(uint16(i))
		patchOffset := uint32(len(b.code))
		b.patches = append(b.patches, module.AddressPatch{Offset: patchOffset, Target: defaultIdx})
		b.putU32(0)
	}

	if err := c.emitType(b, alias.Type, b.root); err != nil {
		return nil, err
	}
	b.emitOp(isa.Return)
	optimize(b)
	return b, nil
}

// compileDefault compiles a type parameter's default expression as its own
// zero-argument subroutine, re-entering the enclosing alias's parameter
// scope so an earlier parameter can appear in a later one's default
// (`type Box<T, U = T[]> = ...`).
func (c *compilerState) compileDefault(alias *ast.TypeAlias, p *ast.TypeParam) (*bodyBuilder, error) {
	names := make([]string, len(alias.Parameters))
	for i, param := range alias.Parameters {
		names[i] = param.Name
	}
	c.scope.enterParameters(names)

	b := newBodyBuilder()
	if err := c.emitType(b, p.Default, b.root); err != nil {
		return nil, err
	}
	b.emitOp(isa.Return)
	optimize(b)
	return b, nil
}

func (c *compilerState) compileMain(file *ast.SourceFile) (*bodyBuilder, error) {
	c.scope.enterParameters(nil)
	b := newBodyBuilder()
	for _, stmt := range file.Statements {
		v, ok := stmt.(*ast.VarStatement)
		if !ok {
			continue
		}
		if err := c.emitVariableStatement(b, v); err != nil {
			return nil, err
		}
	}
	b.emitOp(isa.Halt)
	optimize(b)
	return b, nil
}

func (c *compilerState) emitVariableStatement(b *bodyBuilder, v *ast.VarStatement) error {
	pos, end := v.Range()
	b.mark(pos, end)

	if v.Annotation != nil {
		if err := c.emitType(b, v.Initializer, nil); err != nil {
			return err
		}
		if err := c.emitType(b, v.Annotation, nil); err != nil {
			return err
		}
		b.emitOp(isa.Assign)
		return nil
	}

	if err := c.emitType(b, v.Initializer, nil); err != nil {
		return err
	}
	b.emitOp(isa.Widen)
	return nil
}

// emitType lowers one type expression, appending its bytecode to b. tail,
// when non-nil, is the section that this node's own tail-position children
// (a Call, a trailing Rest member) should be attached to; pass nil when n
// is not itself in tail position.
func (c *compilerState) emitType(b *bodyBuilder, n ast.Node, tail *Section) error {
	pos, end := n.Range()
	b.mark(pos, end)

	switch node := n.(type) {
	case *ast.Lit:
		return c.emitLit(b, node)
	case *ast.TypeRef:
		return c.emitTypeRef(b, node, tail)
	case *ast.Union:
		for _, m := range node.Members {
			if err := c.emitType(b, m, nil); err != nil {
				return err
			}
		}
		b.emitOp(isa.Union)
		b.putU16(uint16(len(node.Members)))
		return nil
	case *ast.Tuple:
		for i, m := range node.Members {
			var memberTail *Section
			if tail != nil && m.Rest && i == len(node.Members)-1 {
				memberTail = tail
			}
			if err := c.emitTupleMember(b, m, memberTail); err != nil {
				return err
			}
		}
		b.emitOp(isa.Tuple)
		b.putU16(uint16(len(node.Members)))
		return nil
	case *ast.ObjectLiteral:
		for _, m := range node.Members {
			if err := c.emitPropertySig(b, m); err != nil {
				return err
			}
		}
		b.emitOp(isa.ObjectLiteral)
		b.putU16(uint16(len(node.Members)))
		return nil
	case *ast.ArrayOf:
		if err := c.emitType(b, node.Element, nil); err != nil {
			return err
		}
		b.emitOp(isa.Array)
		return nil
	case *ast.RestOf:
		if err := c.emitType(b, node.Element, nil); err != nil {
			return err
		}
		offset := b.emitOp(isa.Rest)
		if tail != nil {
			tail.addChild(newSection(SectionRest, offset))
		}
		return nil
	case *ast.Conditional:
		return c.emitConditional(b, node, tail)
	case *ast.TemplateLiteral:
		return c.emitTemplateLiteral(b, node)
	case *ast.IndexedAccess:
		return c.emitIndexedAccess(b, node)
	default:
		return errors.Errorf("compiler: unhandled ast node %T", n)
	}
}

func (c *compilerState) emitLit(b *bodyBuilder, n *ast.Lit) error {
	switch n.Kind {
	case ast.AnyKeyword:
		b.emitOp(isa.Any)
	case ast.UnknownKeyword:
		b.emitOp(isa.Unknown)
	case ast.NeverKeyword:
		b.emitOp(isa.Never)
	case ast.NullKeyword:
		b.emitOp(isa.Null)
	case ast.UndefinedKeyword:
		b.emitOp(isa.Undefined)
	case ast.StringLiteral:
		addr := c.builder.Storage.Add(n.Text)
		b.emitOp(isa.StringLiteral)
		b.putU32(addr)
	case ast.NumberLiteral:
		addr := c.builder.Storage.Add(n.Text)
		b.emitOp(isa.NumberLiteral)
		b.putU32(addr)
	case ast.BigIntLiteral:
		addr := c.builder.Storage.Add(n.Text)
		b.emitOp(isa.BigIntLiteral)
		b.putU32(addr)
	case ast.BooleanLiteral:
		if n.Bool {
			b.emitOp(isa.True)
		} else {
			b.emitOp(isa.False)
		}
	default:
		return errors.Errorf("compiler: unexpected literal kind %v", n.Kind)
	}
	return nil
}

func (c *compilerState) emitTupleMember(b *bodyBuilder, m *ast.TupleMember, tail *Section) error {
	if m.Rest {
		if err := c.emitType(b, m.Type, nil); err != nil {
			return err
		}
		offset := b.emitOp(isa.Rest)
		if tail != nil {
			tail.addChild(newSection(SectionRest, offset))
		}
	} else if err := c.emitType(b, m.Type, nil); err != nil {
		return err
	}

	nameAddr := uint32(0xFFFFFFFF)
	if m.Name != "" {
		nameAddr = c.builder.Storage.Add(m.Name)
	}
	b.emitOp(isa.TupleMember)
	b.putU32(nameAddr)
	var flags byte
	if m.Optional {
		flags |= 1
	}
	b.putByte(flags)
	return nil
}

func (c *compilerState) emitPropertySig(b *bodyBuilder, m *ast.PropertySig) error {
	if err := c.emitType(b, m.Type, nil); err != nil {
		return err
	}
	nameAddr := c.builder.Storage.Add(m.Name)
	b.emitOp(isa.PropertySignature)
	b.putU32(nameAddr)
	var flags byte
	if m.Optional {
		flags |= 1
	}
	if m.Readonly {
		flags |= 2
	}
	b.putByte(flags)
	return nil
}

func (c *compilerState) emitTemplateLiteral(b *bodyBuilder, n *ast.TemplateLiteral) error {
	var count uint16
	for i, q := range n.Quasis {
		if q != "" {
			addr := c.builder.Storage.Add(q)
			b.emitOp(isa.StringLiteral)
			b.putU32(addr)
			count++
		}
		if i < len(n.Types) {
			if err := c.emitType(b, n.Types[i], nil); err != nil {
				return err
			}
			count++
		}
	}
	b.emitOp(isa.TemplateLiteral)
	b.putU16(count)
	return nil
}

// emitIndexedAccess implements only Tuple['length'], the sole real case
// original_source/src/checker/vm2.cpp's indexAccess still performs — every
// other index falls straight through to Never (spec.md §9, carried as-is
// per SPEC_FULL.md §5).
func (c *compilerState) emitIndexedAccess(b *bodyBuilder, n *ast.IndexedAccess) error {
	lit, ok := n.Index.(*ast.Lit)
	if ok && lit.Kind == ast.StringLiteral && lit.Text == "length" {
		if err := c.emitType(b, n.Object, nil); err != nil {
			return err
		}
		b.emitOp(isa.IndexAccess)
		return nil
	}
	b.emitOp(isa.Never)
	return nil
}

func (c *compilerState) emitTypeRef(b *bodyBuilder, n *ast.TypeRef, tail *Section) error {
	if op, ok := builtinOps[n.Name]; ok && len(n.TypeArguments) == 0 {
		b.emitOp(op)
		return nil
	}

	if slot, ok := c.scope.resolveParameter(n.Name); ok {
		b.emitOp(isa.TypeArgument)
		b.putU16(slot)
		return nil
	}

	idx, ok := c.scope.resolveSubroutine(n.Name)
	if !ok {
		addr := c.builder.Storage.Add(n.Name)
		b.emitOp(isa.StringLiteral)
		b.putU32(addr)
		b.emitOp(isa.Error)
		b.putU16(DiagUnresolvedReference)
		return nil
	}

	if len(n.TypeArguments) > 0 {
		b.emitOp(isa.Frame)
		for _, arg := range n.TypeArguments {
			if err := c.emitType(b, arg, nil); err != nil {
				return err
			}
		}
	}

	callOffset := b.emitOp(isa.Call)
	patchOffset := uint32(len(b.code))
	b.patches = append(b.patches, module.AddressPatch{Offset: patchOffset, Target: idx})
	b.putU32(0)
	b.putU16(uint16(len(n.TypeArguments)))

	if tail != nil {
		tail.addChild(newSection(SectionCall, callOffset))
	}
	return nil
}

var builtinOps = map[string]isa.Op{
	"string": isa.String, "number": isa.Number, "boolean": isa.Boolean,
	"bigint": isa.BigInt, "symbol": isa.Symbol, "any": isa.Any,
	"unknown": isa.Unknown, "never": isa.Never, "null": isa.Null, "undefined": isa.Undefined,
}

// emitConditional lowers `Check extends Extends ? True : False`. When Check
// is a bare reference to one of the enclosing alias's own type parameters,
// the conditional distributes over a union bound to that parameter
// (spec.md's distributive-conditional rule): the Distribute opcode rebinds
// the parameter's frame slot to one union member at a time and re-runs the
// same arm-selection bytecode once per member.
func (c *compilerState) emitConditional(b *bodyBuilder, n *ast.Conditional, tail *Section) error {
	ref, isRef := n.Check.(*ast.TypeRef)
	var slot uint16
	distribute := false
	if isRef && len(ref.TypeArguments) == 0 {
		slot, distribute = c.scope.resolveParameter(ref.Name)
	}

	trueTail := newSection(SectionConditionalArm, 0)
	falseTail := newSection(SectionConditionalArm, 0)
	// A distributive conditional's arms run once per union member inside the
	// Distribute loop, so they are not in tail position and keep plain Calls.
	if tail != nil && !distribute {
		tail.addChild(trueTail)
		tail.addChild(falseTail)
	}

	if !distribute {
		return c.emitConditionalArms(b, n.Check, n.Extends, n.True, n.False, trueTail, falseTail)
	}

	b.emitOp(isa.Distribute)
	b.putU16(slot)
	endRelOperand := b.reserveU32()
	afterDistribute := uint32(len(b.code))

	if err := c.emitConditionalArms(b, n.Check, n.Extends, n.True, n.False, trueTail, falseTail); err != nil {
		return err
	}

	b.patchRel(endRelOperand, uint32(len(b.code)), afterDistribute)
	return nil
}

func (c *compilerState) emitConditionalArms(b *bodyBuilder, check, extendsType, trueType, falseType ast.Node, trueTail, falseTail *Section) error {
	if err := c.emitType(b, check, nil); err != nil {
		return err
	}
	if err := c.emitType(b, extendsType, nil); err != nil {
		return err
	}
	b.emitOp(isa.Extends)
	b.emitOp(isa.JumpCondition)
	falseRelOperand := b.reserveU32()
	trueRelOperand := b.reserveU32()
	afterJumpCondition := uint32(len(b.code))

	b.patchRel(trueRelOperand, afterJumpCondition, afterJumpCondition)

	if err := c.emitType(b, trueType, trueTail); err != nil {
		return err
	}
	b.emitOp(isa.Jump)
	jumpEndOperand := b.reserveU32()
	afterJump := uint32(len(b.code))

	b.patchRel(falseRelOperand, uint32(len(b.code)), afterJumpCondition)

	if err := c.emitType(b, falseType, falseTail); err != nil {
		return err
	}
	b.patchRel(jumpEndOperand, uint32(len(b.code)), afterJump)
	return nil
}
