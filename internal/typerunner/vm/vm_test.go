package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsvm/typerunner/internal/typerunner/ast"
	"github.com/tsvm/typerunner/internal/typerunner/compiler"
	"github.com/tsvm/typerunner/internal/typerunner/types"
)

func compileFile(t *testing.T, statements []ast.Node) *VM {
	t.Helper()
	file := ast.NewSourceFile(0, 0, statements)
	m, err := compiler.CompileSourceFile(file)
	require.NoError(t, err)
	return New(m)
}

func runOK(t *testing.T, vm *VM) {
	t.Helper()
	require.NoError(t, vm.Run())
	require.Empty(t, vm.Module.Diagnostics, "unexpected diagnostics: %v", vm.Module.Diagnostics)
}

// let a: string = "abc"; must widen the initializer's literal nowhere (the
// annotation path doesn't widen) and pass the Assign check.
func TestAssignLiteralToItsBasePrimitive(t *testing.T) {
	str := ast.NewLit(ast.StringLiteral, 0, 0, "abc")
	stringKeyword := ast.NewTypeRef(0, 0, "string", nil)
	v := ast.NewVarStatement(0, 0, "a", stringKeyword, str)

	vm := compileFile(t, []ast.Node{v})
	runOK(t, vm)
}

// let a: number = "abc"; is not assignable — must surface exactly one
// diagnostic and still run to completion (no Go error).
func TestAssignReportsDiagnosticOnMismatch(t *testing.T) {
	str := ast.NewLit(ast.StringLiteral, 5, 10, "abc")
	numberKeyword := ast.NewTypeRef(0, 0, "number", nil)
	v := ast.NewVarStatement(0, 0, "a", numberKeyword, str)

	vm := compileFile(t, []ast.Node{v})
	require.NoError(t, vm.Run())
	require.Len(t, vm.Module.Diagnostics, 1)
	assert.Equal(t, uint16(2), vm.Module.Diagnostics[0].Code)
}

// let a = 42; with no annotation widens the literal to its base primitive
// before the (trivially passing) Assign-free path.
func TestNoAnnotationWidensLiteral(t *testing.T) {
	num := ast.NewLit(ast.NumberLiteral, 0, 0, "42")
	v := ast.NewVarStatement(0, 0, "a", nil, num)

	vm := compileFile(t, []ast.Node{v})
	runOK(t, vm)
}

// type Box<T> = [T]; let a: Box<string> = ["x"]; exercises a generic
// subroutine call with one explicit type argument.
func TestGenericAliasCall(t *testing.T) {
	boxParam := ast.NewTypeParam(0, 0, "T", nil, nil)
	boxType := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewTypeRef(0, 0, "T", nil)),
	})
	box := ast.NewTypeAlias(0, 0, "Box", []*ast.TypeParam{boxParam}, boxType)

	boxOfString := ast.NewTypeRef(0, 0, "Box", []ast.Node{ast.NewTypeRef(0, 0, "string", nil)})
	init := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewLit(ast.StringLiteral, 0, 0, "x")),
	})
	v := ast.NewVarStatement(0, 0, "a", boxOfString, init)

	vm := compileFile(t, []ast.Node{box, v})
	runOK(t, vm)
}

// type Def<T, U = T[]> = U; let a: Def<string> = [""]; exercises
// TypeArgumentDefault referencing an earlier type parameter.
func TestTypeParameterDefaultReferencesEarlierParameter(t *testing.T) {
	tParam := ast.NewTypeParam(0, 0, "T", nil, nil)
	uParam := ast.NewTypeParam(0, 0, "U", nil, ast.NewArrayOf(0, 0, ast.NewTypeRef(0, 0, "T", nil)))
	def := ast.NewTypeAlias(0, 0, "Def", []*ast.TypeParam{tParam, uParam}, ast.NewTypeRef(0, 0, "U", nil))

	defOfString := ast.NewTypeRef(0, 0, "Def", []ast.Node{ast.NewTypeRef(0, 0, "string", nil)})
	init := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewLit(ast.StringLiteral, 0, 0, "")),
	})
	v := ast.NewVarStatement(0, 0, "a", defOfString, init)

	vm := compileFile(t, []ast.Node{def, v})
	runOK(t, vm)
}

// type Wrap<T> = T extends string ? "s" : "n"; distributing over a union
// binds T to each member in turn and joins the per-member results back
// into a union.
func TestDistributiveConditionalOverUnion(t *testing.T) {
	wrapParam := ast.NewTypeParam(0, 0, "T", nil, nil)
	cond := ast.NewConditional(0, 0,
		ast.NewTypeRef(0, 0, "T", nil),
		ast.NewTypeRef(0, 0, "string", nil),
		ast.NewLit(ast.StringLiteral, 0, 0, "s"),
		ast.NewLit(ast.StringLiteral, 0, 0, "n"),
	)
	wrap := ast.NewTypeAlias(0, 0, "Wrap", []*ast.TypeParam{wrapParam}, cond)

	union := ast.NewUnion(0, 0, []ast.Node{
		ast.NewTypeRef(0, 0, "string", nil),
		ast.NewTypeRef(0, 0, "number", nil),
	})
	wrapOfUnion := ast.NewTypeRef(0, 0, "Wrap", []ast.Node{union})
	initUnion := ast.NewUnion(0, 0, []ast.Node{
		ast.NewLit(ast.StringLiteral, 0, 0, "s"),
		ast.NewLit(ast.StringLiteral, 0, 0, "n"),
	})
	v := ast.NewVarStatement(0, 0, "a", wrapOfUnion, initUnion)

	vm := compileFile(t, []ast.Node{wrap, v})
	runOK(t, vm)
}

// [...string[]] exercises the Rest -> RestReuse tail-call optimization
// rewrite inside a tuple member.
func TestTupleRestReuse(t *testing.T) {
	tuple := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, true, ast.NewArrayOf(0, 0, ast.NewTypeRef(0, 0, "string", nil))),
	})
	alias := ast.NewTypeAlias(0, 0, "Rst", nil, tuple)
	ref := ast.NewTypeRef(0, 0, "Rst", nil)
	init := ast.NewTuple(0, 0, nil)
	v := ast.NewVarStatement(0, 0, "a", ref, init)

	vm := compileFile(t, []ast.Node{alias, v})
	runOK(t, vm)
}

// type Id = string; used from two separate variable statements: the second
// reference must hit Id's cached zero-argument Result instead of
// re-executing its body.
func TestCachedSubroutineResultIsReused(t *testing.T) {
	alias := ast.NewTypeAlias(0, 0, "Id", nil, ast.NewTypeRef(0, 0, "string", nil))
	ref := ast.NewTypeRef(0, 0, "Id", nil)
	v1 := ast.NewVarStatement(0, 0, "a", ref, ast.NewLit(ast.StringLiteral, 0, 0, "x"))
	ref2 := ast.NewTypeRef(0, 0, "Id", nil)
	v2 := ast.NewVarStatement(0, 0, "b", ref2, ast.NewLit(ast.StringLiteral, 0, 0, "y"))

	vm := compileFile(t, []ast.Node{alias, v1, v2})
	runOK(t, vm)

	sub := vm.Module.Subroutines[1]
	require.NotNil(t, sub.Result, "Id's zero-argument Result must be cached after the first call")
	assert.Equal(t, types.String, sub.Result.Kind, "cached Result must be string")
}

// type A = [1]; type L = `${A['length']}`; a fully-literal template
// collapses to the string literal "1", so only a value other than "1" is a
// type error.
func TestTemplateLiteralOfAllLiteralPartsCollapsesToStringLiteral(t *testing.T) {
	a := ast.NewTypeAlias(0, 0, "A", nil, ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewLit(ast.NumberLiteral, 0, 0, "1")),
	}))
	length := ast.NewIndexedAccess(0, 0, ast.NewTypeRef(0, 0, "A", nil), ast.NewLit(ast.StringLiteral, 0, 0, "length"))
	tmpl := ast.NewTemplateLiteral(0, 0, []string{"", ""}, []ast.Node{length})
	l := ast.NewTypeAlias(0, 0, "L", nil, tmpl)

	ref := ast.NewTypeRef(0, 0, "L", nil)
	v := ast.NewVarStatement(0, 0, "a", ref, ast.NewLit(ast.StringLiteral, 0, 0, "1"))

	vm := compileFile(t, []ast.Node{a, l, v})
	runOK(t, vm)

	ref2 := ast.NewTypeRef(0, 0, "L", nil)
	v2 := ast.NewVarStatement(0, 0, "b", ref2, ast.NewLit(ast.StringLiteral, 0, 0, "2"))
	vm2 := compileFile(t, []ast.Node{a, l, v2})
	require.NoError(t, vm2.Run())
	require.Len(t, vm2.Module.Diagnostics, 1)
}

// Stack GC at the end of Run must release every Type the run allocated,
// regardless of how many subroutine calls, unions, and tuples it produced.
func TestRunLeavesNoLiveTypesBehind(t *testing.T) {
	boxParam := ast.NewTypeParam(0, 0, "T", nil, nil)
	boxType := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewTypeRef(0, 0, "T", nil)),
	})
	box := ast.NewTypeAlias(0, 0, "Box", []*ast.TypeParam{boxParam}, boxType)
	boxOfString := ast.NewTypeRef(0, 0, "Box", []ast.Node{ast.NewTypeRef(0, 0, "string", nil)})
	init := ast.NewTuple(0, 0, []*ast.TupleMember{
		ast.NewTupleMember(0, 0, "", false, false, ast.NewLit(ast.StringLiteral, 0, 0, "x")),
	})
	v := ast.NewVarStatement(0, 0, "a", boxOfString, init)

	vm := compileFile(t, []ast.Node{box, v})
	runOK(t, vm)

	liveTypes, liveRefs := vm.Heap.Active()
	assert.Zero(t, liveTypes, "every allocated Type must be released by stack GC")
	assert.Zero(t, liveRefs, "every allocated TypeRef must be released by stack GC")
}
