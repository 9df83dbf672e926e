package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsvm/typerunner/internal/typerunner/ast"
	"github.com/tsvm/typerunner/internal/typerunner/isa"
)

func sourceFile(statements ...ast.Node) *ast.SourceFile {
	return ast.NewSourceFile(0, 0, statements)
}

func TestCompileSimpleAliasProducesCallableSubroutine(t *testing.T) {
	alias := ast.NewTypeAlias(0, 0, "Str", nil, ast.NewTypeRef(0, 0, "string", nil))
	v := ast.NewVarStatement(0, 0, "a", ast.NewTypeRef(10, 16, "Str", nil), ast.NewTypeRef(20, 25, "string", nil))

	m, err := CompileSourceFile(sourceFile(alias, v))
	require.NoError(t, err)
	require.Len(t, m.Subroutines, 2)
	assert.Equal(t, "main", m.Subroutines[0].Name)
	assert.Equal(t, "Str", m.Subroutines[1].Name)
}

func TestCompileUnresolvedReferenceEmitsErrorOpcode(t *testing.T) {
	v := ast.NewVarStatement(0, 0, "a", nil, ast.NewTypeRef(5, 11, "Missing", nil))
	m, err := CompileSourceFile(sourceFile(v))
	require.NoError(t, err)

	mainCode := m.Subroutines[0].Code
	require.Contains(t, mainCode, byte(isa.Error))
}

func TestForwardReferenceBetweenAliasesResolves(t *testing.T) {
	// B is declared before A but A references B — symbol scanning must
	// declare every alias's subroutine slot before any body is compiled.
	b := ast.NewTypeAlias(0, 0, "B", nil, ast.NewTypeRef(0, 0, "string", nil))
	a := ast.NewTypeAlias(0, 0, "A", nil, ast.NewTypeRef(0, 0, "B", nil))

	m, err := CompileSourceFile(sourceFile(a, b))
	require.NoError(t, err)
	require.Len(t, m.Subroutines, 3) // main, A, B

	aCode := m.Subroutines[1].Code
	assert.NotContains(t, aCode, byte(isa.Error), "A's reference to B must resolve, not fall through to Error")
}

func TestTailPositionCallIsRewrittenToTailCall(t *testing.T) {
	b := ast.NewTypeAlias(0, 0, "B", nil, ast.NewTypeRef(0, 0, "string", nil))
	a := ast.NewTypeAlias(0, 0, "A", nil, ast.NewTypeRef(0, 0, "B", nil))

	m, err := CompileSourceFile(sourceFile(b, a))
	require.NoError(t, err)

	aSub := m.Subroutines[2]
	require.Equal(t, "A", aSub.Name)
	assert.Equal(t, byte(isa.TailCall), aSub.Code[0], "A's body is a single tail-position reference to B")
}

func TestTailPositionRestIsRewrittenToRestReuse(t *testing.T) {
	member := ast.NewTupleMember(0, 0, "", false, true, ast.NewArrayOf(0, 0, ast.NewTypeRef(0, 0, "string", nil)))
	alias := ast.NewTypeAlias(0, 0, "Spread", nil, ast.NewTuple(0, 0, []*ast.TupleMember{member}))

	m, err := CompileSourceFile(sourceFile(alias))
	require.NoError(t, err)

	code := m.Subroutines[1].Code
	require.Contains(t, code, byte(isa.RestReuse))
	assert.NotContains(t, code, byte(isa.Rest))
}

func TestUnannotatedVariableStatementEmitsWiden(t *testing.T) {
	v := ast.NewVarStatement(0, 0, "a", nil, ast.NewLit(ast.StringLiteral, 0, 0, "abc"))
	m, err := CompileSourceFile(sourceFile(v))
	require.NoError(t, err)

	mainCode := m.Subroutines[0].Code
	assert.Equal(t, byte(isa.Widen), mainCode[len(mainCode)-2], "Widen must sit right before the closing Halt")
	assert.Equal(t, byte(isa.Halt), mainCode[len(mainCode)-1])
}

func TestAnnotatedVariableStatementEmitsAssignNotWiden(t *testing.T) {
	v := ast.NewVarStatement(0, 0, "a", ast.NewTypeRef(0, 0, "string", nil), ast.NewLit(ast.StringLiteral, 0, 0, "abc"))
	m, err := CompileSourceFile(sourceFile(v))
	require.NoError(t, err)

	mainCode := m.Subroutines[0].Code
	assert.NotContains(t, mainCode, byte(isa.Widen))
	assert.Contains(t, mainCode, byte(isa.Assign))
}

func TestIndexedAccessOnNonLengthKeyFallsThroughToNever(t *testing.T) {
	alias := ast.NewTypeAlias(0, 0, "X", nil, ast.NewIndexedAccess(0, 0,
		ast.NewTypeRef(0, 0, "string", nil),
		ast.NewLit(ast.StringLiteral, 0, 0, "toUpperCase"),
	))
	m, err := CompileSourceFile(sourceFile(alias))
	require.NoError(t, err)

	code := m.Subroutines[1].Code
	assert.NotContains(t, code, byte(isa.IndexAccess))
	assert.Contains(t, code, byte(isa.Never))
}
