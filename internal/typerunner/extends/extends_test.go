package extends

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsvm/typerunner/internal/typerunner/types"
)

func prim(kind types.Kind) *types.Type { return &types.Type{Kind: kind} }

func stringLit(v string) *types.Type {
	t := &types.Type{Kind: types.Literal}
	t.SetLiteral(types.StringLiteral, v)
	return t
}

func TestExtendsReflexiveOverPrimitives(t *testing.T) {
	str := prim(types.String)
	assert.True(t, Extends(str, str), "extends(A, A) must be true")
}

func TestExtendsNeverIsBottomOnlyOnTheLeft(t *testing.T) {
	never := prim(types.Never)
	str := prim(types.String)
	assert.True(t, Extends(never, str), "never extends everything")
	assert.False(t, Extends(str, never), "nothing but never extends never")
	assert.True(t, Extends(never, never))
}

func TestExtendsAnyAndUnknownAreTopOnTheRight(t *testing.T) {
	str := prim(types.String)
	assert.True(t, Extends(str, prim(types.Any)))
	assert.True(t, Extends(str, prim(types.Unknown)))
}

func TestExtendsLiteralToItsBasePrimitive(t *testing.T) {
	assert.True(t, Extends(stringLit("abc"), prim(types.String)))
	assert.False(t, Extends(prim(types.String), stringLit("abc")), "the base primitive does not extend a narrower literal")
}

func TestExtendsUnionRightRequiresOnlyOneMember(t *testing.T) {
	h := types.NewHeap()
	union := h.Allocate(types.Union)
	union.Children = h.AllocRef(prim(types.String))
	union.Children.Next = h.AllocRef(prim(types.Number))

	assert.True(t, Extends(prim(types.String), union))
	assert.False(t, Extends(prim(types.Boolean), union))
}

func TestExtendsUnionLeftRequiresEveryMember(t *testing.T) {
	h := types.NewHeap()
	union := h.Allocate(types.Union)
	union.Children = h.AllocRef(stringLit("a"))
	union.Children.Next = h.AllocRef(stringLit("b"))

	assert.True(t, Extends(union, prim(types.String)), "every member of (\"a\"|\"b\") extends string")
	assert.False(t, Extends(union, stringLit("a")), "\"b\" does not extend the literal \"a\"")
}

func TestExtendsTupleIsPositional(t *testing.T) {
	h := types.NewHeap()
	left := h.Allocate(types.Tuple)
	left.Children = h.AllocRef(stringLit("abc"))
	left.Children.Next = h.AllocRef(prim(types.Number))

	right := h.Allocate(types.Tuple)
	right.Children = h.AllocRef(prim(types.String))
	right.Children.Next = h.AllocRef(prim(types.Number))

	assert.True(t, Extends(left, right))

	shortRight := h.Allocate(types.Tuple)
	shortRight.Children = h.AllocRef(prim(types.String))
	assert.False(t, Extends(left, shortRight), "a longer tuple does not extend a shorter one")
}

func numLit(v string) *types.Type {
	t := &types.Type{Kind: types.Literal}
	t.SetLiteral(types.NumberLiteral, v)
	return t
}

func tupleMember(h *types.Heap, elem *types.Type) *types.Type {
	m := h.Allocate(types.TupleMember)
	m.Child = elem
	return m
}

func restMember(h *types.Heap, elem *types.Type) *types.Type {
	m := h.Allocate(types.TupleMember)
	rest := h.Allocate(types.Rest)
	rest.Child = elem
	m.Child = rest
	return m
}

// A spread of a concrete tuple (`[...A, 3]` with `A = [1, 2]`) must flatten
// into A's own elements — [1, 2, 3] extends it, but [1, 3] (missing the
// middle element) must not.
func TestExtendsTupleRestOfConcreteTupleFlattens(t *testing.T) {
	h := types.NewHeap()
	a := h.Allocate(types.Tuple)
	a.Children = h.AllocRef(numLit("1"))
	a.Children.Next = h.AllocRef(numLit("2"))

	right := h.Allocate(types.Tuple)
	right.Children = h.AllocRef(restMember(h, a))
	right.Children.Next = h.AllocRef(tupleMember(h, numLit("3")))

	match := h.Allocate(types.Tuple)
	match.Children = h.AllocRef(numLit("1"))
	match.Children.Next = h.AllocRef(numLit("2"))
	match.Children.Next.Next = h.AllocRef(numLit("3"))
	assert.True(t, Extends(match, right), "[1,2,3] extends [...A, 3]")

	mismatch := h.Allocate(types.Tuple)
	mismatch.Children = h.AllocRef(numLit("1"))
	mismatch.Children.Next = h.AllocRef(numLit("3"))
	assert.False(t, Extends(mismatch, right), "[1,3] is missing A's second element")
}

func TestExtendsArrayAcceptsTupleWhoseEveryElementExtends(t *testing.T) {
	h := types.NewHeap()
	tuple := h.Allocate(types.Tuple)
	tuple.Children = h.AllocRef(prim(types.Number))
	tuple.Children.Next = h.AllocRef(numLit("2"))

	array := h.Allocate(types.Array)
	array.Child = prim(types.Number)
	assert.True(t, Extends(tuple, array), "[number, 2] extends number[]")

	stringArray := h.Allocate(types.Array)
	stringArray.Child = prim(types.String)
	assert.False(t, Extends(tuple, stringArray), "a number tuple does not extend string[]")
}

func TestExtendsObjectIsWidthSubtyping(t *testing.T) {
	h := types.NewHeap()
	prop := func(name string, typ *types.Type) *types.Type {
		p := h.Allocate(types.PropertySignature)
		p.Text = name
		p.Child = typ
		return p
	}

	left := h.Allocate(types.ObjectLiteral)
	left.Children = h.AllocRef(prop("a", prim(types.String)))
	left.Children.Next = h.AllocRef(prop("b", prim(types.Number)))

	right := h.Allocate(types.ObjectLiteral)
	right.Children = h.AllocRef(prop("a", prim(types.String)))

	assert.True(t, Extends(left, right), "extra properties on the left are permitted")
	assert.False(t, Extends(right, left), "missing required property b fails")
}
