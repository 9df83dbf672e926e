package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReusesFreedSlots(t *testing.T) {
	p := NewPool[Type](4)
	a := p.Allocate()
	require.Equal(t, 1, p.Active())

	p.Deallocate(a)
	assert.Equal(t, 0, p.Active())

	b := p.Allocate()
	assert.Same(t, a, b, "a freed slot should be handed back out before growing a new block")
}

func TestPoolGrowsInBlocks(t *testing.T) {
	p := NewPool[Type](2)
	for i := 0; i < 5; i++ {
		p.Allocate()
	}
	assert.Equal(t, 5, p.Active())
	assert.Equal(t, 3, p.Blocks(), "5 slots at blockSize=2 should need 3 blocks")
}

func TestHeapDropFreesZeroUserType(t *testing.T) {
	h := NewHeap()
	str := h.Allocate(String)
	Use(str)
	typesActive, _ := h.Active()
	require.Equal(t, 1, typesActive)

	h.Drop(str)
	h.Flush()
	typesActive, _ = h.Active()
	assert.Equal(t, 0, typesActive)
}

func TestHeapDropRecursesIntoUnionChildren(t *testing.T) {
	h := NewHeap()
	member := h.Allocate(String)
	union := h.Allocate(Union)
	union.Children = h.AllocRef(member)
	Use(union)

	h.Drop(union)
	h.Flush()
	h.FlushRefs()

	typesActive, refsActive := h.Active()
	assert.Equal(t, 0, typesActive, "dropping a union's last user must also release its member")
	assert.Equal(t, 0, refsActive)
}

func TestHeapClearReleasesEverything(t *testing.T) {
	h := NewHeap()
	for i := 0; i < 10; i++ {
		Use(h.Allocate(Number))
	}
	typesActive, _ := h.Active()
	require.Equal(t, 10, typesActive)

	h.Clear()
	typesActive, _ = h.Active()
	assert.Equal(t, 0, typesActive)
}

func TestFindChildLinearScan(t *testing.T) {
	h := NewHeap()
	a := h.Allocate(String)
	a.Hash = HashText("a")
	b := h.Allocate(Number)
	b.Hash = HashText("b")

	obj := h.Allocate(ObjectLiteral)
	obj.Children = h.AllocRef(a)
	obj.Children.Next = h.AllocRef(b)

	assert.Same(t, b, FindChild(obj, HashText("b")))
	assert.Nil(t, FindChild(obj, HashText("missing")))
}

func TestStringifyUnionAndTuple(t *testing.T) {
	h := NewHeap()
	str := h.Allocate(String)
	num := h.Allocate(Number)
	union := h.Allocate(Union)
	union.Children = h.AllocRef(str)
	union.Children.Next = h.AllocRef(num)

	assert.Equal(t, "string | number", Stringify(union))

	tup := h.Allocate(Tuple)
	tup.Children = h.AllocRef(str)
	tup.Children.Next = h.AllocRef(num)
	assert.Equal(t, "[string, number]", Stringify(tup))
}

func TestStringifyLiteral(t *testing.T) {
	lit := &Type{Kind: Literal}
	lit.SetLiteral(StringLiteral, "abc")
	assert.Equal(t, "\"abc\"", Stringify(lit))

	yes := &Type{Kind: Literal, Flags: True}
	assert.Equal(t, "true", Stringify(yes))
}
