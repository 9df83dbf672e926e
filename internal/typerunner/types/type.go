// Package types implements the VM's type graph: the Type/TypeRef node
// model, the pooled allocator backing it, and users-count garbage
// collection. Grounded on original_source/src/checker/types2.h and
// MemoryPool.h (marcj/TypeRunner), translated from an intrusive C++ object
// graph into Go structs linked by pointers and released through an explicit
// Heap rather than RAII destructors.
package types

import (
	"github.com/cespare/xxhash/v2"
)

// Kind is the tag of a Type node.
type Kind uint8

const (
	Unknown Kind = iota
	Never
	Any
	Null
	Undefined
	String
	Number
	BigInt
	Boolean
	Symbol
	Literal
	PropertySignature
	ObjectLiteral
	Union
	Array
	Rest
	Tuple
	TupleMember
	TemplateLiteral
	Parameter
	Function
	FunctionRef
	Class
	ClassInstance
	IndexSignature
	Method
)

var kindNames = [...]string{
	"Unknown", "Never", "Any", "Null", "Undefined", "String", "Number", "BigInt",
	"Boolean", "Symbol", "Literal", "PropertySignature", "ObjectLiteral", "Union",
	"Array", "Rest", "Tuple", "TupleMember", "TemplateLiteral", "Parameter",
	"Function", "FunctionRef", "Class", "ClassInstance", "IndexSignature", "Method",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Invalid"
}

// Flag is the type-node bitset described in spec.md §3.
type Flag uint32

const (
	Readonly Flag = 1 << iota
	Optional
	StringLiteral
	NumberLiteral
	BooleanLiteral
	BigIntLiteral
	True
	False
	Stored            // referenced from a Subroutine cache; must not be stolen or mutated in place
	RestReuse         // the rest-reuse optimization permits moving rather than copying this value
	UnprovidedArgument
)

// TypeRef is a pool-allocated, independently reference-counted link in a
// children chain (union members, tuple members, object members, template
// segments).
type TypeRef struct {
	Type *Type
	Next *TypeRef
}

// Type is the unit of VM value: a pooled node in the type graph.
type Type struct {
	Kind  Kind
	Flags Flag
	Hash  uint64
	Text  string

	// IP is the instruction pointer that produced this Type, used to
	// attach diagnostics to source locations via the module source map.
	IP uint32

	// Children is the head of a linked chain of owned TypeRef cells for
	// compound kinds (Union, Tuple, ObjectLiteral, TemplateLiteral).
	Children *TypeRef

	// Child is the single owned child for Array, TupleMember,
	// PropertySignature, Rest, and Parameter kinds.
	Child *Type

	// Users is the reference count that is the sole basis for garbage
	// collection (spec.md §5).
	Users int
}

// HasFlag reports whether all bits of f are set.
func (t *Type) HasFlag(f Flag) bool {
	return t.Flags&f == f
}

// SetFlag ORs f into the type's flag bitset and returns t for chaining.
func (t *Type) SetFlag(f Flag) *Type {
	t.Flags |= f
	return t
}

// SingleChild reports whether Children holds exactly one element.
func (t *Type) SingleChild() bool {
	return t.Children != nil && t.Children.Next == nil
}

// HashText computes the xxh64 content hash of s — the Type.hash described
// in spec.md §3. Grounded on github.com/cespare/xxhash/v2, the real xxh64
// implementation the wider example pack already standardizes on for
// non-cryptographic content hashing.
func HashText(s string) uint64 {
	return xxhash.Sum64String(s)
}

// SetLiteral stamps a literal flag plus its textual value/hash, mirroring
// Type::setLiteral in types2.h.
func (t *Type) SetLiteral(flag Flag, value string) *Type {
	t.Flags |= flag
	t.Text = value
	t.Hash = HashText(value)
	return t
}

// FindChild walks the Children chain for an entry whose Hash matches,
// mirroring types2.h's findChild — a linear scan, since Type.Children is
// specified as a singly-linked chain rather than a hash table.
func FindChild(t *Type, hash uint64) *Type {
	for cur := t.Children; cur != nil; cur = cur.Next {
		if cur.Type.Hash == hash {
			return cur.Type
		}
	}
	return nil
}

// ForEachChild visits every child in Children order, stopping early if
// visit returns false.
func ForEachChild(t *Type, visit func(child *Type) bool) {
	for cur := t.Children; cur != nil; cur = cur.Next {
		if !visit(cur.Type) {
			return
		}
	}
}

// ChildCount returns the number of entries in the Children chain.
func ChildCount(t *Type) int {
	n := 0
	for cur := t.Children; cur != nil; cur = cur.Next {
		n++
	}
	return n
}
