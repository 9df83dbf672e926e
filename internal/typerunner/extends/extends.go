// Package extends implements the structural assignability relation the VM's
// Extends opcode evaluates. Grounded on original_source/src/checker/
// check2.h's `extends(Type*, Type*)` stub — which only handles the
// Literal/String/Number right-hand cases — generalized here to the full
// relation spec.md §4.7 describes: Any/Unknown/Never, Literal, primitives,
// Union (both sides), Tuple, ObjectLiteral, and Array.
package extends

import "github.com/tsvm/typerunner/internal/typerunner/types"

// Extends reports whether left is assignable to right — "does left extend
// right" in the source language's own words. The relation is right-driven:
// right's Kind decides which case fires first, matching the original's
// switch-on-right-kind structure.
func Extends(left, right *types.Type) bool {
	switch {
	case left == nil || right == nil:
		return false
	case right.Kind == types.Any || right.Kind == types.Unknown:
		return true
	case left.Kind == types.Never:
		return true
	case right.Kind == types.Never:
		return false
	case left.Kind == types.Any:
		return true
	}

	if right.Kind == types.Union {
		return extendsSomeMember(left, right)
	}
	if left.Kind == types.Union {
		return everyMemberExtends(left, right)
	}

	switch right.Kind {
	case types.Literal:
		return extendsLiteral(left, right)
	case types.String:
		return left.Kind == types.String || (left.Kind == types.Literal && left.HasFlag(types.StringLiteral))
	case types.Number:
		return left.Kind == types.Number || (left.Kind == types.Literal && left.HasFlag(types.NumberLiteral))
	case types.Boolean:
		return left.Kind == types.Boolean ||
			(left.Kind == types.Literal && (left.HasFlag(types.True) || left.HasFlag(types.False)))
	case types.BigInt:
		return left.Kind == types.BigInt || (left.Kind == types.Literal && left.HasFlag(types.BigIntLiteral))
	case types.Symbol:
		return left.Kind == types.Symbol
	case types.Null:
		return left.Kind == types.Null
	case types.Undefined:
		return left.Kind == types.Undefined
	case types.Tuple:
		return left.Kind == types.Tuple && extendsTuple(left, right)
	case types.Array:
		return extendsArray(left, right)
	case types.ObjectLiteral:
		return left.Kind == types.ObjectLiteral && extendsObject(left, right)
	default:
		return left.Kind == right.Kind
	}
}

func extendsSomeMember(left, right *types.Type) bool {
	found := false
	types.ForEachChild(right, func(member *types.Type) bool {
		if Extends(left, member) {
			found = true
			return false
		}
		return true
	})
	return found
}

func everyMemberExtends(left, right *types.Type) bool {
	ok := true
	types.ForEachChild(left, func(member *types.Type) bool {
		if !Extends(member, right) {
			ok = false
			return false
		}
		return true
	})
	return ok
}

func extendsLiteral(left, right *types.Type) bool {
	if left.Kind != types.Literal {
		return false
	}
	return left.Flags&literalFlagMask(right) != 0 && left.Text == right.Text
}

func literalFlagMask(t *types.Type) types.Flag {
	var mask types.Flag
	for _, f := range []types.Flag{types.StringLiteral, types.NumberLiteral, types.BigIntLiteral, types.True, types.False} {
		if t.HasFlag(f) {
			mask |= f
		}
	}
	return mask
}

// extendsTuple requires right's fixed members to each be extended by the
// corresponding left member, right's trailing Rest (if any) to absorb any
// extra left members, and rejects an optional left member in the position of
// a non-optional right member (optionality can only widen, never narrow,
// across extends).
// Both sides are flattened first, since a spread of a concrete tuple
// (`[...A, 3]` with `A = [1, 2]`) compiles to a rest member whose element is
// the whole tuple `A` — that rest absorbs left members one at a time against
// `A` itself rather than against `A`'s own elements unless flattened.
func extendsTuple(left, right *types.Type) bool {
	var leftNodes, rightNodes []*types.Type
	types.ForEachChild(left, func(c *types.Type) bool { leftNodes = append(leftNodes, c); return true })
	types.ForEachChild(right, func(c *types.Type) bool { rightNodes = append(rightNodes, c); return true })

	leftMembers := flattenTupleMembers(leftNodes)
	rightMembers := flattenTupleMembers(rightNodes)

	li := 0
	for _, rm := range rightMembers {
		if rm.rest {
			for li < len(leftMembers) {
				if !Extends(leftMembers[li].elem, rm.elem) {
					return false
				}
				li++
			}
			continue
		}
		if li >= len(leftMembers) {
			return rm.optional
		}
		lm := leftMembers[li]
		if lm.optional && !rm.optional {
			return false
		}
		if !Extends(lm.elem, rm.elem) {
			return false
		}
		li++
	}
	return li >= len(leftMembers)
}

type tupleElem struct {
	elem     *types.Type
	optional bool
	rest     bool
}

// flattenTupleMembers expands a rest member whose element is itself a
// concrete Tuple into that tuple's own elements, in order, rather than
// leaving it as a single rest absorbing one-against-the-whole-tuple. A rest
// of anything else (e.g. an Array) is left as an absorbing rest.
func flattenTupleMembers(members []*types.Type) []tupleElem {
	var out []tupleElem
	for _, m := range members {
		elem, optional, rest := tupleMemberShape(m)
		if rest && elem != nil && elem.Kind == types.Tuple {
			var inner []*types.Type
			types.ForEachChild(elem, func(c *types.Type) bool { inner = append(inner, c); return true })
			out = append(out, flattenTupleMembers(inner)...)
			continue
		}
		out = append(out, tupleElem{elem: elem, optional: optional, rest: rest})
	}
	return out
}

func tupleMemberShape(t *types.Type) (elem *types.Type, optional, rest bool) {
	if t.Kind != types.TupleMember {
		return t, false, false
	}
	if t.Child != nil && t.Child.Kind == types.Rest {
		return t.Child.Child, t.HasFlag(types.Optional), true
	}
	return t.Child, t.HasFlag(types.Optional), false
}

// extendsArray additionally accepts a Tuple on the left whose every element
// extends the array's element type (spec.md §4.7).
func extendsArray(left, right *types.Type) bool {
	if left.Kind == types.Tuple {
		ok := true
		types.ForEachChild(left, func(m *types.Type) bool {
			elem, _, _ := tupleMemberShape(m)
			if !Extends(elem, right.Child) {
				ok = false
				return false
			}
			return true
		})
		return ok
	}
	if left.Kind != types.Array {
		return false
	}
	return Extends(left.Child, right.Child)
}

// extendsObject requires every one of right's PropertySignature members to
// be matched by a same-named, extending member on left. Extra members on
// left are permitted — this is structural width subtyping.
func extendsObject(left, right *types.Type) bool {
	ok := true
	types.ForEachChild(right, func(rProp *types.Type) bool {
		name, rType, rOptional := propertyShape(rProp)
		lType, found := findProperty(left, name)
		if !found {
			if !rOptional {
				ok = false
				return false
			}
			return true
		}
		if !Extends(lType, rType) {
			ok = false
			return false
		}
		return true
	})
	return ok
}

// propertyShape reads a PropertySignature's name/value/optionality — the
// same Text/Child/Optional layout types.Stringify's PropertySignature case
// expects.
func propertyShape(t *types.Type) (name string, typ *types.Type, optional bool) {
	return t.Text, t.Child, t.HasFlag(types.Optional)
}

func findProperty(obj *types.Type, name string) (*types.Type, bool) {
	var found *types.Type
	types.ForEachChild(obj, func(prop *types.Type) bool {
		propName, propType, _ := propertyShape(prop)
		if propName == name {
			found = propType
			return false
		}
		return true
	})
	return found, found != nil
}
