package types

import "strings"

// Stringify renders a Type graph to its TypeScript-like textual form, used
// to compose Diagnostic messages such as `X is not assignable to Y`. Ported
// from types2.h's stringifyType/stringify — not named as a [MODULE] in
// spec.md, but required by every Diagnostic that needs real type text
// rather than an opaque Kind tag (see SPEC_FULL.md §5).
func Stringify(t *Type) string {
	var b strings.Builder
	stringifyInto(t, &b, 0)
	return b.String()
}

const stringifyChildLimit = 20

func stringifyInto(t *Type, b *strings.Builder, depth int) {
	if t == nil {
		b.WriteString("unknown")
		return
	}
	switch t.Kind {
	case Boolean:
		b.WriteString("boolean")
	case Number:
		b.WriteString("number")
	case String:
		b.WriteString("string")
	case BigInt:
		b.WriteString("bigint")
	case Symbol:
		b.WriteString("symbol")
	case Null:
		b.WriteString("null")
	case Undefined:
		b.WriteString("undefined")
	case Never:
		b.WriteString("never")
	case Any:
		b.WriteString("any")
	case Unknown:
		b.WriteString("unknown")
	case Literal:
		stringifyLiteral(t, b)
	case PropertySignature:
		if t.HasFlag(Readonly) {
			b.WriteString("readonly ")
		}
		b.WriteString(t.Text)
		if t.HasFlag(Optional) {
			b.WriteString("?")
		}
		b.WriteString(": ")
		stringifyInto(t.Child, b, depth)
	case ObjectLiteral:
		b.WriteString("{")
		i := 0
		ForEachChild(t, func(child *Type) bool {
			if i > stringifyChildLimit {
				b.WriteString("...")
				return false
			}
			if i > 0 {
				b.WriteString("; ")
			}
			stringifyInto(child, b, depth)
			i++
			return true
		})
		b.WriteString("}")
	case TupleMember:
		if t.Text != "" {
			b.WriteString(t.Text)
			if t.HasFlag(Optional) {
				b.WriteString("?")
			}
			b.WriteString(": ")
		}
		if t.Child == nil {
			b.WriteString("unknown")
		} else {
			stringifyInto(t.Child, b, depth)
		}
	case Array:
		b.WriteString("Array<")
		stringifyInto(t.Child, b, depth)
		b.WriteString(">")
	case Rest:
		b.WriteString("...")
		stringifyInto(t.Child, b, depth)
	case Parameter:
		stringifyInto(t.Child, b, depth)
	case Tuple:
		b.WriteString("[")
		i := 0
		ForEachChild(t, func(child *Type) bool {
			if i > stringifyChildLimit {
				b.WriteString("...")
				return false
			}
			if i > 0 {
				b.WriteString(", ")
			}
			stringifyInto(child, b, depth)
			i++
			return true
		})
		b.WriteString("]")
	case Union:
		i := 0
		ForEachChild(t, func(child *Type) bool {
			if i > stringifyChildLimit {
				b.WriteString("...")
				return false
			}
			if i > 0 {
				b.WriteString(" | ")
			}
			stringifyInto(child, b, depth)
			i++
			return true
		})
	case TemplateLiteral:
		b.WriteString("`")
		ForEachChild(t, func(child *Type) bool {
			isLiteral := child.Kind == Literal
			if !isLiteral {
				b.WriteString("${")
			}
			if child.HasFlag(StringLiteral) {
				b.WriteString(child.Text)
			} else {
				stringifyInto(child, b, depth)
			}
			if !isLiteral {
				b.WriteString("}")
			}
			return true
		})
		b.WriteString("`")
	default:
		b.WriteString("*notStringified*")
	}
}

func stringifyLiteral(t *Type, b *strings.Builder) {
	switch {
	case t.HasFlag(StringLiteral):
		b.WriteString("\"")
		b.WriteString(t.Text)
		b.WriteString("\"")
	case t.HasFlag(NumberLiteral):
		b.WriteString(t.Text)
	case t.HasFlag(BigIntLiteral):
		b.WriteString(t.Text)
		b.WriteString("n")
	case t.HasFlag(True):
		b.WriteString("true")
	case t.HasFlag(False):
		b.WriteString("false")
	default:
		b.WriteString("unknownLiteral")
	}
}
