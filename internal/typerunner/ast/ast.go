// Package ast defines the minimal AST node shape the compiler consumes.
// The parser front-end that produces these nodes is out of scope (spec.md
// §1 Non-goals) — this package only fixes the contract between "whatever
// parsed the source" and internal/typerunner/compiler.
package ast

// Kind tags a Node's concrete type.
type Kind uint8

const (
	Identifier Kind = iota
	StringLiteral
	NumberLiteral
	BigIntLiteral
	BooleanLiteral
	NullKeyword
	UndefinedKeyword
	AnyKeyword
	UnknownKeyword
	NeverKeyword

	TypeReference
	UnionType
	TupleType
	TupleMemberKind
	ObjectLiteralType
	PropertySignature
	ArrayType
	RestType
	ConditionalType
	TemplateLiteralType
	IndexedAccessType

	TypeParameter
	TypeAliasDeclaration
	VariableStatement
	SourceFileKind
)

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

var kindNames = [...]string{
	"Identifier", "StringLiteral", "NumberLiteral", "BigIntLiteral", "BooleanLiteral",
	"NullKeyword", "UndefinedKeyword", "AnyKeyword", "UnknownKeyword", "NeverKeyword",
	"TypeReference", "UnionType", "TupleType", "TupleMember", "ObjectLiteralType",
	"PropertySignature", "ArrayType", "RestType", "ConditionalType", "TemplateLiteralType",
	"IndexedAccessType", "TypeParameter", "TypeAliasDeclaration", "VariableStatement", "SourceFile",
}

// Node is any AST node the compiler walks. Pos/End are byte offsets into the
// original source text, carried through to the Module source map.
type Node interface {
	NodeKind() Kind
	Range() (pos, end int)
}

type base struct {
	Kind     Kind
	Pos, End int
}

func (b base) NodeKind() Kind    { return b.Kind }
func (b base) Range() (int, int) { return b.Pos, b.End }

// Ident is a bare name — a type reference's callee, a property key, a type
// parameter's name.
type Ident struct {
	base
	Text string
}

func NewIdent(pos, end int, text string) *Ident {
	return &Ident{base{Identifier, pos, end}, text}
}

// Lit is any atomic literal or keyword type node (`"abc"`, `42`, `true`,
// `null`, `undefined`, `any`, `unknown`, `never`).
type Lit struct {
	base
	Text string // literal text for String/Number/BigInt; ignored for keywords
	Bool bool   // value for BooleanLiteral
}

func NewLit(kind Kind, pos, end int, text string) *Lit {
	return &Lit{base{kind, pos, end}, text, false}
}

func NewBoolLit(pos, end int, value bool) *Lit {
	return &Lit{base{BooleanLiteral, pos, end}, "", value}
}

// TypeRef is a named type use, optionally instantiated with type arguments
// (`Array<T>`, `Partial<User>`, or a bare `T`).
type TypeRef struct {
	base
	Name          string
	TypeArguments []Node
}

func NewTypeRef(pos, end int, name string, args []Node) *TypeRef {
	return &TypeRef{base{TypeReference, pos, end}, name, args}
}

// Union is `A | B | C`.
type Union struct {
	base
	Members []Node
}

func NewUnion(pos, end int, members []Node) *Union {
	return &Union{base{UnionType, pos, end}, members}
}

// Tuple is `[A, name?: B, ...C]`.
type Tuple struct {
	base
	Members []*TupleMember
}

func NewTuple(pos, end int, members []*TupleMember) *Tuple {
	return &Tuple{base{TupleType, pos, end}, members}
}

type TupleMemberNode struct {
	base
	Name     string // empty when unnamed
	Optional bool
	Rest     bool
	Type     Node
}

func NewTupleMember(pos, end int, name string, optional, rest bool, typ Node) *TupleMember {
	return &TupleMember{base{TupleMemberKind, pos, end}, name, optional, rest, typ}
}

// TupleMember is exported as a type alias so callers can write
// `[]*ast.TupleMember` without the Node indirection.
type TupleMember = TupleMemberNode

// ObjectLiteral is `{ a: string; b?: number }`.
type ObjectLiteral struct {
	base
	Members []*PropertySig
}

func NewObjectLiteral(pos, end int, members []*PropertySig) *ObjectLiteral {
	return &ObjectLiteral{base{ObjectLiteralType, pos, end}, members}
}

type PropertySigNode struct {
	base
	Name     string
	Optional bool
	Readonly bool
	Type     Node
}

func NewPropertySig(pos, end int, name string, optional, readonly bool, typ Node) *PropertySig {
	return &PropertySig{base{PropertySignature, pos, end}, name, optional, readonly, typ}
}

type PropertySig = PropertySigNode

// ArrayOf is `T[]`.
type ArrayOf struct {
	base
	Element Node
}

func NewArrayOf(pos, end int, element Node) *ArrayOf {
	return &ArrayOf{base{ArrayType, pos, end}, element}
}

// RestOf is `...T` inside a tuple position.
type RestOf struct {
	base
	Element Node
}

func NewRestOf(pos, end int, element Node) *RestOf {
	return &RestOf{base{RestType, pos, end}, element}
}

// Conditional is `Check extends Extends ? True : False`.
type Conditional struct {
	base
	Check, Extends, True, False Node
}

func NewConditional(pos, end int, check, extends, trueT, falseT Node) *Conditional {
	return &Conditional{base{ConditionalType, pos, end}, check, extends, trueT, falseT}
}

// TemplateLiteral is `` `prefix-${T}-suffix` `` — Quasis has one more entry
// than Types, interleaved Quasis[0] Types[0] Quasis[1] ... matching the
// original compiler's pushOp sequencing (compiler.h).
type TemplateLiteral struct {
	base
	Quasis []string
	Types  []Node
}

func NewTemplateLiteral(pos, end int, quasis []string, types []Node) *TemplateLiteral {
	return &TemplateLiteral{base{TemplateLiteralType, pos, end}, quasis, types}
}

// IndexedAccess is `T[K]` — only `Tuple['length']` has real semantics
// (spec.md §9; SPEC_FULL.md §5).
type IndexedAccess struct {
	base
	Object Node
	Index  Node
}

func NewIndexedAccess(pos, end int, object, index Node) *IndexedAccess {
	return &IndexedAccess{base{IndexedAccessType, pos, end}, object, index}
}

// TypeParam is a type alias's `<T extends C = D>` entry.
type TypeParam struct {
	base
	Name       string
	Constraint Node // nil if absent
	Default    Node // nil if absent
}

func NewTypeParam(pos, end int, name string, constraint, def Node) *TypeParam {
	return &TypeParam{base{TypeParameter, pos, end}, name, constraint, def}
}

// TypeAlias is `type Name<Params> = Type;`.
type TypeAlias struct {
	base
	Name       string
	Parameters []*TypeParam
	Type       Node
}

func NewTypeAlias(pos, end int, name string, params []*TypeParam, typ Node) *TypeAlias {
	return &TypeAlias{base{TypeAliasDeclaration, pos, end}, name, params, typ}
}

// VarStatement is `let name: Annotation = Initializer;` — Annotation may be
// nil (inferred from Initializer, which then gets widened; SPEC_FULL.md §5).
type VarStatement struct {
	base
	Name        string
	Annotation  Node
	Initializer Node
}

func NewVarStatement(pos, end int, name string, annotation, initializer Node) *VarStatement {
	return &VarStatement{base{VariableStatement, pos, end}, name, annotation, initializer}
}

// SourceFile is the parser's top-level handoff: a flat list of type alias
// declarations and variable statements in source order.
type SourceFile struct {
	base
	Statements []Node
}

func NewSourceFile(pos, end int, statements []Node) *SourceFile {
	return &SourceFile{base{SourceFileKind, pos, end}, statements}
}
