package main

import (
	"encoding/json"
	"fmt"

	"github.com/tsvm/typerunner/internal/typerunner/ast"
)

// wireNode is the on-disk JSON shape for one AST node, covering every
// concrete node internal/typerunner/ast defines. It exists because the
// parser front-end that would normally produce ast.Node values is out of
// scope (spec.md §1 Non-goals) — compile takes the AST as JSON instead.
type wireNode struct {
	Kind string `json:"kind"`
	Pos  int    `json:"pos"`
	End  int    `json:"end"`

	Text string `json:"text,omitempty"`
	Bool bool   `json:"bool,omitempty"`
	Name string `json:"name,omitempty"`

	TypeArguments []wireNode `json:"typeArguments,omitempty"`
	Members       []wireNode `json:"members,omitempty"`

	TupleMembers  []wireTupleMember `json:"tupleMembers,omitempty"`
	ObjectMembers []wirePropertySig `json:"objectMembers,omitempty"`

	Element *wireNode `json:"element,omitempty"`

	Check   *wireNode `json:"check,omitempty"`
	Extends *wireNode `json:"extends,omitempty"`
	True    *wireNode `json:"true,omitempty"`
	False   *wireNode `json:"false,omitempty"`

	Quasis []string   `json:"quasis,omitempty"`
	Types  []wireNode `json:"types,omitempty"`

	Object *wireNode `json:"object,omitempty"`
	Index  *wireNode `json:"index,omitempty"`

	Constraint *wireNode `json:"constraint,omitempty"`
	Default    *wireNode `json:"default,omitempty"`
	Parameters []wireNode `json:"parameters,omitempty"`
	Type       *wireNode  `json:"type,omitempty"`

	Annotation  *wireNode `json:"annotation,omitempty"`
	Initializer *wireNode `json:"initializer,omitempty"`

	Optional bool `json:"optional,omitempty"`
	Readonly bool `json:"readonly,omitempty"`
	Rest     bool `json:"rest,omitempty"`

	Statements []wireNode `json:"statements,omitempty"`
}

type wireTupleMember struct {
	Pos, End int
	Name     string    `json:"name,omitempty"`
	Optional bool      `json:"optional,omitempty"`
	Rest     bool      `json:"rest,omitempty"`
	Type     wireNode  `json:"type"`
}

type wirePropertySig struct {
	Pos, End int
	Name     string   `json:"name"`
	Optional bool     `json:"optional,omitempty"`
	Readonly bool     `json:"readonly,omitempty"`
	Type     wireNode `json:"type"`
}

func decodeSourceFile(data []byte) (*ast.SourceFile, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing ast json: %w", err)
	}
	n, err := decodeNode(&w)
	if err != nil {
		return nil, err
	}
	file, ok := n.(*ast.SourceFile)
	if !ok {
		return nil, fmt.Errorf("ast json: top-level node must be a sourceFile, got %q", w.Kind)
	}
	return file, nil
}

func decodeNode(w *wireNode) (ast.Node, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Kind {
	case "identifier":
		return ast.NewIdent(w.Pos, w.End, w.Text), nil
	case "string", "number", "bigint":
		return ast.NewLit(literalKind(w.Kind), w.Pos, w.End, w.Text), nil
	case "boolean":
		return ast.NewBoolLit(w.Pos, w.End, w.Bool), nil
	case "null":
		return ast.NewLit(ast.NullKeyword, w.Pos, w.End, ""), nil
	case "undefined":
		return ast.NewLit(ast.UndefinedKeyword, w.Pos, w.End, ""), nil
	case "any":
		return ast.NewLit(ast.AnyKeyword, w.Pos, w.End, ""), nil
	case "unknown":
		return ast.NewLit(ast.UnknownKeyword, w.Pos, w.End, ""), nil
	case "never":
		return ast.NewLit(ast.NeverKeyword, w.Pos, w.End, ""), nil
	case "typeReference":
		args, err := decodeNodes(w.TypeArguments)
		if err != nil {
			return nil, err
		}
		return ast.NewTypeRef(w.Pos, w.End, w.Name, args), nil
	case "union":
		members, err := decodeNodes(w.Members)
		if err != nil {
			return nil, err
		}
		return ast.NewUnion(w.Pos, w.End, members), nil
	case "tuple":
		members := make([]*ast.TupleMember, len(w.TupleMembers))
		for i, m := range w.TupleMembers {
			elem, err := decodeNode(&m.Type)
			if err != nil {
				return nil, err
			}
			members[i] = ast.NewTupleMember(m.Pos, m.End, m.Name, m.Optional, m.Rest, elem)
		}
		return ast.NewTuple(w.Pos, w.End, members), nil
	case "objectLiteral":
		members := make([]*ast.PropertySig, len(w.ObjectMembers))
		for i, m := range w.ObjectMembers {
			typ, err := decodeNode(&m.Type)
			if err != nil {
				return nil, err
			}
			members[i] = ast.NewPropertySig(m.Pos, m.End, m.Name, m.Optional, m.Readonly, typ)
		}
		return ast.NewObjectLiteral(w.Pos, w.End, members), nil
	case "array":
		elem, err := decodeNode(w.Element)
		if err != nil {
			return nil, err
		}
		return ast.NewArrayOf(w.Pos, w.End, elem), nil
	case "rest":
		elem, err := decodeNode(w.Element)
		if err != nil {
			return nil, err
		}
		return ast.NewRestOf(w.Pos, w.End, elem), nil
	case "conditional":
		check, err := decodeNode(w.Check)
		if err != nil {
			return nil, err
		}
		ext, err := decodeNode(w.Extends)
		if err != nil {
			return nil, err
		}
		trueT, err := decodeNode(w.True)
		if err != nil {
			return nil, err
		}
		falseT, err := decodeNode(w.False)
		if err != nil {
			return nil, err
		}
		return ast.NewConditional(w.Pos, w.End, check, ext, trueT, falseT), nil
	case "templateLiteral":
		types, err := decodeNodes(w.Types)
		if err != nil {
			return nil, err
		}
		return ast.NewTemplateLiteral(w.Pos, w.End, w.Quasis, types), nil
	case "indexedAccess":
		obj, err := decodeNode(w.Object)
		if err != nil {
			return nil, err
		}
		idx, err := decodeNode(w.Index)
		if err != nil {
			return nil, err
		}
		return ast.NewIndexedAccess(w.Pos, w.End, obj, idx), nil
	case "typeAlias":
		params := make([]*ast.TypeParam, len(w.Parameters))
		for i, p := range w.Parameters {
			tp, err := decodeTypeParam(&p)
			if err != nil {
				return nil, err
			}
			params[i] = tp
		}
		typ, err := decodeNode(w.Type)
		if err != nil {
			return nil, err
		}
		return ast.NewTypeAlias(w.Pos, w.End, w.Name, params, typ), nil
	case "variableStatement":
		annotation, err := decodeNode(w.Annotation)
		if err != nil {
			return nil, err
		}
		init, err := decodeNode(w.Initializer)
		if err != nil {
			return nil, err
		}
		return ast.NewVarStatement(w.Pos, w.End, w.Name, annotation, init), nil
	case "sourceFile":
		stmts, err := decodeNodes(w.Statements)
		if err != nil {
			return nil, err
		}
		return ast.NewSourceFile(w.Pos, w.End, stmts), nil
	default:
		return nil, fmt.Errorf("ast json: unknown node kind %q", w.Kind)
	}
}

func decodeTypeParam(w *wireNode) (*ast.TypeParam, error) {
	constraint, err := decodeNode(w.Constraint)
	if err != nil {
		return nil, err
	}
	def, err := decodeNode(w.Default)
	if err != nil {
		return nil, err
	}
	return ast.NewTypeParam(w.Pos, w.End, w.Name, constraint, def), nil
}

func decodeNodes(ws []wireNode) ([]ast.Node, error) {
	if ws == nil {
		return nil, nil
	}
	out := make([]ast.Node, len(ws))
	for i := range ws {
		n, err := decodeNode(&ws[i])
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func literalKind(wireKind string) ast.Kind {
	switch wireKind {
	case "number":
		return ast.NumberLiteral
	case "bigint":
		return ast.BigIntLiteral
	default:
		return ast.StringLiteral
	}
}
