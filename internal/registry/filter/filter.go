// Package filter parses AIP-160 filter expressions into flat conjunctions
// that both storage backends can apply: the memory store matches records in
// Go, the SQLite store translates to a WHERE clause.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldType describes a supported filter field type.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldBool   FieldType = "bool"
)

// Fields defines filterable fields and their types.
type Fields map[string]FieldType

// Op is a comparison operator.
type Op string

const (
	OpEqual        Op = "="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Condition is one field comparison. Conditions parsed from a filter are
// AND-combined.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Parse parses an AIP-160 filter expression into AND-combined conditions.
// An empty filter yields no conditions. OR and nested expressions beyond
// conjunctions are rejected.
func Parse(filterStr string, fields Fields) ([]Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return nil, nil
	}

	decls, err := declarations(fields)
	if err != nil {
		return nil, err
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}

	return flatten(parsed.CheckedExpr.Expr)
}

func declarations(fields Fields) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, kind := range fields {
		switch kind {
		case FieldString:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeString))
		case FieldInt:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeInt))
		case FieldBool:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeBool))
		default:
			return nil, fmt.Errorf("unsupported field type for %s", name)
		}
	}
	return filtering.NewDeclarations(decls...)
}

func flatten(e *expr.Expr) ([]Condition, error) {
	if e == nil {
		return nil, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}

	switch call.CallExpr.Function {
	case "_&&_", "AND":
		if len(call.CallExpr.Args) != 2 {
			return nil, fmt.Errorf("AND requires 2 arguments")
		}
		left, err := flatten(call.CallExpr.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := flatten(call.CallExpr.Args[1])
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case "_==_", "=":
		return comparison(call.CallExpr.Args, OpEqual)
	case "_!=_", "!=":
		return comparison(call.CallExpr.Args, OpNotEqual)
	case "_<_", "<":
		return comparison(call.CallExpr.Args, OpLess)
	case "_<=_", "<=":
		return comparison(call.CallExpr.Args, OpLessEqual)
	case "_>_", ">":
		return comparison(call.CallExpr.Args, OpGreater)
	case "_>=_", ">=":
		return comparison(call.CallExpr.Args, OpGreaterEqual)
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.CallExpr.Function)
	}
}

func comparison(args []*expr.Expr, op Op) ([]Condition, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := fieldName(args[0])
	if err != nil {
		return nil, err
	}
	value, err := constValue(args[1])
	if err != nil {
		return nil, err
	}
	return []Condition{{Field: field, Op: op, Value: value}}, nil
}

func fieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func constValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	constExpr, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}
	switch kind := constExpr.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
