// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"fmt"
)

// valueKind distinguishes the dynamic types guard expressions evaluate to.
type valueKind int

const (
	valBool valueKind = iota
	valNumber
	valString
)

type value struct {
	kind valueKind
	b    bool
	n    float64
	s    string
}

// EvalError reports a type or evaluation error encountered while running a
// guard expression against a live probe.
type EvalError struct {
	Reason string
}

func (e EvalError) Error() string { return "guard: " + e.Reason }

// Probe resolves the built-in catalog-probing functions a guard expression
// may call (table_exists, column_exists, ...). Implementations query the
// live connection scoped to the configured schema.
type Probe interface {
	Call(ctx context.Context, name string, args []string) (value, error)
}

// Eval evaluates a parsed guard expression to a boolean verdict.
func Eval(ctx context.Context, e Expr, p Probe) (bool, error) {
	v, err := evalExpr(ctx, e, p)
	if err != nil {
		return false, err
	}
	if v.kind != valBool {
		return false, EvalError{Reason: "expression does not evaluate to a boolean"}
	}
	return v.b, nil
}

func evalExpr(ctx context.Context, e Expr, p Probe) (value, error) {
	switch n := e.(type) {
	case BoolLit:
		return value{kind: valBool, b: n.Value}, nil
	case NumberLit:
		return value{kind: valNumber, n: n.Value}, nil
	case StringLit:
		return value{kind: valString, s: n.Value}, nil

	case NotExpr:
		v, err := evalExpr(ctx, n.Operand, p)
		if err != nil {
			return value{}, err
		}
		if v.kind != valBool {
			return value{}, EvalError{Reason: "NOT requires a boolean operand"}
		}
		return value{kind: valBool, b: !v.b}, nil

	case BinaryExpr:
		return evalBinary(ctx, n, p)

	case CallExpr:
		return evalCall(ctx, n, p)

	default:
		return value{}, EvalError{Reason: fmt.Sprintf("unhandled expression node %T", e)}
	}
}

func evalBinary(ctx context.Context, n BinaryExpr, p Probe) (value, error) {
	switch n.Op {
	case "AND":
		left, err := evalExpr(ctx, n.Left, p)
		if err != nil {
			return value{}, err
		}
		if left.kind != valBool {
			return value{}, EvalError{Reason: "AND requires boolean operands"}
		}
		if !left.b {
			return value{kind: valBool, b: false}, nil
		}
		right, err := evalExpr(ctx, n.Right, p)
		if err != nil {
			return value{}, err
		}
		if right.kind != valBool {
			return value{}, EvalError{Reason: "AND requires boolean operands"}
		}
		return value{kind: valBool, b: right.b}, nil

	case "OR":
		left, err := evalExpr(ctx, n.Left, p)
		if err != nil {
			return value{}, err
		}
		if left.kind != valBool {
			return value{}, EvalError{Reason: "OR requires boolean operands"}
		}
		if left.b {
			return value{kind: valBool, b: true}, nil
		}
		right, err := evalExpr(ctx, n.Right, p)
		if err != nil {
			return value{}, err
		}
		if right.kind != valBool {
			return value{}, EvalError{Reason: "OR requires boolean operands"}
		}
		return value{kind: valBool, b: right.b}, nil

	case "<", ">", "<=", ">=":
		left, err := evalExpr(ctx, n.Left, p)
		if err != nil {
			return value{}, err
		}
		right, err := evalExpr(ctx, n.Right, p)
		if err != nil {
			return value{}, err
		}
		if left.kind != valNumber || right.kind != valNumber {
			return value{}, EvalError{Reason: "comparison operators require numeric operands"}
		}
		var b bool
		switch n.Op {
		case "<":
			b = left.n < right.n
		case ">":
			b = left.n > right.n
		case "<=":
			b = left.n <= right.n
		case ">=":
			b = left.n >= right.n
		}
		return value{kind: valBool, b: b}, nil

	default:
		return value{}, EvalError{Reason: "unknown operator " + n.Op}
	}
}

func evalCall(ctx context.Context, n CallExpr, p Probe) (value, error) {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		lit, ok := a.(StringLit)
		if !ok {
			return value{}, EvalError{Reason: "function arguments must be string literals"}
		}
		args[i] = lit.Value
	}
	if p == nil {
		return value{}, EvalError{Reason: "no probe configured to resolve " + n.Name + "(...)"}
	}
	return p.Call(ctx, n.Name, args)
}
