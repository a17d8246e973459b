package evaluator

// Operator semantics. Every strict operator is fail-transparent: a fail on
// either side is the result. `??`, `&&` and `||` are the exceptions, each lazy
// in its right operand.

import (
	"strings"

	"comp/internal/ast"
	"comp/internal/number"
	"comp/internal/scope"
	"comp/internal/value"
)

func (e *Evaluator) evalUnary(u *ast.UnaryExpression, f *scope.Frame) value.Value {
	v := e.Eval(u.Operand, f)
	switch u.Op {
	case "!":
		if value.IsFail(v) {
			return v
		}
		return value.Bool(!value.Truthy(v))
	case "-":
		if value.IsFail(v) {
			return v
		}
		n, ok := v.(*value.Number)
		if !ok {
			return value.NewFail(value.FailType, "cannot negate %s", v.Kind())
		}
		return &value.Number{Value: n.Value.Neg()}
	}
	return value.NewFail(value.FailType, "unknown operator %s", u.Op)
}

func (e *Evaluator) evalBinary(b *ast.BinaryExpression, f *scope.Frame) value.Value {
	switch b.Op {
	case "??":
		left := e.Eval(b.Left, f)
		if !value.IsFail(left) {
			return left
		}
		return e.Eval(b.Right, f)
	case "&&":
		left := e.Eval(b.Left, f)
		if value.IsFail(left) {
			return left
		}
		if !value.Truthy(left) {
			return left
		}
		return e.Eval(b.Right, f)
	case "||":
		left := e.Eval(b.Left, f)
		if value.IsFail(left) {
			return left
		}
		if value.Truthy(left) {
			return left
		}
		return e.Eval(b.Right, f)
	}

	left := e.Eval(b.Left, f)
	if value.IsFail(left) {
		return left
	}
	right := e.Eval(b.Right, f)
	if value.IsFail(right) {
		return right
	}

	switch b.Op {
	case "==":
		return value.Bool(value.Equal(left, right))
	case "!=":
		return value.Bool(!value.Equal(left, right))
	}

	if ln, ok := left.(*value.Number); ok {
		if rn, ok := right.(*value.Number); ok {
			return e.numberOp(b.Op, ln.Value, rn.Value)
		}
	}
	if lt, ok := left.(*value.Text); ok {
		if rt, ok := right.(*value.Text); ok {
			return textOp(b.Op, lt.Value, rt.Value)
		}
	}
	return value.NewFail(value.FailType, "operator %s not defined for %s and %s",
		b.Op, left.Kind(), right.Kind())
}

func (e *Evaluator) numberOp(op string, l, r number.Dec) value.Value {
	switch op {
	case "+":
		return &value.Number{Value: l.Add(r)}
	case "-":
		return &value.Number{Value: l.Sub(r)}
	case "*":
		return &value.Number{Value: l.Mul(r)}
	case "/":
		q, err := l.Div(r, e.DivPrecision())
		if err != nil {
			return value.NewFail(value.FailDivZero, "division by zero")
		}
		return &value.Number{Value: q}
	case "<":
		return value.Bool(l.Cmp(r) < 0)
	case "<=":
		return value.Bool(l.Cmp(r) <= 0)
	case ">":
		return value.Bool(l.Cmp(r) > 0)
	case ">=":
		return value.Bool(l.Cmp(r) >= 0)
	}
	return value.NewFail(value.FailType, "operator %s not defined for numbers", op)
}

func textOp(op, l, r string) value.Value {
	switch op {
	case "+":
		return value.Str(l + r)
	case "<":
		return value.Bool(l < r)
	case "<=":
		return value.Bool(l <= r)
	case ">":
		return value.Bool(l > r)
	case ">=":
		return value.Bool(l >= r)
	}
	return value.NewFail(value.FailType, "operator %s not defined for text", op)
}

// evalTemplate renders interpolated text. Literal parts pass through; every
// other part is evaluated and rendered, with a fail aborting the template.
func (e *Evaluator) evalTemplate(t *ast.TemplateLiteral, f *scope.Frame) value.Value {
	var sb strings.Builder
	for _, part := range t.Parts {
		if lit, ok := part.(*ast.TextLiteral); ok {
			sb.WriteString(lit.Value)
			continue
		}
		v := e.Eval(part, f)
		if value.IsFail(v) {
			return v
		}
		sb.WriteString(render(v))
	}
	return value.Str(sb.String())
}

// render is template formatting: text without quotes, everything else as its
// inspect form.
func render(v value.Value) string {
	if t, ok := v.(*value.Text); ok {
		return t.Value
	}
	if _, ok := v.(*value.Nil); ok {
		return ""
	}
	return v.Inspect()
}
