// Package querylanguage provides an abstract, storage-agnostic representation
// of boolean predicate expressions. Predicates are composed programmatically
// (there is no textual syntax) and consumed by the plan builder, by global
// query filters, and by execution providers that translate or evaluate them.
package querylanguage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op represents a predicate operator.
type Op int

// Builtin operators.
const (
	OpAnd Op = iota
	OpOr
	OpNot
	OpEQ
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpIn
	OpNotIn
)

var ops = [...]string{
	OpAnd:   "&&",
	OpOr:    "||",
	OpNot:   "!",
	OpEQ:    "==",
	OpNEQ:   "!=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpIn:    "in",
	OpNotIn: "not in",
}

// String returns the textual representation of an operator.
func (o Op) String() string {
	if o >= 0 && int(o) < len(ops) {
		return ops[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Func represents a builtin function predicate.
type Func string

// Builtin functions.
const (
	FuncEqualFold    Func = "equal_fold"    // equals case-insensitive
	FuncContains     Func = "contains"      // containing
	FuncContainsFold Func = "contains_fold" // containing case-insensitive
	FuncHasPrefix    Func = "has_prefix"    // startingWith
	FuncHasSuffix    Func = "has_suffix"    // endingWith
	FuncHasEdge      Func = "has_edge"      // HasEdge specific predicate
)

type (
	// Expr represents a node in an expression tree.
	Expr interface {
		fmt.Stringer
		expr()
	}

	// P represents a predicate: a boolean-valued expression.
	P interface {
		Expr
		// Negate returns the negation of the predicate.
		Negate() P
	}
)

type (
	// Field is an expression that refers to a property by its name.
	Field struct {
		Name string
	}

	// Edge is an expression that refers to a navigation by its name.
	Edge struct {
		Name string
	}

	// Value represents an arbitrary literal value.
	Value struct {
		V any
	}

	// UnaryExpr represents a unary expression (negation).
	UnaryExpr struct {
		Op Op
		X  Expr
	}

	// BinaryExpr represents a binary expression.
	BinaryExpr struct {
		Op   Op
		X, Y Expr
	}

	// NaryExpr represents a n-ary expression (conjunction/disjunction of
	// more than two operands).
	NaryExpr struct {
		Op Op
		Xs []Expr
	}

	// CallExpr represents a function call with its arguments.
	CallExpr struct {
		Func Func
		Args []Expr
	}
)

func (*Field) expr()      {}
func (*Edge) expr()       {}
func (*Value) expr()      {}
func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*NaryExpr) expr()   {}
func (*CallExpr) expr()   {}

// F returns a field expression for the given property name. It allows
// comparing two properties of the same entity, as in EQ(F("a"), F("b")).
func F(name string) *Field {
	return &Field{Name: name}
}

// String returns the field name.
func (f *Field) String() string { return f.Name }

// String returns the edge name.
func (e *Edge) String() string { return e.Name }

// String returns the literal in its canonical encoding. Byte slices encode
// to base64 and times to RFC 3339, matching the registry's value semantics.
func (v *Value) String() string {
	if v.V == nil {
		return "nil"
	}
	buf, err := json.Marshal(v.V)
	if err != nil {
		return fmt.Sprint(v.V)
	}
	return string(buf)
}

// String returns the negated expression wrapped in parentheses.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

// Negate returns the negation of the expression.
func (e *UnaryExpr) Negate() P {
	return &UnaryExpr{Op: OpNot, X: e}
}

// String joins the two operands with the operator.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// Negate returns the negation of the expression.
func (e *BinaryExpr) Negate() P {
	return &UnaryExpr{Op: OpNot, X: e}
}

// String joins all operands with the operator, wrapped in parentheses.
func (e *NaryExpr) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, x := range e.Xs {
		if i > 0 {
			sb.WriteString(fmt.Sprintf(" %s ", e.Op))
		}
		sb.WriteString(x.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Negate returns the negation of the expression.
func (e *NaryExpr) Negate() P {
	return &UnaryExpr{Op: OpNot, X: e}
}

// String formats the call with its arguments.
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
}

// Negate returns the negation of the expression.
func (e *CallExpr) Negate() P {
	return &UnaryExpr{Op: OpNot, X: e}
}

// And returns a predicate that is true if all its operands are true.
func And(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpAnd, X: x, Y: y}
	}
	xs := make([]Expr, 0, len(z)+2)
	xs = append(xs, x, y)
	for _, p := range z {
		xs = append(xs, p)
	}
	return &NaryExpr{Op: OpAnd, Xs: xs}
}

// Or returns a predicate that is true if at least one of its operands is true.
func Or(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpOr, X: x, Y: y}
	}
	xs := make([]Expr, 0, len(z)+2)
	xs = append(xs, x, y)
	for _, p := range z {
		xs = append(xs, p)
	}
	return &NaryExpr{Op: OpOr, Xs: xs}
}

// Not returns the negation of the given predicate.
func Not(x P) P {
	return &UnaryExpr{Op: OpNot, X: x}
}

// EQ returns an expression-level equality predicate (x == y).
func EQ(x, y Expr) P { return &BinaryExpr{Op: OpEQ, X: x, Y: y} }

// NEQ returns an expression-level inequality predicate (x != y).
func NEQ(x, y Expr) P { return &BinaryExpr{Op: OpNEQ, X: x, Y: y} }

// GT returns an expression-level predicate (x > y).
func GT(x, y Expr) P { return &BinaryExpr{Op: OpGT, X: x, Y: y} }

// GTE returns an expression-level predicate (x >= y).
func GTE(x, y Expr) P { return &BinaryExpr{Op: OpGTE, X: x, Y: y} }

// LT returns an expression-level predicate (x < y).
func LT(x, y Expr) P { return &BinaryExpr{Op: OpLT, X: x, Y: y} }

// LTE returns an expression-level predicate (x <= y).
func LTE(x, y Expr) P { return &BinaryExpr{Op: OpLTE, X: x, Y: y} }

// FieldEQ returns a predicate for checking that a property equals the value.
func FieldEQ(name string, v any) P {
	return &BinaryExpr{Op: OpEQ, X: F(name), Y: &Value{V: v}}
}

// FieldNEQ returns a predicate for checking that a property does not equal the value.
func FieldNEQ(name string, v any) P {
	return &BinaryExpr{Op: OpNEQ, X: F(name), Y: &Value{V: v}}
}

// FieldGT returns a predicate for checking that a property is greater than the value.
func FieldGT(name string, v any) P {
	return &BinaryExpr{Op: OpGT, X: F(name), Y: &Value{V: v}}
}

// FieldGTE returns a predicate for checking that a property is greater than or equal to the value.
func FieldGTE(name string, v any) P {
	return &BinaryExpr{Op: OpGTE, X: F(name), Y: &Value{V: v}}
}

// FieldLT returns a predicate for checking that a property is less than the value.
func FieldLT(name string, v any) P {
	return &BinaryExpr{Op: OpLT, X: F(name), Y: &Value{V: v}}
}

// FieldLTE returns a predicate for checking that a property is less than or equal to the value.
func FieldLTE(name string, v any) P {
	return &BinaryExpr{Op: OpLTE, X: F(name), Y: &Value{V: v}}
}

// FieldIn returns a predicate for checking that a property value is in the given list.
func FieldIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpIn, X: F(name), Y: &Value{V: vs}}
}

// FieldNotIn returns a predicate for checking that a property value is not in the given list.
func FieldNotIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpNotIn, X: F(name), Y: &Value{V: vs}}
}

// FieldNil returns a predicate for checking that a property value is nil (NULL).
func FieldNil(name string) P {
	return &BinaryExpr{Op: OpEQ, X: F(name), Y: &Value{}}
}

// FieldNotNil returns a predicate for checking that a property value is not nil (NULL).
func FieldNotNil(name string) P {
	return &BinaryExpr{Op: OpNEQ, X: F(name), Y: &Value{}}
}

// FieldContains returns a predicate for checking that a string property contains the substring.
func FieldContains(name, substr string) P {
	return &CallExpr{Func: FuncContains, Args: []Expr{F(name), &Value{V: substr}}}
}

// FieldContainsFold returns a predicate for checking that a string property
// contains the substring under case folding.
func FieldContainsFold(name, substr string) P {
	return &CallExpr{Func: FuncContainsFold, Args: []Expr{F(name), &Value{V: substr}}}
}

// FieldEqualFold returns a predicate for checking that a string property
// equals the value under case folding.
func FieldEqualFold(name, v string) P {
	return &CallExpr{Func: FuncEqualFold, Args: []Expr{F(name), &Value{V: v}}}
}

// FieldHasPrefix returns a predicate for checking that a string property has the given prefix.
func FieldHasPrefix(name, prefix string) P {
	return &CallExpr{Func: FuncHasPrefix, Args: []Expr{F(name), &Value{V: prefix}}}
}

// FieldHasSuffix returns a predicate for checking that a string property has the given suffix.
func FieldHasSuffix(name, suffix string) P {
	return &CallExpr{Func: FuncHasSuffix, Args: []Expr{F(name), &Value{V: suffix}}}
}

// HasEdge returns a predicate for checking that an entity has at least one
// related entity over the given navigation.
func HasEdge(name string) P {
	return &CallExpr{Func: FuncHasEdge, Args: []Expr{&Edge{Name: name}}}
}

// HasEdgeWith returns a predicate for checking that an entity has a related
// entity over the given navigation that satisfies all given predicates.
func HasEdgeWith(name string, ps ...P) P {
	args := make([]Expr, 0, len(ps)+1)
	args = append(args, &Edge{Name: name})
	for _, p := range ps {
		args = append(args, p)
	}
	return &CallExpr{Func: FuncHasEdge, Args: args}
}
