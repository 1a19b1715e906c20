package querylanguage

import "database/sql/driver"

// Fielder is the interface of the typed predicate helpers below. A Fielder
// describes a comparison without naming the property; Field binds it.
type Fielder interface {
	// Field applies the predicate on the given property name.
	Field(name string) P
}

// pred is the shared implementation of the typed predicate helpers.
type pred struct {
	fn func(name string) P
}

func fieldOp(op Op, v any) pred {
	return pred{fn: func(name string) P {
		return &BinaryExpr{Op: op, X: F(name), Y: &Value{V: v}}
	}}
}

func fieldNil() pred {
	return pred{fn: func(name string) P { return FieldNil(name) }}
}

func fieldNotNil() pred {
	return pred{fn: func(name string) P { return FieldNotNil(name) }}
}

func fieldCall(fn Func, v any) pred {
	return pred{fn: func(name string) P {
		return &CallExpr{Func: fn, Args: []Expr{F(name), &Value{V: v}}}
	}}
}

func fieldNot(p Fielder) pred {
	return pred{fn: func(name string) P { return Not(p.Field(name)) }}
}

func fieldCompose[T Fielder](op Op, x, y T, z []T) pred {
	return pred{fn: func(name string) P {
		zs := make([]P, len(z))
		for i := range z {
			zs[i] = z[i].Field(name)
		}
		if op == OpAnd {
			return And(x.Field(name), y.Field(name), zs...)
		}
		return Or(x.Field(name), y.Field(name), zs...)
	}}
}

// StringP is a predicate on a string property.
type StringP struct{ pred }

// Field applies the predicate on the given property name.
func (p StringP) Field(name string) P { return p.fn(name) }

// StringEQ applies the == operation on the given value.
func StringEQ(v string) StringP { return StringP{fieldOp(OpEQ, v)} }

// StringNEQ applies the != operation on the given value.
func StringNEQ(v string) StringP { return StringP{fieldOp(OpNEQ, v)} }

// StringGT applies the > operation on the given value.
func StringGT(v string) StringP { return StringP{fieldOp(OpGT, v)} }

// StringGTE applies the >= operation on the given value.
func StringGTE(v string) StringP { return StringP{fieldOp(OpGTE, v)} }

// StringLT applies the < operation on the given value.
func StringLT(v string) StringP { return StringP{fieldOp(OpLT, v)} }

// StringLTE applies the <= operation on the given value.
func StringLTE(v string) StringP { return StringP{fieldOp(OpLTE, v)} }

// StringNil applies the == operation on nil.
func StringNil() StringP { return StringP{fieldNil()} }

// StringNotNil applies the != operation on nil.
func StringNotNil() StringP { return StringP{fieldNotNil()} }

// StringContains applies the contains operation on the given value.
func StringContains(v string) StringP { return StringP{fieldCall(FuncContains, v)} }

// StringContainsFold applies the contains_fold operation on the given value.
func StringContainsFold(v string) StringP { return StringP{fieldCall(FuncContainsFold, v)} }

// StringEqualFold applies the equal_fold operation on the given value.
func StringEqualFold(v string) StringP { return StringP{fieldCall(FuncEqualFold, v)} }

// StringHasPrefix applies the has_prefix operation on the given value.
func StringHasPrefix(v string) StringP { return StringP{fieldCall(FuncHasPrefix, v)} }

// StringHasSuffix applies the has_suffix operation on the given value.
func StringHasSuffix(v string) StringP { return StringP{fieldCall(FuncHasSuffix, v)} }

// StringAnd returns the conjunction of its operands.
func StringAnd(x, y StringP, z ...StringP) StringP { return StringP{fieldCompose(OpAnd, x, y, z)} }

// StringOr returns the disjunction of its operands.
func StringOr(x, y StringP, z ...StringP) StringP { return StringP{fieldCompose(OpOr, x, y, z)} }

// StringNot negates its operand.
func StringNot(p StringP) StringP { return StringP{fieldNot(p)} }

// BoolP is a predicate on a bool property.
type BoolP struct{ pred }

// Field applies the predicate on the given property name.
func (p BoolP) Field(name string) P { return p.fn(name) }

// BoolEQ applies the == operation on the given value.
func BoolEQ(v bool) BoolP { return BoolP{fieldOp(OpEQ, v)} }

// BoolNEQ applies the != operation on the given value.
func BoolNEQ(v bool) BoolP { return BoolP{fieldOp(OpNEQ, v)} }

// BoolNil applies the == operation on nil.
func BoolNil() BoolP { return BoolP{fieldNil()} }

// BoolNotNil applies the != operation on nil.
func BoolNotNil() BoolP { return BoolP{fieldNotNil()} }

// BoolAnd returns the conjunction of its operands.
func BoolAnd(x, y BoolP, z ...BoolP) BoolP { return BoolP{fieldCompose(OpAnd, x, y, z)} }

// BoolOr returns the disjunction of its operands.
func BoolOr(x, y BoolP, z ...BoolP) BoolP { return BoolP{fieldCompose(OpOr, x, y, z)} }

// BoolNot negates its operand.
func BoolNot(p BoolP) BoolP { return BoolP{fieldNot(p)} }

// BytesP is a predicate on a []byte property.
type BytesP struct{ pred }

// Field applies the predicate on the given property name.
func (p BytesP) Field(name string) P { return p.fn(name) }

// BytesEQ applies the == operation on the given value.
func BytesEQ(v []byte) BytesP { return BytesP{fieldOp(OpEQ, v)} }

// BytesNEQ applies the != operation on the given value.
func BytesNEQ(v []byte) BytesP { return BytesP{fieldOp(OpNEQ, v)} }

// BytesNil applies the == operation on nil.
func BytesNil() BytesP { return BytesP{fieldNil()} }

// BytesNotNil applies the != operation on nil.
func BytesNotNil() BytesP { return BytesP{fieldNotNil()} }

// BytesAnd returns the conjunction of its operands.
func BytesAnd(x, y BytesP, z ...BytesP) BytesP { return BytesP{fieldCompose(OpAnd, x, y, z)} }

// BytesOr returns the disjunction of its operands.
func BytesOr(x, y BytesP, z ...BytesP) BytesP { return BytesP{fieldCompose(OpOr, x, y, z)} }

// BytesNot negates its operand.
func BytesNot(p BytesP) BytesP { return BytesP{fieldNot(p)} }

// ValueP is a predicate on a property backed by a driver.Valuer.
type ValueP struct{ pred }

// Field applies the predicate on the given property name.
func (p ValueP) Field(name string) P { return p.fn(name) }

// ValueEQ applies the == operation on the given value.
func ValueEQ(v driver.Valuer) ValueP { return ValueP{fieldOp(OpEQ, v)} }

// ValueNEQ applies the != operation on the given value.
func ValueNEQ(v driver.Valuer) ValueP { return ValueP{fieldOp(OpNEQ, v)} }

// ValueNil applies the == operation on nil.
func ValueNil() ValueP { return ValueP{fieldNil()} }

// ValueNotNil applies the != operation on nil.
func ValueNotNil() ValueP { return ValueP{fieldNotNil()} }

// ValueAnd returns the conjunction of its operands.
func ValueAnd(x, y ValueP, z ...ValueP) ValueP { return ValueP{fieldCompose(OpAnd, x, y, z)} }

// ValueOr returns the disjunction of its operands.
func ValueOr(x, y ValueP, z ...ValueP) ValueP { return ValueP{fieldCompose(OpOr, x, y, z)} }

// ValueNot negates its operand.
func ValueNot(p ValueP) ValueP { return ValueP{fieldNot(p)} }

// OtherP is a predicate on a property of a custom type.
type OtherP struct{ pred }

// Field applies the predicate on the given property name.
func (p OtherP) Field(name string) P { return p.fn(name) }

// OtherEQ applies the == operation on the given value.
func OtherEQ(v driver.Valuer) OtherP { return OtherP{fieldOp(OpEQ, v)} }

// OtherNEQ applies the != operation on the given value.
func OtherNEQ(v driver.Valuer) OtherP { return OtherP{fieldOp(OpNEQ, v)} }

// OtherNil applies the == operation on nil.
func OtherNil() OtherP { return OtherP{fieldNil()} }

// OtherNotNil applies the != operation on nil.
func OtherNotNil() OtherP { return OtherP{fieldNotNil()} }

// OtherAnd returns the conjunction of its operands.
func OtherAnd(x, y OtherP, z ...OtherP) OtherP { return OtherP{fieldCompose(OpAnd, x, y, z)} }

// OtherOr returns the disjunction of its operands.
func OtherOr(x, y OtherP, z ...OtherP) OtherP { return OtherP{fieldCompose(OpOr, x, y, z)} }

// OtherNot negates its operand.
func OtherNot(p OtherP) OtherP { return OtherP{fieldNot(p)} }
