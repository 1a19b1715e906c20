package querylanguage

import "time"

// TimeP is a predicate on a time.Time property.
type TimeP struct{ pred }

// Field applies the predicate on the given property name.
func (p TimeP) Field(name string) P { return p.fn(name) }

// TimeEQ applies the == operation on the given value.
func TimeEQ(v time.Time) TimeP { return TimeP{fieldOp(OpEQ, v)} }

// TimeNEQ applies the != operation on the given value.
func TimeNEQ(v time.Time) TimeP { return TimeP{fieldOp(OpNEQ, v)} }

// TimeGT applies the > operation on the given value.
func TimeGT(v time.Time) TimeP { return TimeP{fieldOp(OpGT, v)} }

// TimeGTE applies the >= operation on the given value.
func TimeGTE(v time.Time) TimeP { return TimeP{fieldOp(OpGTE, v)} }

// TimeLT applies the < operation on the given value.
func TimeLT(v time.Time) TimeP { return TimeP{fieldOp(OpLT, v)} }

// TimeLTE applies the <= operation on the given value.
func TimeLTE(v time.Time) TimeP { return TimeP{fieldOp(OpLTE, v)} }

// TimeNil applies the == operation on nil.
func TimeNil() TimeP { return TimeP{fieldNil()} }

// TimeNotNil applies the != operation on nil.
func TimeNotNil() TimeP { return TimeP{fieldNotNil()} }

// TimeAnd returns the conjunction of its operands.
func TimeAnd(x, y TimeP, z ...TimeP) TimeP { return TimeP{fieldCompose(OpAnd, x, y, z)} }

// TimeOr returns the disjunction of its operands.
func TimeOr(x, y TimeP, z ...TimeP) TimeP { return TimeP{fieldCompose(OpOr, x, y, z)} }

// TimeNot negates its operand.
func TimeNot(p TimeP) TimeP { return TimeP{fieldNot(p)} }

// IntP is a predicate on an int property.
type IntP struct{ pred }

// Field applies the predicate on the given property name.
func (p IntP) Field(name string) P { return p.fn(name) }

// IntEQ applies the == operation on the given value.
func IntEQ(v int) IntP { return IntP{fieldOp(OpEQ, v)} }

// IntNEQ applies the != operation on the given value.
func IntNEQ(v int) IntP { return IntP{fieldOp(OpNEQ, v)} }

// IntGT applies the > operation on the given value.
func IntGT(v int) IntP { return IntP{fieldOp(OpGT, v)} }

// IntGTE applies the >= operation on the given value.
func IntGTE(v int) IntP { return IntP{fieldOp(OpGTE, v)} }

// IntLT applies the < operation on the given value.
func IntLT(v int) IntP { return IntP{fieldOp(OpLT, v)} }

// IntLTE applies the <= operation on the given value.
func IntLTE(v int) IntP { return IntP{fieldOp(OpLTE, v)} }

// IntNil applies the == operation on nil.
func IntNil() IntP { return IntP{fieldNil()} }

// IntNotNil applies the != operation on nil.
func IntNotNil() IntP { return IntP{fieldNotNil()} }

// IntAnd returns the conjunction of its operands.
func IntAnd(x, y IntP, z ...IntP) IntP { return IntP{fieldCompose(OpAnd, x, y, z)} }

// IntOr returns the disjunction of its operands.
func IntOr(x, y IntP, z ...IntP) IntP { return IntP{fieldCompose(OpOr, x, y, z)} }

// IntNot negates its operand.
func IntNot(p IntP) IntP { return IntP{fieldNot(p)} }

// Int8P is a predicate on an int8 property.
type Int8P struct{ pred }

// Field applies the predicate on the given property name.
func (p Int8P) Field(name string) P { return p.fn(name) }

// Int8EQ applies the == operation on the given value.
func Int8EQ(v int8) Int8P { return Int8P{fieldOp(OpEQ, v)} }

// Int8NEQ applies the != operation on the given value.
func Int8NEQ(v int8) Int8P { return Int8P{fieldOp(OpNEQ, v)} }

// Int8GT applies the > operation on the given value.
func Int8GT(v int8) Int8P { return Int8P{fieldOp(OpGT, v)} }

// Int8GTE applies the >= operation on the given value.
func Int8GTE(v int8) Int8P { return Int8P{fieldOp(OpGTE, v)} }

// Int8LT applies the < operation on the given value.
func Int8LT(v int8) Int8P { return Int8P{fieldOp(OpLT, v)} }

// Int8LTE applies the <= operation on the given value.
func Int8LTE(v int8) Int8P { return Int8P{fieldOp(OpLTE, v)} }

// Int8Nil applies the == operation on nil.
func Int8Nil() Int8P { return Int8P{fieldNil()} }

// Int8NotNil applies the != operation on nil.
func Int8NotNil() Int8P { return Int8P{fieldNotNil()} }

// Int8And returns the conjunction of its operands.
func Int8And(x, y Int8P, z ...Int8P) Int8P { return Int8P{fieldCompose(OpAnd, x, y, z)} }

// Int8Or returns the disjunction of its operands.
func Int8Or(x, y Int8P, z ...Int8P) Int8P { return Int8P{fieldCompose(OpOr, x, y, z)} }

// Int8Not negates its operand.
func Int8Not(p Int8P) Int8P { return Int8P{fieldNot(p)} }

// Int16P is a predicate on an int16 property.
type Int16P struct{ pred }

// Field applies the predicate on the given property name.
func (p Int16P) Field(name string) P { return p.fn(name) }

// Int16EQ applies the == operation on the given value.
func Int16EQ(v int16) Int16P { return Int16P{fieldOp(OpEQ, v)} }

// Int16NEQ applies the != operation on the given value.
func Int16NEQ(v int16) Int16P { return Int16P{fieldOp(OpNEQ, v)} }

// Int16GT applies the > operation on the given value.
func Int16GT(v int16) Int16P { return Int16P{fieldOp(OpGT, v)} }

// Int16GTE applies the >= operation on the given value.
func Int16GTE(v int16) Int16P { return Int16P{fieldOp(OpGTE, v)} }

// Int16LT applies the < operation on the given value.
func Int16LT(v int16) Int16P { return Int16P{fieldOp(OpLT, v)} }

// Int16LTE applies the <= operation on the given value.
func Int16LTE(v int16) Int16P { return Int16P{fieldOp(OpLTE, v)} }

// Int16Nil applies the == operation on nil.
func Int16Nil() Int16P { return Int16P{fieldNil()} }

// Int16NotNil applies the != operation on nil.
func Int16NotNil() Int16P { return Int16P{fieldNotNil()} }

// Int16And returns the conjunction of its operands.
func Int16And(x, y Int16P, z ...Int16P) Int16P { return Int16P{fieldCompose(OpAnd, x, y, z)} }

// Int16Or returns the disjunction of its operands.
func Int16Or(x, y Int16P, z ...Int16P) Int16P { return Int16P{fieldCompose(OpOr, x, y, z)} }

// Int16Not negates its operand.
func Int16Not(p Int16P) Int16P { return Int16P{fieldNot(p)} }

// Int32P is a predicate on an int32 property.
type Int32P struct{ pred }

// Field applies the predicate on the given property name.
func (p Int32P) Field(name string) P { return p.fn(name) }

// Int32EQ applies the == operation on the given value.
func Int32EQ(v int32) Int32P { return Int32P{fieldOp(OpEQ, v)} }

// Int32NEQ applies the != operation on the given value.
func Int32NEQ(v int32) Int32P { return Int32P{fieldOp(OpNEQ, v)} }

// Int32GT applies the > operation on the given value.
func Int32GT(v int32) Int32P { return Int32P{fieldOp(OpGT, v)} }

// Int32GTE applies the >= operation on the given value.
func Int32GTE(v int32) Int32P { return Int32P{fieldOp(OpGTE, v)} }

// Int32LT applies the < operation on the given value.
func Int32LT(v int32) Int32P { return Int32P{fieldOp(OpLT, v)} }

// Int32LTE applies the <= operation on the given value.
func Int32LTE(v int32) Int32P { return Int32P{fieldOp(OpLTE, v)} }

// Int32Nil applies the == operation on nil.
func Int32Nil() Int32P { return Int32P{fieldNil()} }

// Int32NotNil applies the != operation on nil.
func Int32NotNil() Int32P { return Int32P{fieldNotNil()} }

// Int32And returns the conjunction of its operands.
func Int32And(x, y Int32P, z ...Int32P) Int32P { return Int32P{fieldCompose(OpAnd, x, y, z)} }

// Int32Or returns the disjunction of its operands.
func Int32Or(x, y Int32P, z ...Int32P) Int32P { return Int32P{fieldCompose(OpOr, x, y, z)} }

// Int32Not negates its operand.
func Int32Not(p Int32P) Int32P { return Int32P{fieldNot(p)} }

// Int64P is a predicate on an int64 property.
type Int64P struct{ pred }

// Field applies the predicate on the given property name.
func (p Int64P) Field(name string) P { return p.fn(name) }

// Int64EQ applies the == operation on the given value.
func Int64EQ(v int64) Int64P { return Int64P{fieldOp(OpEQ, v)} }

// Int64NEQ applies the != operation on the given value.
func Int64NEQ(v int64) Int64P { return Int64P{fieldOp(OpNEQ, v)} }

// Int64GT applies the > operation on the given value.
func Int64GT(v int64) Int64P { return Int64P{fieldOp(OpGT, v)} }

// Int64GTE applies the >= operation on the given value.
func Int64GTE(v int64) Int64P { return Int64P{fieldOp(OpGTE, v)} }

// Int64LT applies the < operation on the given value.
func Int64LT(v int64) Int64P { return Int64P{fieldOp(OpLT, v)} }

// Int64LTE applies the <= operation on the given value.
func Int64LTE(v int64) Int64P { return Int64P{fieldOp(OpLTE, v)} }

// Int64Nil applies the == operation on nil.
func Int64Nil() Int64P { return Int64P{fieldNil()} }

// Int64NotNil applies the != operation on nil.
func Int64NotNil() Int64P { return Int64P{fieldNotNil()} }

// Int64And returns the conjunction of its operands.
func Int64And(x, y Int64P, z ...Int64P) Int64P { return Int64P{fieldCompose(OpAnd, x, y, z)} }

// Int64Or returns the disjunction of its operands.
func Int64Or(x, y Int64P, z ...Int64P) Int64P { return Int64P{fieldCompose(OpOr, x, y, z)} }

// Int64Not negates its operand.
func Int64Not(p Int64P) Int64P { return Int64P{fieldNot(p)} }

// UintP is a predicate on a uint property.
type UintP struct{ pred }

// Field applies the predicate on the given property name.
func (p UintP) Field(name string) P { return p.fn(name) }

// UintEQ applies the == operation on the given value.
func UintEQ(v uint) UintP { return UintP{fieldOp(OpEQ, v)} }

// UintNEQ applies the != operation on the given value.
func UintNEQ(v uint) UintP { return UintP{fieldOp(OpNEQ, v)} }

// UintGT applies the > operation on the given value.
func UintGT(v uint) UintP { return UintP{fieldOp(OpGT, v)} }

// UintGTE applies the >= operation on the given value.
func UintGTE(v uint) UintP { return UintP{fieldOp(OpGTE, v)} }

// UintLT applies the < operation on the given value.
func UintLT(v uint) UintP { return UintP{fieldOp(OpLT, v)} }

// UintLTE applies the <= operation on the given value.
func UintLTE(v uint) UintP { return UintP{fieldOp(OpLTE, v)} }

// UintNil applies the == operation on nil.
func UintNil() UintP { return UintP{fieldNil()} }

// UintNotNil applies the != operation on nil.
func UintNotNil() UintP { return UintP{fieldNotNil()} }

// UintAnd returns the conjunction of its operands.
func UintAnd(x, y UintP, z ...UintP) UintP { return UintP{fieldCompose(OpAnd, x, y, z)} }

// UintOr returns the disjunction of its operands.
func UintOr(x, y UintP, z ...UintP) UintP { return UintP{fieldCompose(OpOr, x, y, z)} }

// UintNot negates its operand.
func UintNot(p UintP) UintP { return UintP{fieldNot(p)} }

// Uint8P is a predicate on a uint8 property.
type Uint8P struct{ pred }

// Field applies the predicate on the given property name.
func (p Uint8P) Field(name string) P { return p.fn(name) }

// Uint8EQ applies the == operation on the given value.
func Uint8EQ(v uint8) Uint8P { return Uint8P{fieldOp(OpEQ, v)} }

// Uint8NEQ applies the != operation on the given value.
func Uint8NEQ(v uint8) Uint8P { return Uint8P{fieldOp(OpNEQ, v)} }

// Uint8GT applies the > operation on the given value.
func Uint8GT(v uint8) Uint8P { return Uint8P{fieldOp(OpGT, v)} }

// Uint8GTE applies the >= operation on the given value.
func Uint8GTE(v uint8) Uint8P { return Uint8P{fieldOp(OpGTE, v)} }

// Uint8LT applies the < operation on the given value.
func Uint8LT(v uint8) Uint8P { return Uint8P{fieldOp(OpLT, v)} }

// Uint8LTE applies the <= operation on the given value.
func Uint8LTE(v uint8) Uint8P { return Uint8P{fieldOp(OpLTE, v)} }

// Uint8Nil applies the == operation on nil.
func Uint8Nil() Uint8P { return Uint8P{fieldNil()} }

// Uint8NotNil applies the != operation on nil.
func Uint8NotNil() Uint8P { return Uint8P{fieldNotNil()} }

// Uint8And returns the conjunction of its operands.
func Uint8And(x, y Uint8P, z ...Uint8P) Uint8P { return Uint8P{fieldCompose(OpAnd, x, y, z)} }

// Uint8Or returns the disjunction of its operands.
func Uint8Or(x, y Uint8P, z ...Uint8P) Uint8P { return Uint8P{fieldCompose(OpOr, x, y, z)} }

// Uint8Not negates its operand.
func Uint8Not(p Uint8P) Uint8P { return Uint8P{fieldNot(p)} }

// Uint16P is a predicate on a uint16 property.
type Uint16P struct{ pred }

// Field applies the predicate on the given property name.
func (p Uint16P) Field(name string) P { return p.fn(name) }

// Uint16EQ applies the == operation on the given value.
func Uint16EQ(v uint16) Uint16P { return Uint16P{fieldOp(OpEQ, v)} }

// Uint16NEQ applies the != operation on the given value.
func Uint16NEQ(v uint16) Uint16P { return Uint16P{fieldOp(OpNEQ, v)} }

// Uint16GT applies the > operation on the given value.
func Uint16GT(v uint16) Uint16P { return Uint16P{fieldOp(OpGT, v)} }

// Uint16GTE applies the >= operation on the given value.
func Uint16GTE(v uint16) Uint16P { return Uint16P{fieldOp(OpGTE, v)} }

// Uint16LT applies the < operation on the given value.
func Uint16LT(v uint16) Uint16P { return Uint16P{fieldOp(OpLT, v)} }

// Uint16LTE applies the <= operation on the given value.
func Uint16LTE(v uint16) Uint16P { return Uint16P{fieldOp(OpLTE, v)} }

// Uint16Nil applies the == operation on nil.
func Uint16Nil() Uint16P { return Uint16P{fieldNil()} }

// Uint16NotNil applies the != operation on nil.
func Uint16NotNil() Uint16P { return Uint16P{fieldNotNil()} }

// Uint16And returns the conjunction of its operands.
func Uint16And(x, y Uint16P, z ...Uint16P) Uint16P { return Uint16P{fieldCompose(OpAnd, x, y, z)} }

// Uint16Or returns the disjunction of its operands.
func Uint16Or(x, y Uint16P, z ...Uint16P) Uint16P { return Uint16P{fieldCompose(OpOr, x, y, z)} }

// Uint16Not negates its operand.
func Uint16Not(p Uint16P) Uint16P { return Uint16P{fieldNot(p)} }

// Uint32P is a predicate on a uint32 property.
type Uint32P struct{ pred }

// Field applies the predicate on the given property name.
func (p Uint32P) Field(name string) P { return p.fn(name) }

// Uint32EQ applies the == operation on the given value.
func Uint32EQ(v uint32) Uint32P { return Uint32P{fieldOp(OpEQ, v)} }

// Uint32NEQ applies the != operation on the given value.
func Uint32NEQ(v uint32) Uint32P { return Uint32P{fieldOp(OpNEQ, v)} }

// Uint32GT applies the > operation on the given value.
func Uint32GT(v uint32) Uint32P { return Uint32P{fieldOp(OpGT, v)} }

// Uint32GTE applies the >= operation on the given value.
func Uint32GTE(v uint32) Uint32P { return Uint32P{fieldOp(OpGTE, v)} }

// Uint32LT applies the < operation on the given value.
func Uint32LT(v uint32) Uint32P { return Uint32P{fieldOp(OpLT, v)} }

// Uint32LTE applies the <= operation on the given value.
func Uint32LTE(v uint32) Uint32P { return Uint32P{fieldOp(OpLTE, v)} }

// Uint32Nil applies the == operation on nil.
func Uint32Nil() Uint32P { return Uint32P{fieldNil()} }

// Uint32NotNil applies the != operation on nil.
func Uint32NotNil() Uint32P { return Uint32P{fieldNotNil()} }

// Uint32And returns the conjunction of its operands.
func Uint32And(x, y Uint32P, z ...Uint32P) Uint32P { return Uint32P{fieldCompose(OpAnd, x, y, z)} }

// Uint32Or returns the disjunction of its operands.
func Uint32Or(x, y Uint32P, z ...Uint32P) Uint32P { return Uint32P{fieldCompose(OpOr, x, y, z)} }

// Uint32Not negates its operand.
func Uint32Not(p Uint32P) Uint32P { return Uint32P{fieldNot(p)} }

// Uint64P is a predicate on a uint64 property.
type Uint64P struct{ pred }

// Field applies the predicate on the given property name.
func (p Uint64P) Field(name string) P { return p.fn(name) }

// Uint64EQ applies the == operation on the given value.
func Uint64EQ(v uint64) Uint64P { return Uint64P{fieldOp(OpEQ, v)} }

// Uint64NEQ applies the != operation on the given value.
func Uint64NEQ(v uint64) Uint64P { return Uint64P{fieldOp(OpNEQ, v)} }

// Uint64GT applies the > operation on the given value.
func Uint64GT(v uint64) Uint64P { return Uint64P{fieldOp(OpGT, v)} }

// Uint64GTE applies the >= operation on the given value.
func Uint64GTE(v uint64) Uint64P { return Uint64P{fieldOp(OpGTE, v)} }

// Uint64LT applies the < operation on the given value.
func Uint64LT(v uint64) Uint64P { return Uint64P{fieldOp(OpLT, v)} }

// Uint64LTE applies the <= operation on the given value.
func Uint64LTE(v uint64) Uint64P { return Uint64P{fieldOp(OpLTE, v)} }

// Uint64Nil applies the == operation on nil.
func Uint64Nil() Uint64P { return Uint64P{fieldNil()} }

// Uint64NotNil applies the != operation on nil.
func Uint64NotNil() Uint64P { return Uint64P{fieldNotNil()} }

// Uint64And returns the conjunction of its operands.
func Uint64And(x, y Uint64P, z ...Uint64P) Uint64P { return Uint64P{fieldCompose(OpAnd, x, y, z)} }

// Uint64Or returns the disjunction of its operands.
func Uint64Or(x, y Uint64P, z ...Uint64P) Uint64P { return Uint64P{fieldCompose(OpOr, x, y, z)} }

// Uint64Not negates its operand.
func Uint64Not(p Uint64P) Uint64P { return Uint64P{fieldNot(p)} }

// Float32P is a predicate on a float32 property.
type Float32P struct{ pred }

// Field applies the predicate on the given property name.
func (p Float32P) Field(name string) P { return p.fn(name) }

// Float32EQ applies the == operation on the given value.
func Float32EQ(v float32) Float32P { return Float32P{fieldOp(OpEQ, v)} }

// Float32NEQ applies the != operation on the given value.
func Float32NEQ(v float32) Float32P { return Float32P{fieldOp(OpNEQ, v)} }

// Float32GT applies the > operation on the given value.
func Float32GT(v float32) Float32P { return Float32P{fieldOp(OpGT, v)} }

// Float32GTE applies the >= operation on the given value.
func Float32GTE(v float32) Float32P { return Float32P{fieldOp(OpGTE, v)} }

// Float32LT applies the < operation on the given value.
func Float32LT(v float32) Float32P { return Float32P{fieldOp(OpLT, v)} }

// Float32LTE applies the <= operation on the given value.
func Float32LTE(v float32) Float32P { return Float32P{fieldOp(OpLTE, v)} }

// Float32Nil applies the == operation on nil.
func Float32Nil() Float32P { return Float32P{fieldNil()} }

// Float32NotNil applies the != operation on nil.
func Float32NotNil() Float32P { return Float32P{fieldNotNil()} }

// Float32And returns the conjunction of its operands.
func Float32And(x, y Float32P, z ...Float32P) Float32P { return Float32P{fieldCompose(OpAnd, x, y, z)} }

// Float32Or returns the disjunction of its operands.
func Float32Or(x, y Float32P, z ...Float32P) Float32P { return Float32P{fieldCompose(OpOr, x, y, z)} }

// Float32Not negates its operand.
func Float32Not(p Float32P) Float32P { return Float32P{fieldNot(p)} }

// Float64P is a predicate on a float64 property.
type Float64P struct{ pred }

// Field applies the predicate on the given property name.
func (p Float64P) Field(name string) P { return p.fn(name) }

// Float64EQ applies the == operation on the given value.
func Float64EQ(v float64) Float64P { return Float64P{fieldOp(OpEQ, v)} }

// Float64NEQ applies the != operation on the given value.
func Float64NEQ(v float64) Float64P { return Float64P{fieldOp(OpNEQ, v)} }

// Float64GT applies the > operation on the given value.
func Float64GT(v float64) Float64P { return Float64P{fieldOp(OpGT, v)} }

// Float64GTE applies the >= operation on the given value.
func Float64GTE(v float64) Float64P { return Float64P{fieldOp(OpGTE, v)} }

// Float64LT applies the < operation on the given value.
func Float64LT(v float64) Float64P { return Float64P{fieldOp(OpLT, v)} }

// Float64LTE applies the <= operation on the given value.
func Float64LTE(v float64) Float64P { return Float64P{fieldOp(OpLTE, v)} }

// Float64Nil applies the == operation on nil.
func Float64Nil() Float64P { return Float64P{fieldNil()} }

// Float64NotNil applies the != operation on nil.
func Float64NotNil() Float64P { return Float64P{fieldNotNil()} }

// Float64And returns the conjunction of its operands.
func Float64And(x, y Float64P, z ...Float64P) Float64P { return Float64P{fieldCompose(OpAnd, x, y, z)} }

// Float64Or returns the disjunction of its operands.
func Float64Or(x, y Float64P, z ...Float64P) Float64P { return Float64P{fieldCompose(OpOr, x, y, z)} }

// Float64Not negates its operand.
func Float64Not(p Float64P) Float64P { return Float64P{fieldNot(p)} }
