// Package field provides fluent builders for declaring entity properties.
//
// A property declaration carries the semantic type, nullability, key flag
// and default-value policy consumed by the model registry:
//
//	field.Int64("id").Key().ServerDefault()
//	field.String("email").Unique()
//	field.Time("deleted_at").Nillable()
package field

import (
	"time"

	"github.com/google/uuid"
)

// Type is the semantic type of a property value.
type Type uint8

// Semantic types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeTime
	TypeBytes
	TypeUUID
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeEnum
	TypeJSON
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeTime:    "time.Time",
	TypeBytes:   "[]byte",
	TypeUUID:    "uuid.UUID",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeEnum:    "enum",
	TypeJSON:    "json",
}

// String returns the name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known declared type.
func (t Type) Valid() bool { return t > TypeInvalid && t < endTypes }

// Numeric reports if the type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat64
}

// Comparable reports if values of the type have a defined ordering.
func (t Type) Comparable() bool {
	switch t {
	case TypeInt, TypeInt64, TypeFloat64, TypeString, TypeTime, TypeEnum:
		return true
	default:
		return false
	}
}

// Compatible reports whether a foreign-key property of type t may reference
// a key property of type o.
func (t Type) Compatible(o Type) bool {
	if t == o {
		return true
	}
	// Integer widths interoperate for key references.
	return (t == TypeInt || t == TypeInt64) && (o == TypeInt || o == TypeInt64)
}

// DefaultKind is the default-value policy of a property.
type DefaultKind uint8

// Default-value policies.
const (
	// DefaultNone means the property has no default; a missing value on
	// insert is an error for required properties.
	DefaultNone DefaultKind = iota
	// DefaultValue means the declared constant (or generator function)
	// supplies the value when none was set.
	DefaultValue
	// DefaultServer means the execution provider computes the value
	// (e.g. an auto-increment key) and reports it back on insert.
	DefaultServer
)

// A Descriptor for property configuration.
type Descriptor struct {
	Name        string      // property name
	Type        Type        // semantic type
	Key         bool        // part of the entity key
	Nillable    bool        // value may be null
	Unique      bool        // unique across rows
	Immutable   bool        // cannot change after insert
	DefaultKind DefaultKind // default-value policy
	Default     any         // constant default or generator function
	Values      []string    // enum values, for TypeEnum
	Comment     string      // declaration comment
}

// DefaultValue resolves the declared default. Generator functions are
// invoked; constants are returned as-is. The second result reports whether
// a constant-style default exists at all.
func (d *Descriptor) DefaultValue() (any, bool) {
	if d.DefaultKind != DefaultValue {
		return nil, false
	}
	switch fn := d.Default.(type) {
	case func() any:
		return fn(), true
	case func() time.Time:
		return fn(), true
	case func() uuid.UUID:
		return fn(), true
	case func() string:
		return fn(), true
	default:
		return d.Default, true
	}
}

// Builder is the constructor of property descriptors.
type Builder struct {
	desc *Descriptor
}

// String returns a new builder for a string property.
func String(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeString}}
}

// Int returns a new builder for an int property.
func Int(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeInt}}
}

// Int64 returns a new builder for an int64 property.
func Int64(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeInt64}}
}

// Float64 returns a new builder for a float64 property.
func Float64(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeFloat64}}
}

// Bool returns a new builder for a bool property.
func Bool(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeBool}}
}

// Time returns a new builder for a time.Time property.
func Time(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeTime}}
}

// Bytes returns a new builder for a []byte property.
func Bytes(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeBytes}}
}

// UUID returns a new builder for a uuid.UUID property.
func UUID(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeUUID}}
}

// JSON returns a new builder for a schemaless JSON property.
func JSON(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeJSON}}
}

// Enum returns a new builder for an enum property.
func Enum(name string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: TypeEnum}}
}

// Values sets the permitted values of an enum property.
func (b *Builder) Values(vs ...string) *Builder {
	b.desc.Values = vs
	return b
}

// Key marks the property as (part of) the entity key. Declaring Key on
// multiple properties of one entity forms a composite key in declaration
// order.
func (b *Builder) Key() *Builder {
	b.desc.Key = true
	return b
}

// Nillable marks the property as nullable.
func (b *Builder) Nillable() *Builder {
	b.desc.Nillable = true
	return b
}

// Unique marks the property value as unique across rows.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Immutable marks the property as immutable after insert.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// Default declares a constant default value, or a generator function of
// the form func() T for the property type.
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	b.desc.DefaultKind = DefaultValue
	return b
}

// ServerDefault declares the value as computed by the execution provider
// on insert (e.g. an auto-increment key or a database-side timestamp).
func (b *Builder) ServerDefault() *Builder {
	b.desc.DefaultKind = DefaultServer
	return b
}

// Comment sets the declaration comment of the property.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built property descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
