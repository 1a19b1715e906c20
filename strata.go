// Package strata implements the runtime core of an object/relational mapping
// layer: a model registry, an identity map, a change tracker, a relationship
// materializer, a query-plan builder and a unit-of-work committer.
//
// The core never emits dialect-specific syntax. Queries are composed into
// abstract plans (package plan) and mutations into ordered operation
// sequences; both are handed to an execution provider implementing
// dialect.Driver. Reference providers live under dialect/memory and
// dialect/sql.
package strata

import "fmt"

// Value represents a single property value of an entity.
type Value = any

// Op is the operation kind applied to an entity by the committer.
// Op values form a bitmask so callers can match groups of operations.
type Op uint8

// Operation kinds.
const (
	OpInsert Op = 1 << iota
	OpUpdate
	OpDelete
)

// Is reports whether op is contained in the given bitmask.
func (op Op) Is(mask Op) bool { return op&mask != 0 }

// String returns the operation name.
func (op Op) String() string {
	switch op {
	case OpInsert:
		return "Insert"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Op(%d)", op)
	}
}

// State is the lifecycle state of a tracked entity within a unit of work.
type State uint8

// Tracked entity states. Detached is the zero value: an instance unknown
// to any session.
const (
	Detached State = iota
	Unchanged
	Added
	Modified
	Deleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Detached:
		return "Detached"
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}
