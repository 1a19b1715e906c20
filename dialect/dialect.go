// Package dialect defines the execution provider contract: the only boundary
// between the tracking core and a concrete storage backend.
//
// A provider consumes abstract query plans and ordered operation batches; it
// owns dialect translation, transport and transactions. The core never emits
// backend-specific syntax itself. Two providers ship with this module:
// dialect/memory (a complete in-memory engine) and dialect/sql (database/sql
// backends).
package dialect

import (
	"context"

	"github.com/syssam/strata"
	"github.com/syssam/strata/plan"
)

// Provider names.
const (
	Memory   = "memory"
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Executor is the plan/operation surface shared by Driver and Tx.
type Executor interface {
	// Query executes a plan and returns its result rows. For plans with
	// aggregate terminals the rows carry the scalar result shape. The
	// returned Rows are finite and not restartable once consumed.
	Query(ctx context.Context, p *plan.Plan) (Rows, error)

	// Apply executes an ordered operation batch and returns one Result per
	// operation, in order. Values in later operations may reference keys
	// generated by earlier ones through KeyRef placeholders. When called on
	// a Driver (outside an explicit Tx), the batch must still apply
	// atomically.
	Apply(ctx context.Context, ops []Operation) ([]Result, error)
}

// Driver is the connection-level provider interface.
type Driver interface {
	Executor

	// Tx starts a transaction. A unit-of-work commit uses exactly one.
	Tx(ctx context.Context) (Tx, error)

	// Dialect returns the provider name.
	Dialect() string

	// Close releases the underlying resources.
	Close() error
}

// Tx is a transaction. Exactly one of Commit or Rollback must be called.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Rows is the result cursor of a plan execution. The shape follows
// database/sql: Next advances within a result set, Scan reads the current
// row positionally per Columns. Combined-mode include plans return one
// result set per include level, advanced with NextResultSet.
type Rows interface {
	// Columns returns the property names of the current result set.
	Columns() ([]string, error)

	// Next advances to the next row of the current result set.
	Next() bool

	// NextResultSet advances to the next result set, if any.
	NextResultSet() bool

	// Scan copies the current row into dest, which must have one element
	// per column.
	Scan(dest []strata.Value) error

	// Err returns the error, if any, that ended the iteration.
	Err() error

	// Close closes the cursor.
	Close() error
}

// Operation is one write in an Apply batch.
type Operation struct {
	Op     strata.Op
	Entity string                  // entity type name
	Key    []strata.Value          // key tuple, for update and delete
	Values map[string]strata.Value // inserted values, or changed values for update
}

// Result reports the outcome of one operation.
type Result struct {
	// Generated holds provider-computed property values of an insert, such
	// as auto-increment keys and server-side defaults.
	Generated map[string]strata.Value
}

// KeyRef is a placeholder operation value referencing a property generated by
// an earlier operation in the same batch. Providers substitute the generated
// value before executing the dependent operation; this lets a dependent row
// reference its principal's server-generated key inside one atomic batch.
type KeyRef struct {
	Op       int    // index of the generating operation in the batch
	Property string // generated property name on that operation's entity
}

// Resolve substitutes KeyRef placeholders in op.Values and op.Key using the
// results of earlier operations. Providers call it before executing each
// operation of a batch.
func Resolve(op *Operation, results []Result) error {
	for name, v := range op.Values {
		ref, ok := v.(KeyRef)
		if !ok {
			continue
		}
		resolved, err := resolveRef(ref, results)
		if err != nil {
			return err
		}
		op.Values[name] = resolved
	}
	for i, v := range op.Key {
		ref, ok := v.(KeyRef)
		if !ok {
			continue
		}
		resolved, err := resolveRef(ref, results)
		if err != nil {
			return err
		}
		op.Key[i] = resolved
	}
	return nil
}

func resolveRef(ref KeyRef, results []Result) (strata.Value, error) {
	if ref.Op < 0 || ref.Op >= len(results) {
		return nil, strata.NewInvalidOperationError("key reference to out-of-order operation %d", ref.Op)
	}
	v, ok := results[ref.Op].Generated[ref.Property]
	if !ok {
		return nil, strata.NewInvalidOperationError("operation %d generated no value for %q", ref.Op, ref.Property)
	}
	return v, nil
}
