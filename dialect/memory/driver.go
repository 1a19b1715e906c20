// Package memory provides a complete in-memory execution provider. It
// evaluates plans against heap-resident tables with collation-aware ordering,
// aggregate terminals and combined-mode include loads, and applies operation
// batches atomically with snapshot transactions. It backs the test suite and
// suits embedders that need the full engine without a database.
package memory

import (
	"context"
	"sync"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema/field"
)

type row = map[string]strata.Value

type table struct {
	rows    map[string]row // key hash -> stored row
	autoinc int64
}

func (t *table) clone() *table {
	nt := &table{rows: make(map[string]row, len(t.rows)), autoinc: t.autoinc}
	for h, r := range t.rows {
		nr := make(row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		nt.rows[h] = nr
	}
	return nt
}

type store struct {
	tables map[string]*table
}

func (s *store) clone() *store {
	ns := &store{tables: make(map[string]*table, len(s.tables))}
	for name, t := range s.tables {
		ns.tables[name] = t.clone()
	}
	return ns
}

// Driver is an in-memory dialect.Driver. It is safe for concurrent use;
// writers swap an immutable store snapshot under a lock, so readers never
// observe a half-applied batch.
type Driver struct {
	graph *graph.Graph
	mu    sync.RWMutex
	data  *store
}

// NewDriver returns an empty in-memory provider for the given model.
func NewDriver(g *graph.Graph) *Driver {
	s := &store{tables: make(map[string]*table)}
	for _, et := range g.Entities() {
		s.tables[et.Name] = &table{rows: make(map[string]row)}
	}
	return &Driver{graph: g, data: s}
}

// Dialect returns the provider name.
func (d *Driver) Dialect() string { return dialect.Memory }

// Close releases the stored data.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = &store{tables: make(map[string]*table)}
	return nil
}

func (d *Driver) snapshot() *store {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// Apply executes the batch atomically: operations mutate a snapshot that is
// swapped in only if every operation succeeds.
func (d *Driver) Apply(ctx context.Context, ops []dialect.Operation) ([]dialect.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stage := d.data.clone()
	results, err := applyAll(ctx, d.graph, stage, ops)
	if err != nil {
		return nil, err
	}
	d.data = stage
	return results, nil
}

// Tx starts a snapshot transaction. The transaction sees its own writes;
// Commit publishes them, Rollback discards them.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memTx{drv: d, stage: d.snapshot().clone()}, nil
}

type memTx struct {
	drv   *Driver
	stage *store
	done  bool
}

func (tx *memTx) Apply(ctx context.Context, ops []dialect.Operation) ([]dialect.Result, error) {
	if tx.done {
		return nil, strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	next := tx.stage.clone()
	results, err := applyAll(ctx, tx.drv.graph, next, ops)
	if err != nil {
		return nil, err
	}
	tx.stage = next
	return results, nil
}

func (tx *memTx) Commit() error {
	if tx.done {
		return strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	tx.done = true
	tx.drv.mu.Lock()
	tx.drv.data = tx.stage
	tx.drv.mu.Unlock()
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	tx.done = true
	tx.stage = nil
	return nil
}

func applyAll(ctx context.Context, g *graph.Graph, s *store, ops []dialect.Operation) ([]dialect.Result, error) {
	results := make([]dialect.Result, 0, len(ops))
	for i := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op := ops[i]
		if err := dialect.Resolve(&op, results); err != nil {
			return nil, err
		}
		res, err := applyOne(g, s, op)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func applyOne(g *graph.Graph, s *store, op dialect.Operation) (dialect.Result, error) {
	et, err := g.Entity(op.Entity)
	if err != nil {
		return dialect.Result{}, err
	}
	t := s.tables[et.Name]
	switch op.Op {
	case strata.OpInsert:
		return insert(et, t, op)
	case strata.OpUpdate:
		return update(et, t, op)
	case strata.OpDelete:
		return remove(et, t, op)
	default:
		return dialect.Result{}, strata.NewInvalidOperationError("unknown operation %v", op.Op)
	}
}

func insert(et *graph.EntityType, t *table, op dialect.Operation) (dialect.Result, error) {
	r := make(row, len(et.Properties))
	for k, v := range op.Values {
		r[k] = v
	}
	generated := make(map[string]strata.Value)
	for _, fd := range et.Properties {
		if _, ok := r[fd.Name]; ok {
			continue
		}
		switch {
		case fd.DefaultKind == field.DefaultServer && (fd.Type == field.TypeInt || fd.Type == field.TypeInt64):
			t.autoinc++
			v := strata.Value(t.autoinc)
			if fd.Type == field.TypeInt {
				v = int(t.autoinc)
			}
			r[fd.Name] = v
			generated[fd.Name] = v
		case fd.Nillable:
			r[fd.Name] = nil
		default:
			return dialect.Result{}, strata.NewConstraintError(
				"null value in property "+et.Name+"."+fd.Name, nil)
		}
	}
	hash, err := et.KeyOf(r).Hash()
	if err != nil {
		return dialect.Result{}, err
	}
	if _, ok := t.rows[hash]; ok {
		return dialect.Result{}, strata.NewConstraintError(
			"duplicate key for "+et.Name+" "+et.KeyOf(r).String(), nil)
	}
	if err := checkUnique(et, t, r, ""); err != nil {
		return dialect.Result{}, err
	}
	// A client-assigned value on a generated key claims the id space up to
	// it, as sqlite AUTOINCREMENT does, so later generated keys cannot
	// collide with it.
	for _, fd := range et.Keys {
		if fd.DefaultKind != field.DefaultServer {
			continue
		}
		if _, ok := generated[fd.Name]; ok {
			continue
		}
		switch v := r[fd.Name].(type) {
		case int:
			if int64(v) > t.autoinc {
				t.autoinc = int64(v)
			}
		case int64:
			if v > t.autoinc {
				t.autoinc = v
			}
		}
	}
	t.rows[hash] = r
	return dialect.Result{Generated: generated}, nil
}

func update(et *graph.EntityType, t *table, op dialect.Operation) (dialect.Result, error) {
	hash, err := graph.Key(op.Key).Hash()
	if err != nil {
		return dialect.Result{}, err
	}
	r, ok := t.rows[hash]
	if !ok {
		return dialect.Result{}, strata.NewNotFoundErrorWithKey(et.Name, graph.Key(op.Key).String())
	}
	next := make(row, len(r))
	for k, v := range r {
		next[k] = v
	}
	for k, v := range op.Values {
		next[k] = v
	}
	if err := checkUnique(et, t, next, hash); err != nil {
		return dialect.Result{}, err
	}
	t.rows[hash] = next
	return dialect.Result{}, nil
}

func remove(et *graph.EntityType, t *table, op dialect.Operation) (dialect.Result, error) {
	hash, err := graph.Key(op.Key).Hash()
	if err != nil {
		return dialect.Result{}, err
	}
	if _, ok := t.rows[hash]; !ok {
		return dialect.Result{}, strata.NewNotFoundErrorWithKey(et.Name, graph.Key(op.Key).String())
	}
	delete(t.rows, hash)
	return dialect.Result{}, nil
}

// checkUnique scans for another row carrying the same value of a unique
// property. Linear scan; this provider favors simplicity over indexes.
func checkUnique(et *graph.EntityType, t *table, candidate row, selfHash string) error {
	for _, fd := range et.Properties {
		if !fd.Unique {
			continue
		}
		v := candidate[fd.Name]
		if v == nil {
			continue
		}
		for h, other := range t.rows {
			if h == selfHash {
				continue
			}
			if equal(other[fd.Name], v) {
				return strata.NewConstraintError(
					"unique value in property "+et.Name+"."+fd.Name, nil)
			}
		}
	}
	return nil
}
