// Package sql provides an execution provider backed by database/sql. It
// translates plans into dialect-specific SELECT statements, materializes
// include loads as one result set per navigation, and applies operation
// batches inside a single database transaction. SQLite, MySQL and Postgres
// are supported.
package sql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

type row = map[string]strata.Value

// ExecQuerier wraps the standard Exec and Query methods shared by *sql.DB,
// *sql.Conn and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Driver is a dialect.Driver for SQL databases.
type Driver struct {
	db    *sql.DB
	graph *graph.Graph
	name  string
}

// Open opens a database/sql connection for the given model and wraps it
// with a Driver.
func Open(g *graph.Graph, dialectName, source string) (*Driver, error) {
	db, err := sql.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(g, dialectName, db), nil
}

// OpenDB wraps an existing database handle with a Driver.
func OpenDB(g *graph.Graph, dialectName string, db *sql.DB) *Driver {
	return &Driver{db: db, graph: g, name: dialectName}
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect returns the normalized provider name. Registered driver names such
// as "sqlite3" map to their base dialect.
func (d *Driver) Dialect() string {
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.name, name) {
			return name
		}
	}
	return d.name
}

// Close closes the underlying connection pool.
func (d *Driver) Close() error { return d.db.Close() }

// Query executes the plan and materializes its result sets.
func (d *Driver) Query(ctx context.Context, p *plan.Plan) (dialect.Rows, error) {
	return queryConn(ctx, d.db, d.graph, d.Dialect(), p)
}

// Apply executes the batch inside its own transaction so the operations
// apply atomically even without an explicit Tx.
func (d *Driver) Apply(ctx context.Context, ops []dialect.Operation) ([]dialect.Result, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	results, err := applyAll(ctx, tx, d.graph, d.Dialect(), ops)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

// Tx starts a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, graph: d.graph, name: d.Dialect()}, nil
}

// Tx is a dialect.Tx over *sql.Tx.
type Tx struct {
	tx    *sql.Tx
	graph *graph.Graph
	name  string
	done  bool
}

func (t *Tx) Query(ctx context.Context, p *plan.Plan) (dialect.Rows, error) {
	if t.done {
		return nil, strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	return queryConn(ctx, t.tx, t.graph, t.name, p)
}

func (t *Tx) Apply(ctx context.Context, ops []dialect.Operation) ([]dialect.Result, error) {
	if t.done {
		return nil, strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	return applyAll(ctx, t.tx, t.graph, t.name, ops)
}

func (t *Tx) Commit() error {
	if t.done {
		return strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	t.done = true
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	if t.done {
		return strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	t.done = true
	return t.tx.Rollback()
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

// queryConn runs the plan eagerly: the root statement first, then one
// derived statement per include navigation, and returns the materialized
// result sets as a static cursor.
func queryConn(ctx context.Context, conn ExecQuerier, g *graph.Graph, dialectName string, p *plan.Plan) (dialect.Rows, error) {
	s, err := selectPlan(dialectName, p)
	if err != nil {
		return nil, err
	}
	if len(p.Aggregates) > 0 {
		set, err := fetchAggregates(ctx, conn, p, s)
		if err != nil {
			return nil, err
		}
		return dialect.NewStaticRows([]dialect.ResultSet{set}), nil
	}
	set, rows, err := fetchSet(ctx, conn, p.Entity, p.Projection, s)
	if err != nil {
		return nil, err
	}
	sets := []dialect.ResultSet{set}
	if err := appendIncludeSets(ctx, conn, g, dialectName, &sets, p.Includes, rows); err != nil {
		return nil, err
	}
	return dialect.NewStaticRows(sets), nil
}

// fetchSet executes the statement and scans every record, normalized to the
// engine's canonical value types. The returned row maps back the include
// derivation.
func fetchSet(ctx context.Context, conn ExecQuerier, et *graph.EntityType, projection []string, s *stmt) (dialect.ResultSet, []row, error) {
	columns := projection
	if len(columns) == 0 {
		columns = propertyNames(et)
	}
	fds := make([]*field.Descriptor, len(columns))
	for i, name := range columns {
		fds[i] = et.Property(name)
	}
	rs, err := conn.QueryContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.ResultSet{}, nil, err
	}
	defer rs.Close()
	set := dialect.ResultSet{Columns: columns}
	var rows []row
	for rs.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return dialect.ResultSet{}, nil, err
		}
		rec := make([]strata.Value, len(columns))
		r := make(row, len(columns))
		for i, fd := range fds {
			v, err := normalize(fd, raw[i])
			if err != nil {
				return dialect.ResultSet{}, nil, err
			}
			rec[i] = v
			r[columns[i]] = v
		}
		set.Records = append(set.Records, rec)
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return dialect.ResultSet{}, nil, err
	}
	return set, rows, nil
}

func fetchAggregates(ctx context.Context, conn ExecQuerier, p *plan.Plan, s *stmt) (dialect.ResultSet, error) {
	et := p.Entity
	columns := make([]string, 0, len(p.GroupBy)+len(p.Aggregates))
	columns = append(columns, p.GroupBy...)
	for _, agg := range p.Aggregates {
		columns = append(columns, agg.Column())
	}
	rs, err := conn.QueryContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.ResultSet{}, err
	}
	defer rs.Close()
	set := dialect.ResultSet{Columns: columns}
	for rs.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return dialect.ResultSet{}, err
		}
		rec := make([]strata.Value, len(columns))
		for i, name := range p.GroupBy {
			v, err := normalize(et.Property(name), raw[i])
			if err != nil {
				return dialect.ResultSet{}, err
			}
			rec[i] = v
		}
		for i, agg := range p.Aggregates {
			v, err := normalizeAgg(et, agg, raw[len(p.GroupBy)+i])
			if err != nil {
				return dialect.ResultSet{}, err
			}
			rec[len(p.GroupBy)+i] = v
		}
		set.Records = append(set.Records, rec)
	}
	if err := rs.Err(); err != nil {
		return dialect.ResultSet{}, err
	}
	return set, nil
}

// appendIncludeSets emits one result set per include node in depth-first
// pre-order, each loaded with its own derived statement. Many-to-many nodes
// emit the join rows first, then the targets.
func appendIncludeSets(ctx context.Context, conn ExecQuerier, g *graph.Graph, dialectName string, sets *[]dialect.ResultSet, nodes []*plan.Include, parents []row) error {
	for _, node := range nodes {
		rel := node.Rel
		var related []row
		if rel.Kind == edge.M2M {
			ownerKeys, err := tuplesOf(rel.Owner.Keys, parents)
			if err != nil {
				return err
			}
			joinSet, joins, err := fetchMatch(ctx, conn, g, dialectName, rel.Through, columnNames(rel.JoinSource.Columns), ownerKeys)
			if err != nil {
				return err
			}
			*sets = append(*sets, joinSet)
			targetKeys, err := tuplesOf(rel.JoinTarget.Columns, joins)
			if err != nil {
				return err
			}
			targetSet, targets, err := fetchMatch(ctx, conn, g, dialectName, rel.Target, columnNames(rel.Target.Keys), targetKeys)
			if err != nil {
				return err
			}
			*sets = append(*sets, targetSet)
			related = targets
		} else {
			var (
				src    []*field.Descriptor
				target *graph.EntityType
			)
			if rel.Inverse {
				src, target = rel.Columns, rel.Principal
			} else {
				src, target = rel.Owner.Keys, rel.Dependent
			}
			tuples, err := tuplesOf(src, parents)
			if err != nil {
				return err
			}
			if len(tuples) == 0 {
				*sets = append(*sets, emptySet(target))
				related = nil
			} else {
				cp, err := plan.Related(g, rel, tuples)
				if err != nil {
					return err
				}
				set, rows, err := fetchPlan(ctx, conn, dialectName, cp)
				if err != nil {
					return err
				}
				*sets = append(*sets, set)
				related = rows
			}
		}
		if err := appendIncludeSets(ctx, conn, g, dialectName, sets, node.Children, related); err != nil {
			return err
		}
	}
	return nil
}

func fetchPlan(ctx context.Context, conn ExecQuerier, dialectName string, p *plan.Plan) (dialect.ResultSet, []row, error) {
	s, err := selectPlan(dialectName, p)
	if err != nil {
		return dialect.ResultSet{}, nil, err
	}
	return fetchSet(ctx, conn, p.Entity, nil, s)
}

// fetchMatch loads the rows of et whose properties match one of the given
// tuples. Without tuples there is nothing to match; the result set is still
// emitted, empty, to keep the per-navigation set contract.
func fetchMatch(ctx context.Context, conn ExecQuerier, g *graph.Graph, dialectName string, et *graph.EntityType, names []string, tuples [][]strata.Value) (dialect.ResultSet, []row, error) {
	if len(tuples) == 0 {
		return emptySet(et), nil, nil
	}
	p, err := plan.Query(et.Name).Where(plan.In(names, tuples)).IgnoreFilters().Build(g)
	if err != nil {
		return dialect.ResultSet{}, nil, err
	}
	return fetchPlan(ctx, conn, dialectName, p)
}

func emptySet(et *graph.EntityType) dialect.ResultSet {
	return dialect.ResultSet{Columns: propertyNames(et)}
}

func propertyNames(et *graph.EntityType) []string {
	names := make([]string, len(et.Properties))
	for i, fd := range et.Properties {
		names[i] = fd.Name
	}
	return names
}

func columnNames(fds []*field.Descriptor) []string {
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}
	return names
}

// tuplesOf collects the distinct value tuples of the given properties.
// Tuples with a nil component join nothing and are skipped.
func tuplesOf(fds []*field.Descriptor, rows []row) ([][]strata.Value, error) {
	seen := make(map[string]struct{}, len(rows))
	var out [][]strata.Value
	for _, r := range rows {
		tup := make([]strata.Value, len(fds))
		skip := false
		for i, fd := range fds {
			v := r[fd.Name]
			if v == nil {
				skip = true
				break
			}
			tup[i] = v
		}
		if skip {
			continue
		}
		h, err := graph.Key(tup).Hash()
		if err != nil {
			return nil, err
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, tup)
	}
	return out, nil
}

func applyAll(ctx context.Context, conn ExecQuerier, g *graph.Graph, dialectName string, ops []dialect.Operation) ([]dialect.Result, error) {
	results := make([]dialect.Result, 0, len(ops))
	for i := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		op := ops[i]
		if err := dialect.Resolve(&op, results); err != nil {
			return nil, err
		}
		et, err := g.Entity(op.Entity)
		if err != nil {
			return nil, err
		}
		var res dialect.Result
		switch op.Op {
		case strata.OpInsert:
			res, err = execInsert(ctx, conn, dialectName, et, op)
		case strata.OpUpdate:
			res, err = execUpdate(ctx, conn, dialectName, et, op)
		case strata.OpDelete:
			res, err = execDelete(ctx, conn, dialectName, et, op)
		default:
			err = strata.NewInvalidOperationError("unknown operation %v", op.Op)
		}
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func execInsert(ctx context.Context, conn ExecQuerier, dialectName string, et *graph.EntityType, op dialect.Operation) (dialect.Result, error) {
	s, generated := insertStmt(dialectName, et, op.Values)
	if dialectName == dialect.Postgres && len(generated) > 0 {
		return insertReturning(ctx, conn, et, s, generated)
	}
	res, err := conn.ExecContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.Result{}, wrapConstraint(err)
	}
	gen := make(map[string]strata.Value)
	// A single integer server-default reports through LastInsertId.
	if len(generated) == 1 && (generated[0].Type == field.TypeInt || generated[0].Type == field.TypeInt64) {
		id, err := res.LastInsertId()
		if err != nil {
			return dialect.Result{}, err
		}
		v := strata.Value(id)
		if generated[0].Type == field.TypeInt {
			v = int(id)
		}
		gen[generated[0].Name] = v
	}
	return dialect.Result{Generated: gen}, nil
}

func insertReturning(ctx context.Context, conn ExecQuerier, et *graph.EntityType, s *stmt, generated []*field.Descriptor) (dialect.Result, error) {
	rs, err := conn.QueryContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.Result{}, wrapConstraint(err)
	}
	defer rs.Close()
	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return dialect.Result{}, wrapConstraint(err)
		}
		return dialect.Result{}, strata.NewInvalidOperationError("inserting %s: no returned row", et.Name)
	}
	raw := make([]any, len(generated))
	ptrs := make([]any, len(generated))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rs.Scan(ptrs...); err != nil {
		return dialect.Result{}, err
	}
	gen := make(map[string]strata.Value, len(generated))
	for i, fd := range generated {
		v, err := normalize(fd, raw[i])
		if err != nil {
			return dialect.Result{}, err
		}
		gen[fd.Name] = v
	}
	return dialect.Result{Generated: gen}, nil
}

func execUpdate(ctx context.Context, conn ExecQuerier, dialectName string, et *graph.EntityType, op dialect.Operation) (dialect.Result, error) {
	s := updateStmt(dialectName, et, op.Key, op.Values)
	res, err := conn.ExecContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.Result{}, wrapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dialect.Result{}, err
	}
	if n == 0 {
		return dialect.Result{}, strata.NewNotFoundErrorWithKey(et.Name, graph.Key(op.Key).String())
	}
	return dialect.Result{}, nil
}

func execDelete(ctx context.Context, conn ExecQuerier, dialectName string, et *graph.EntityType, op dialect.Operation) (dialect.Result, error) {
	s := deleteStmt(dialectName, et, op.Key)
	res, err := conn.ExecContext(ctx, s.String(), s.args...)
	if err != nil {
		return dialect.Result{}, wrapConstraint(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dialect.Result{}, err
	}
	if n == 0 {
		return dialect.Result{}, strata.NewNotFoundErrorWithKey(et.Name, graph.Key(op.Key).String())
	}
	return dialect.Result{}, nil
}
