package memory

import (
	"context"
	"sort"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// Query evaluates the plan against the current store snapshot.
func (d *Driver) Query(ctx context.Context, p *plan.Plan) (dialect.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return queryStore(d.graph, d.snapshot(), p)
}

func (tx *memTx) Query(ctx context.Context, p *plan.Plan) (dialect.Rows, error) {
	if tx.done {
		return nil, strata.NewInvalidOperationError("transaction has already been committed or rolled back")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return queryStore(tx.drv.graph, tx.stage, p)
}

func queryStore(g *graph.Graph, s *store, p *plan.Plan) (dialect.Rows, error) {
	ev := &evaluator{s: s, g: g, et: p.Entity}
	var matched []row
	for _, r := range s.tables[p.Entity.Name].rows {
		if p.Predicate != nil {
			ok, err := ev.eval(r, p.Predicate)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, r)
	}
	if err := sortRows(p.Entity, matched, p.Order); err != nil {
		return nil, err
	}
	if len(p.Aggregates) > 0 {
		set, err := aggregate(ev, p, matched)
		if err != nil {
			return nil, err
		}
		return dialect.NewStaticRows([]dialect.ResultSet{set}), nil
	}
	matched = paginate(matched, p.Offset, p.Limit)
	sets := []dialect.ResultSet{makeSet(p.Entity, p.Projection, matched)}
	if err := appendIncludeSets(s, &sets, p.Includes, matched); err != nil {
		return nil, err
	}
	return dialect.NewStaticRows(sets), nil
}

// sortRows orders rows by the given terms, tie-broken (and defaulted) by key
// hash so results are deterministic across repeated executions.
func sortRows(et *graph.EntityType, rows []row, terms []plan.OrderTerm) error {
	hashOf := make([]string, len(rows))
	for i, r := range rows {
		h, err := et.KeyOf(r).Hash()
		if err != nil {
			return err
		}
		hashOf[i] = h
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		for _, term := range terms {
			va, vb := ra[term.Property], rb[term.Property]
			c, err := compareNullable(va, vb)
			if err != nil {
				sortErr = err
				return false
			}
			if c != 0 {
				if term.Direction == plan.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return hashOf[idx[a]] < hashOf[idx[b]]
	})
	if sortErr != nil {
		return sortErr
	}
	sorted := make([]row, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
	return nil
}

// compareNullable orders nil before any value.
func compareNullable(a, b strata.Value) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}
	return compare(a, b)
}

func paginate(rows []row, offset, limit int) []row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// makeSet projects rows into a positional result set. An empty projection
// selects the full entity shape in property declaration order.
func makeSet(et *graph.EntityType, projection []string, rows []row) dialect.ResultSet {
	columns := projection
	if len(columns) == 0 {
		columns = make([]string, len(et.Properties))
		for i, fd := range et.Properties {
			columns[i] = fd.Name
		}
	}
	set := dialect.ResultSet{Columns: columns, Records: make([][]strata.Value, len(rows))}
	for i, r := range rows {
		vals := make([]strata.Value, len(columns))
		for j, name := range columns {
			vals[j] = r[name]
		}
		set.Records[i] = vals
	}
	return set
}

// appendIncludeSets emits one result set per include node in depth-first
// pre-order. Many-to-many nodes emit the join rows first, then the targets.
func appendIncludeSets(s *store, sets *[]dialect.ResultSet, nodes []*plan.Include, parents []row) error {
	for _, node := range nodes {
		rel := node.Rel
		var (
			related []row
			err     error
		)
		if rel.Kind == edge.M2M {
			joins, err := matchRows(s, rel.Through, fkNames(rel.JoinSource), keyTuples(rel.Owner, parents))
			if err != nil {
				return err
			}
			if err := sortRows(rel.Through, joins, nil); err != nil {
				return err
			}
			*sets = append(*sets, makeSet(rel.Through, nil, joins))
			related, err = matchRows(s, rel.Target, keyNames(rel.Target), columnTuples(rel.JoinTarget.Columns, joins))
			if err != nil {
				return err
			}
		} else {
			related, err = relatedRows(s, rel, parents)
			if err != nil {
				return err
			}
		}
		if err := sortRows(rel.Target, related, nil); err != nil {
			return err
		}
		*sets = append(*sets, makeSet(rel.Target, nil, related))
		if err := appendIncludeSets(s, sets, node.Children, related); err != nil {
			return err
		}
	}
	return nil
}

func aggregate(ev *evaluator, p *plan.Plan, rows []row) (dialect.ResultSet, error) {
	columns := make([]string, 0, len(p.GroupBy)+len(p.Aggregates))
	columns = append(columns, p.GroupBy...)
	for _, agg := range p.Aggregates {
		columns = append(columns, agg.Column())
	}
	set := dialect.ResultSet{Columns: columns}
	if len(p.GroupBy) == 0 {
		vals, err := aggRow(ev, p, nil, rows)
		if err != nil {
			return dialect.ResultSet{}, err
		}
		set.Records = [][]strata.Value{vals}
		return set, nil
	}
	groups := make(map[string][]row)
	keys := make(map[string][]strata.Value)
	for _, r := range rows {
		tup := make(graph.Key, len(p.GroupBy))
		for i, name := range p.GroupBy {
			tup[i] = r[name]
		}
		h, err := tup.Hash()
		if err != nil {
			return dialect.ResultSet{}, err
		}
		groups[h] = append(groups[h], r)
		keys[h] = tup
	}
	hashes := make([]string, 0, len(groups))
	for h := range groups {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	for _, h := range hashes {
		vals, err := aggRow(ev, p, keys[h], groups[h])
		if err != nil {
			return dialect.ResultSet{}, err
		}
		set.Records = append(set.Records, vals)
	}
	return set, nil
}

func aggRow(ev *evaluator, p *plan.Plan, key []strata.Value, rows []row) ([]strata.Value, error) {
	vals := make([]strata.Value, 0, len(key)+len(p.Aggregates))
	vals = append(vals, key...)
	for _, agg := range p.Aggregates {
		v, err := aggValue(ev, p.Entity, agg, rows)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func aggValue(ev *evaluator, et *graph.EntityType, agg plan.Aggregation, rows []row) (strata.Value, error) {
	switch agg.Func {
	case plan.AggCount:
		return int64(len(rows)), nil
	case plan.AggAny:
		return len(rows) > 0, nil
	case plan.AggAll:
		for _, r := range rows {
			ok, err := ev.eval(r, agg.Predicate)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case plan.AggSum:
		if et.Property(agg.Property).Type == field.TypeFloat64 {
			var sum float64
			for _, r := range rows {
				if f, ok := asFloat(r[agg.Property]); ok {
					sum += f
				}
			}
			return sum, nil
		}
		var sum int64
		for _, r := range rows {
			if f, ok := asFloat(r[agg.Property]); ok {
				sum += int64(f)
			}
		}
		return sum, nil
	case plan.AggMean:
		var (
			sum float64
			n   int
		)
		for _, r := range rows {
			if f, ok := asFloat(r[agg.Property]); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil, nil
		}
		return sum / float64(n), nil
	case plan.AggMin, plan.AggMax:
		var best strata.Value
		for _, r := range rows {
			v := r[agg.Property]
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, err := compare(v, best)
			if err != nil {
				return nil, err
			}
			if (agg.Func == plan.AggMin && c < 0) || (agg.Func == plan.AggMax && c > 0) {
				best = v
			}
		}
		return best, nil
	default:
		return nil, strata.NewInvalidOperationError("unknown aggregate %d", agg.Func)
	}
}


