package session

import (
	"context"

	"github.com/syssam/strata"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
)

// Query composes and executes one query through the session, hydrating the
// results into tracked entities unless tracking is disabled.
type Query struct {
	s       *Session
	entity  string
	b       *plan.Builder
	ordered bool
	shaped  bool // projection or aggregates narrow the result shape
}

// Query starts a query for the given entity type.
func (s *Session) Query(entity string) *Query {
	return &Query{s: s, entity: entity, b: plan.Query(entity)}
}

// Where adds predicates; multiple calls and arguments are conjoined.
func (q *Query) Where(ps ...querylanguage.P) *Query {
	q.b.Where(ps...)
	return q
}

// Include adds navigation paths to materialize with the result.
func (q *Query) Include(paths ...string) *Query {
	q.b.Include(paths...)
	return q
}

// OrderBy adds ordering keys.
func (q *Query) OrderBy(terms ...plan.OrderTerm) *Query {
	q.b.OrderBy(terms...)
	q.ordered = true
	return q
}

// Select narrows the projection to the named properties. Narrowed results
// are always detached; partial shapes cannot enter the identity map.
func (q *Query) Select(properties ...string) *Query {
	q.b.Select(properties...)
	q.shaped = true
	return q
}

// Offset skips the first n rows. Pagination requires an explicit ordering.
func (q *Query) Offset(n int) *Query {
	q.b.Offset(n)
	return q
}

// Limit caps the result at n rows. Pagination requires an explicit ordering.
func (q *Query) Limit(n int) *Query {
	q.b.Limit(n)
	return q
}

// NoTracking returns detached results that bypass the identity map.
func (q *Query) NoTracking() *Query {
	q.b.NoTracking()
	return q
}

// SplitQuery materializes each include level with its own batched load.
func (q *Query) SplitQuery() *Query {
	q.b.SplitQuery()
	return q
}

// IgnoreFilters opts out of the entity's global query filter.
func (q *Query) IgnoreFilters() *Query {
	q.b.IgnoreFilters()
	return q
}

// GroupBy groups the aggregate terminals by the named properties.
func (q *Query) GroupBy(properties ...string) *Query {
	q.b.GroupBy(properties...)
	return q
}

// build finalizes the plan. Root-level eager navigations join the include
// graph automatically unless the plan carries a narrowed shape.
func (q *Query) build(eager bool) (*plan.Plan, error) {
	if eager && !q.shaped {
		et, err := q.s.g.Entity(q.entity)
		if err != nil {
			return nil, err
		}
		for _, rel := range et.Relationships {
			if rel.Strategy == edge.EagerLoad {
				q.b.Include(rel.Name)
			}
		}
	}
	return q.b.Build(q.s.g)
}

// All executes the query and returns every matched entity.
func (q *Query) All(ctx context.Context) ([]*Entity, error) {
	return q.all(ctx, "all")
}

func (q *Query) all(ctx context.Context, op string) ([]*Entity, error) {
	p, err := q.build(true)
	if err != nil {
		return nil, err
	}
	matches, err := q.s.execute(ctx, p)
	if err != nil {
		return nil, strata.NewQueryError(q.entity, op, err)
	}
	return matches, nil
}

// First returns the first matched entity, or NotFoundError when none match.
func (q *Query) First(ctx context.Context) (*Entity, error) {
	if q.ordered {
		q.b.Limit(1)
	}
	matches, err := q.all(ctx, "first")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, strata.NewNotFoundError(q.label())
	}
	return matches[0], nil
}

// Only returns the single matched entity. It returns NotFoundError when none
// match and NotSingularError when more than one does.
func (q *Query) Only(ctx context.Context) (*Entity, error) {
	if q.ordered {
		q.b.Limit(2)
	}
	matches, err := q.all(ctx, "only")
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, strata.NewNotFoundError(q.label())
	case 1:
		return matches[0], nil
	default:
		return nil, strata.NewNotSingularErrorWithCount(q.label(), len(matches))
	}
}

// Count returns the number of matched rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	v, err := q.aggregateOne(ctx, "count", plan.Count())
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, strata.NewQueryError(q.entity, "count",
			strata.NewInvalidOperationError("unexpected count value %T", v))
	}
	return n, nil
}

// Exist reports whether any row matches.
func (q *Query) Exist(ctx context.Context) (bool, error) {
	v, err := q.aggregateOne(ctx, "exist", plan.Any())
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, strata.NewQueryError(q.entity, "exist",
			strata.NewInvalidOperationError("unexpected exist value %T", v))
	}
	return ok, nil
}

// Aggregate executes the query with the given aggregate terminals and
// returns one record per group, keyed by the terminals' column names.
func (q *Query) Aggregate(ctx context.Context, aggs ...plan.Aggregation) ([]map[string]strata.Value, error) {
	q.b.Aggregate(aggs...)
	p, err := q.build(false)
	if err != nil {
		return nil, err
	}
	set, err := q.fetch(ctx, "aggregate", p)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]strata.Value, 0, len(set.recs))
	for _, rec := range set.recs {
		record := make(map[string]strata.Value, len(set.cols))
		for i, name := range set.cols {
			record[name] = rec[i]
		}
		out = append(out, record)
	}
	return out, nil
}

func (q *Query) aggregateOne(ctx context.Context, op string, agg plan.Aggregation) (strata.Value, error) {
	q.b.Aggregate(agg)
	p, err := q.build(false)
	if err != nil {
		return nil, err
	}
	set, err := q.fetch(ctx, op, p)
	if err != nil {
		return nil, err
	}
	if len(set.recs) == 0 {
		return nil, strata.NewQueryError(q.entity, op,
			strata.NewInvalidOperationError("empty aggregate result"))
	}
	for i, name := range set.cols {
		if name == agg.Column() {
			return set.recs[0][i], nil
		}
	}
	return nil, strata.NewQueryError(q.entity, op,
		strata.NewInvalidOperationError("missing aggregate column %q", agg.Column()))
}

func (q *Query) fetch(ctx context.Context, op string, p *plan.Plan) (*fetchedSet, error) {
	rows, err := q.s.drv.Query(ctx, p)
	if err != nil {
		return nil, strata.NewQueryError(q.entity, op, err)
	}
	defer rows.Close()
	set, err := scanSet(rows)
	if err != nil {
		return nil, strata.NewQueryError(q.entity, op, err)
	}
	return set, nil
}

func (q *Query) label() string {
	if et, err := q.s.g.Entity(q.entity); err == nil {
		return et.Label
	}
	return q.entity
}

// execute runs a built plan and hydrates its results. In split mode the root
// rows load without includes and each navigation level follows as its own
// derived load.
func (s *Session) execute(ctx context.Context, p *plan.Plan) ([]*Entity, error) {
	exec := p
	if p.SplitQuery && len(p.Includes) > 0 {
		root := *p
		root.Includes = nil
		exec = &root
	}
	rows, err := s.drv.Query(ctx, exec)
	if err != nil {
		return nil, err
	}
	set, err := scanSet(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}
	tracking := p.Tracking && len(p.Projection) == 0 && len(p.Aggregates) == 0
	parents, err := s.hydrateSet(p.Entity, set, tracking)
	if err != nil {
		rows.Close()
		return nil, err
	}
	switch {
	case len(p.Includes) == 0:
		rows.Close()
	case p.SplitQuery:
		rows.Close()
		if err := s.splitIncludes(ctx, p.Includes, parents, tracking); err != nil {
			return nil, err
		}
	default:
		err := s.consumeIncludes(rows, p.Includes, parents, tracking)
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return parents, nil
}
