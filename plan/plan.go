// Package plan provides the query plan builder: declarative composition of
// predicates, include graphs, ordering, projection, pagination and aggregate
// terminals into an abstract, provider-agnostic Plan.
//
//	p, err := plan.Query("User").
//		Where(querylanguage.FieldGT("age", 18)).
//		Include("posts.comments").
//		OrderBy(plan.Asc("name")).
//		Offset(10).Limit(5).
//		Build(g)
//
// A Plan is constructed per query invocation, handed to an execution
// provider, and discarded. The builder validates every referenced property
// and navigation against the model registry and conjoins the entity's global
// query filter unless explicitly disabled.
package plan

import (
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/field"
)

// Direction is the sort direction of an ordering term.
type Direction uint8

// Sort directions.
const (
	Ascending Direction = iota
	Descending
)

// OrderTerm is one ordering key of a plan.
type OrderTerm struct {
	Property  string
	Direction Direction
}

// Asc orders by the given property, ascending.
func Asc(property string) OrderTerm {
	return OrderTerm{Property: property}
}

// Desc orders by the given property, descending.
func Desc(property string) OrderTerm {
	return OrderTerm{Property: property, Direction: Descending}
}

// AggregateFunc enumerates the aggregate terminals.
type AggregateFunc uint8

// Aggregate terminals. Any and All produce booleans; the rest scalars.
const (
	AggCount AggregateFunc = iota
	AggSum
	AggMean
	AggMin
	AggMax
	AggAny
	AggAll
)

// Aggregation is one aggregate terminal of a plan.
type Aggregation struct {
	Func      AggregateFunc
	Property  string          // operand property, empty for Count/Any/All
	Predicate querylanguage.P // condition, for All
}

// Column returns the result-set column name of the terminal, e.g. "count"
// or "sum(age)".
func (a Aggregation) Column() string {
	switch a.Func {
	case AggCount:
		return "count"
	case AggAny:
		return "any"
	case AggAll:
		return "all"
	case AggSum:
		return "sum(" + a.Property + ")"
	case AggMean:
		return "mean(" + a.Property + ")"
	case AggMin:
		return "min(" + a.Property + ")"
	default:
		return "max(" + a.Property + ")"
	}
}

// Count counts the matched rows.
func Count() Aggregation { return Aggregation{Func: AggCount} }

// Sum sums the given numeric property across the matched rows.
func Sum(property string) Aggregation { return Aggregation{Func: AggSum, Property: property} }

// Mean averages the given numeric property across the matched rows.
func Mean(property string) Aggregation { return Aggregation{Func: AggMean, Property: property} }

// Min takes the minimum of the given property across the matched rows.
func Min(property string) Aggregation { return Aggregation{Func: AggMin, Property: property} }

// Max takes the maximum of the given property across the matched rows.
func Max(property string) Aggregation { return Aggregation{Func: AggMax, Property: property} }

// Any reports whether any row matches.
func Any() Aggregation { return Aggregation{Func: AggAny} }

// All reports whether every matched row satisfies the predicate.
func All(p querylanguage.P) Aggregation { return Aggregation{Func: AggAll, Predicate: p} }

// Include is one resolved node of a plan's include graph.
type Include struct {
	Name     string
	Rel      *graph.Relationship
	Children []*Include
}

// Plan is the abstract representation of one query. It is immutable once
// built; execution providers consume it read-only.
type Plan struct {
	Entity     *graph.EntityType
	Predicate  querylanguage.P // caller predicate conjoined with the global filter
	Order      []OrderTerm
	Includes   []*Include
	Projection []string // nil means the full entity shape
	Aggregates []Aggregation
	GroupBy    []string
	Offset     int // -1 when unset
	Limit      int // -1 when unset
	Tracking   bool
	SplitQuery bool
}

// Builder composes a Plan. The zero value is not usable; start with Query.
type Builder struct {
	entity        string
	predicates    []querylanguage.P
	order         []OrderTerm
	includes      []string
	projection    []string
	aggregates    []Aggregation
	groupBy       []string
	offset, limit int
	noTracking    bool
	splitQuery    bool
	noFilters     bool
}

// Query starts a plan for the given entity type.
func Query(entity string) *Builder {
	return &Builder{entity: entity, offset: -1, limit: -1}
}

// Where adds predicates; multiple calls and arguments are conjoined.
func (b *Builder) Where(ps ...querylanguage.P) *Builder {
	b.predicates = append(b.predicates, ps...)
	return b
}

// Include adds navigation paths to materialize with the result. A path is a
// dot-separated navigation chain, e.g. "posts.comments"; shared prefixes are
// merged into one include graph.
func (b *Builder) Include(paths ...string) *Builder {
	b.includes = append(b.includes, paths...)
	return b
}

// OrderBy adds ordering keys.
func (b *Builder) OrderBy(terms ...OrderTerm) *Builder {
	b.order = append(b.order, terms...)
	return b
}

// Select narrows the projection to the named properties.
func (b *Builder) Select(properties ...string) *Builder {
	b.projection = append(b.projection, properties...)
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Limit caps the result at n rows.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// NoTracking returns plain detached values: results bypass identity-map
// registration and snapshot capture.
func (b *Builder) NoTracking() *Builder {
	b.noTracking = true
	return b
}

// SplitQuery materializes each include level with its own batched load
// instead of one combined load.
func (b *Builder) SplitQuery() *Builder {
	b.splitQuery = true
	return b
}

// IgnoreFilters opts out of the entity's global query filter.
func (b *Builder) IgnoreFilters() *Builder {
	b.noFilters = true
	return b
}

// Aggregate replaces the projection with aggregate terminals.
func (b *Builder) Aggregate(aggs ...Aggregation) *Builder {
	b.aggregates = append(b.aggregates, aggs...)
	return b
}

// GroupBy groups the aggregate terminals by the named properties.
func (b *Builder) GroupBy(properties ...string) *Builder {
	b.groupBy = append(b.groupBy, properties...)
	return b
}

// Build validates the composition against the registry and returns the plan.
func (b *Builder) Build(g *graph.Graph) (*Plan, error) {
	et, err := g.Entity(b.entity)
	if err != nil {
		return nil, err
	}
	p := &Plan{
		Entity:     et,
		Order:      b.order,
		Projection: b.projection,
		Aggregates: b.aggregates,
		GroupBy:    b.groupBy,
		Offset:     b.offset,
		Limit:      b.limit,
		Tracking:   !b.noTracking,
		SplitQuery: b.splitQuery,
	}
	if b.offset != -1 && b.offset < 0 || b.limit != -1 && b.limit < 0 {
		return nil, strata.NewConfigurationError("entity %q: negative pagination bounds", et.Name)
	}
	if (b.offset >= 0 || b.limit >= 0) && len(b.order) == 0 {
		return nil, strata.NewConfigurationError(
			"entity %q: pagination requires an explicit ordering; paging an unordered result is not reproducible", et.Name)
	}
	for _, term := range b.order {
		fd := et.Property(term.Property)
		if fd == nil {
			return nil, strata.NewConfigurationError("entity %q: ordering by unknown property %q", et.Name, term.Property)
		}
		if !fd.Type.Comparable() {
			return nil, strata.NewConfigurationError("entity %q: ordering by non-comparable property %q", et.Name, term.Property)
		}
	}
	for _, name := range b.projection {
		if et.Property(name) == nil {
			return nil, strata.NewConfigurationError("entity %q: selecting unknown property %q", et.Name, name)
		}
	}
	if len(b.includes) > 0 && (len(b.projection) > 0 || len(b.aggregates) > 0) {
		return nil, strata.NewConfigurationError("entity %q: includes require the full entity shape", et.Name)
	}
	if err := b.buildPredicate(g, p); err != nil {
		return nil, err
	}
	if p.Includes, err = buildIncludes(et, b.includes); err != nil {
		return nil, err
	}
	if err := validateAggregates(et, b.aggregates, b.groupBy); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Builder) buildPredicate(g *graph.Graph, p *Plan) error {
	var pred querylanguage.P
	for _, q := range b.predicates {
		if pred == nil {
			pred = q
		} else {
			pred = querylanguage.And(pred, q)
		}
	}
	// Global filters apply at the root of a plan only; derived include
	// loads never re-apply them.
	if filter := g.Filter(p.Entity.Name); filter != nil && !b.noFilters {
		if pred == nil {
			pred = filter
		} else {
			pred = querylanguage.And(filter, pred)
		}
	}
	if pred != nil {
		if err := ValidatePredicate(p.Entity, pred); err != nil {
			return err
		}
	}
	p.Predicate = pred
	return nil
}

func buildIncludes(et *graph.EntityType, paths []string) ([]*Include, error) {
	var roots []*Include
	for _, path := range paths {
		cur := &roots
		curType := et
		for _, name := range strings.Split(path, ".") {
			rel := curType.Relationship(name)
			if rel == nil {
				return nil, strata.NewConfigurationError(
					"entity %q: include path %q references unknown navigation %q on %q",
					et.Name, path, name, curType.Name)
			}
			var node *Include
			for _, existing := range *cur {
				if existing.Name == name {
					node = existing
					break
				}
			}
			if node == nil {
				node = &Include{Name: name, Rel: rel}
				*cur = append(*cur, node)
			}
			cur = &node.Children
			curType = rel.Target
		}
	}
	return roots, nil
}

func validateAggregates(et *graph.EntityType, aggs []Aggregation, groupBy []string) error {
	if len(groupBy) > 0 && len(aggs) == 0 {
		return strata.NewConfigurationError("entity %q: grouping requires at least one aggregate terminal", et.Name)
	}
	for _, key := range groupBy {
		if et.Property(key) == nil {
			return strata.NewConfigurationError("entity %q: grouping by unknown property %q", et.Name, key)
		}
	}
	for _, agg := range aggs {
		switch agg.Func {
		case AggSum, AggMean:
			fd := et.Property(agg.Property)
			if fd == nil {
				return strata.NewConfigurationError("entity %q: aggregating unknown property %q", et.Name, agg.Property)
			}
			if !fd.Type.Numeric() {
				return strata.NewConfigurationError("entity %q: aggregating non-numeric property %q", et.Name, agg.Property)
			}
		case AggMin, AggMax:
			fd := et.Property(agg.Property)
			if fd == nil {
				return strata.NewConfigurationError("entity %q: aggregating unknown property %q", et.Name, agg.Property)
			}
			if !fd.Type.Comparable() {
				return strata.NewConfigurationError("entity %q: aggregating non-comparable property %q", et.Name, agg.Property)
			}
		case AggAll:
			if agg.Predicate == nil {
				return strata.NewConfigurationError("entity %q: all-terminal requires a predicate", et.Name)
			}
			if err := ValidatePredicate(et, agg.Predicate); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidatePredicate walks a predicate tree and checks every property and
// navigation reference against the entity type. Predicates nested under a
// navigation call are validated against the navigation's target.
func ValidatePredicate(et *graph.EntityType, expr querylanguage.Expr) error {
	switch e := expr.(type) {
	case *querylanguage.Field:
		if et.Property(e.Name) == nil {
			return strata.NewConfigurationError("entity %q: predicate references unknown property %q", et.Name, e.Name)
		}
	case *querylanguage.Edge:
		if et.Relationship(e.Name) == nil {
			return strata.NewConfigurationError("entity %q: predicate references unknown navigation %q", et.Name, e.Name)
		}
	case *querylanguage.UnaryExpr:
		return ValidatePredicate(et, e.X)
	case *querylanguage.BinaryExpr:
		if err := ValidatePredicate(et, e.X); err != nil {
			return err
		}
		return ValidatePredicate(et, e.Y)
	case *querylanguage.NaryExpr:
		for _, x := range e.Xs {
			if err := ValidatePredicate(et, x); err != nil {
				return err
			}
		}
	case *querylanguage.CallExpr:
		if e.Func == querylanguage.FuncHasEdge {
			return validateEdgeCall(et, e)
		}
		for _, a := range e.Args {
			if err := ValidatePredicate(et, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEdgeCall(et *graph.EntityType, e *querylanguage.CallExpr) error {
	if len(e.Args) == 0 {
		return strata.NewConfigurationError("entity %q: navigation predicate without a navigation", et.Name)
	}
	ref, ok := e.Args[0].(*querylanguage.Edge)
	if !ok {
		return strata.NewConfigurationError("entity %q: navigation predicate on a non-navigation expression", et.Name)
	}
	rel := et.Relationship(ref.Name)
	if rel == nil {
		return strata.NewConfigurationError("entity %q: predicate references unknown navigation %q", et.Name, ref.Name)
	}
	for _, a := range e.Args[1:] {
		if err := ValidatePredicate(rel.Target, a); err != nil {
			return err
		}
	}
	return nil
}

// In returns a predicate matching the named properties against the given
// value tuples. It backs derived include loads: the materializer collects
// parent join values and fetches all related rows in one batch.
func In(properties []string, tuples [][]strata.Value) querylanguage.P {
	if len(properties) == 1 {
		vs := make([]any, len(tuples))
		for i, t := range tuples {
			vs[i] = t[0]
		}
		return querylanguage.FieldIn(properties[0], vs...)
	}
	rows := make([]querylanguage.P, len(tuples))
	for i, t := range tuples {
		cols := make([]querylanguage.P, len(properties))
		for j, name := range properties {
			cols[j] = querylanguage.FieldEQ(name, t[j])
		}
		if len(cols) == 1 {
			rows[i] = cols[0]
		} else {
			rows[i] = querylanguage.And(cols[0], cols[1], cols[2:]...)
		}
	}
	if len(rows) == 1 {
		return rows[0]
	}
	return querylanguage.Or(rows[0], rows[1], rows[2:]...)
}

// Related derives the plan that loads the rows reachable over rel from
// parents identified by the given join-value tuples. For a forward
// navigation the tuples are principal keys matched against the dependent's
// foreign-key properties; for an inverse navigation they are foreign-key
// values matched against the principal's key properties. Many-to-many
// navigations resolve in two hops via the join entity; callers derive the
// first hop with Related on the join navigation's reference.
func Related(g *graph.Graph, rel *graph.Relationship, tuples [][]strata.Value) (*Plan, error) {
	var (
		target *graph.EntityType
		props  []*field.Descriptor
	)
	if rel.Inverse {
		target = rel.Principal
		props = rel.Principal.Keys
	} else {
		target = rel.Dependent
		props = rel.Columns
	}
	names := make([]string, len(props))
	for i, fd := range props {
		names[i] = fd.Name
	}
	return Query(target.Name).Where(In(names, tuples)).IgnoreFilters().Build(g)
}
