package memory

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/syssam/strata"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

var collator = collate.New(language.Und)

// evaluator evaluates predicate trees against rows of one entity type.
// Navigation predicates traverse the store with a nested evaluator.
type evaluator struct {
	s  *store
	g  *graph.Graph
	et *graph.EntityType
}

func (e *evaluator) eval(r row, expr querylanguage.Expr) (bool, error) {
	switch x := expr.(type) {
	case *querylanguage.UnaryExpr:
		if x.Op != querylanguage.OpNot {
			return false, strata.NewInvalidOperationError("unary operator %v in predicate", x.Op)
		}
		ok, err := e.eval(r, x.X)
		return !ok, err
	case *querylanguage.BinaryExpr:
		return e.evalBinary(r, x)
	case *querylanguage.NaryExpr:
		for _, sub := range x.Xs {
			ok, err := e.eval(r, sub)
			if err != nil {
				return false, err
			}
			if ok == (x.Op == querylanguage.OpOr) {
				return ok, nil
			}
		}
		return x.Op == querylanguage.OpAnd, nil
	case *querylanguage.CallExpr:
		return e.evalCall(r, x)
	default:
		return false, strata.NewInvalidOperationError("expression %s is not a predicate", expr)
	}
}

func (e *evaluator) evalBinary(r row, x *querylanguage.BinaryExpr) (bool, error) {
	switch x.Op {
	case querylanguage.OpAnd, querylanguage.OpOr:
		ok, err := e.eval(r, x.X)
		if err != nil {
			return false, err
		}
		if ok == (x.Op == querylanguage.OpOr) {
			return ok, nil
		}
		return e.eval(r, x.Y)
	}
	a, err := e.valueOf(r, x.X)
	if err != nil {
		return false, err
	}
	b, err := e.valueOf(r, x.Y)
	if err != nil {
		return false, err
	}
	switch x.Op {
	case querylanguage.OpEQ:
		return equal(a, b), nil
	case querylanguage.OpNEQ:
		return !equal(a, b), nil
	case querylanguage.OpGT, querylanguage.OpGTE, querylanguage.OpLT, querylanguage.OpLTE:
		if a == nil || b == nil {
			return false, nil
		}
		c, err := compare(a, b)
		if err != nil {
			return false, err
		}
		switch x.Op {
		case querylanguage.OpGT:
			return c > 0, nil
		case querylanguage.OpGTE:
			return c >= 0, nil
		case querylanguage.OpLT:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case querylanguage.OpIn, querylanguage.OpNotIn:
		if a == nil {
			return false, nil
		}
		list, ok := b.([]any)
		if !ok {
			return false, strata.NewInvalidOperationError("in-predicate on non-list value %v", b)
		}
		for _, v := range list {
			if equal(a, v) {
				return x.Op == querylanguage.OpIn, nil
			}
		}
		return x.Op == querylanguage.OpNotIn, nil
	default:
		return false, strata.NewInvalidOperationError("binary operator %v in predicate", x.Op)
	}
}

func (e *evaluator) evalCall(r row, x *querylanguage.CallExpr) (bool, error) {
	if x.Func == querylanguage.FuncHasEdge {
		return e.evalHasEdge(r, x)
	}
	if len(x.Args) != 2 {
		return false, strata.NewInvalidOperationError("%s expects two arguments", x.Func)
	}
	av, err := e.valueOf(r, x.Args[0])
	if err != nil {
		return false, err
	}
	bv, err := e.valueOf(r, x.Args[1])
	if err != nil {
		return false, err
	}
	a, aok := av.(string)
	b, bok := bv.(string)
	if !aok || !bok {
		return false, nil
	}
	switch x.Func {
	case querylanguage.FuncEqualFold:
		return strings.EqualFold(a, b), nil
	case querylanguage.FuncContains:
		return strings.Contains(a, b), nil
	case querylanguage.FuncContainsFold:
		return strings.Contains(strings.ToLower(a), strings.ToLower(b)), nil
	case querylanguage.FuncHasPrefix:
		return strings.HasPrefix(a, b), nil
	case querylanguage.FuncHasSuffix:
		return strings.HasSuffix(a, b), nil
	default:
		return false, strata.NewInvalidOperationError("unknown predicate function %q", x.Func)
	}
}

func (e *evaluator) evalHasEdge(r row, x *querylanguage.CallExpr) (bool, error) {
	if len(x.Args) == 0 {
		return false, strata.NewInvalidOperationError("navigation predicate without a navigation")
	}
	ref, ok := x.Args[0].(*querylanguage.Edge)
	if !ok {
		return false, strata.NewInvalidOperationError("navigation predicate on a non-navigation expression")
	}
	rel := e.et.Relationship(ref.Name)
	if rel == nil {
		return false, strata.NewInvalidOperationError("unknown navigation %q on %q", ref.Name, e.et.Name)
	}
	related, err := relatedRows(e.s, rel, []row{r})
	if err != nil {
		return false, err
	}
	nested := &evaluator{s: e.s, g: e.g, et: rel.Target}
	for _, cand := range related {
		match := true
		for _, p := range x.Args[1:] {
			ok, err := nested.eval(cand, p)
			if err != nil {
				return false, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (e *evaluator) valueOf(r row, expr querylanguage.Expr) (strata.Value, error) {
	switch x := expr.(type) {
	case *querylanguage.Field:
		return r[x.Name], nil
	case *querylanguage.Value:
		return x.V, nil
	default:
		return nil, strata.NewInvalidOperationError("expression %s is not a value", expr)
	}
}

// relatedRows returns the rows reachable over rel from the given parents,
// deduplicated by key. Many-to-many navigations resolve in two hops through
// the join entity.
func relatedRows(s *store, rel *graph.Relationship, parents []row) ([]row, error) {
	if rel.Kind == edge.M2M {
		joins, err := matchRows(s, rel.Through, fkNames(rel.JoinSource), keyTuples(rel.Owner, parents))
		if err != nil {
			return nil, err
		}
		return matchRows(s, rel.Target, keyNames(rel.Target), columnTuples(rel.JoinTarget.Columns, joins))
	}
	if rel.Inverse {
		return matchRows(s, rel.Principal, keyNames(rel.Principal), columnTuples(rel.Columns, parents))
	}
	return matchRows(s, rel.Dependent, fkNames(rel), keyTuples(rel.Principal, parents))
}

// matchRows filters the entity's rows to those whose named properties equal
// one of the given value tuples, using canonical key hashing for membership.
func matchRows(s *store, et *graph.EntityType, names []string, tuples [][]strata.Value) ([]row, error) {
	want := make(map[string]struct{}, len(tuples))
	for _, tup := range tuples {
		h, err := graph.Key(tup).Hash()
		if err != nil {
			return nil, err
		}
		want[h] = struct{}{}
	}
	var out []row
	for _, r := range s.tables[et.Name].rows {
		tup := make(graph.Key, len(names))
		skip := false
		for i, n := range names {
			if r[n] == nil {
				skip = true
				break
			}
			tup[i] = r[n]
		}
		if skip {
			continue
		}
		h, err := tup.Hash()
		if err != nil {
			return nil, err
		}
		if _, ok := want[h]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func keyNames(et *graph.EntityType) []string {
	names := make([]string, len(et.Keys))
	for i, fd := range et.Keys {
		names[i] = fd.Name
	}
	return names
}

func fkNames(rel *graph.Relationship) []string {
	names := make([]string, len(rel.Columns))
	for i, fd := range rel.Columns {
		names[i] = fd.Name
	}
	return names
}

// keyTuples extracts key tuples of the given rows.
func keyTuples(et *graph.EntityType, rows []row) [][]strata.Value {
	out := make([][]strata.Value, 0, len(rows))
	for _, r := range rows {
		out = append(out, et.KeyOf(r))
	}
	return out
}

// columnTuples extracts the given column values of the rows, skipping rows
// with a nil component (an unset nullable foreign key references nothing).
func columnTuples(cols []*field.Descriptor, rows []row) [][]strata.Value {
	out := make([][]strata.Value, 0, len(rows))
	for _, r := range rows {
		tup := make([]strata.Value, len(cols))
		skip := false
		for i, fd := range cols {
			if r[fd.Name] == nil {
				skip = true
				break
			}
			tup[i] = r[fd.Name]
		}
		if !skip {
			out = append(out, tup)
		}
	}
	return out
}

// equal reports value equality with numeric coercion across int widths and
// floats, matching the comparison semantics of the plan evaluator.
func equal(a, b strata.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case uuid.UUID:
		bv, ok := b.(uuid.UUID)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// compare orders two non-nil values. Strings collate under the undetermined
// locale; mixed numeric widths coerce to float64.
func compare(a, b strata.Value) (int, error) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return collator.CompareString(av, bv), nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1, nil
			case av.After(bv):
				return 1, nil
			default:
				return 0, nil
			}
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case !av && bv:
				return -1, nil
			case av && !bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv), nil
		}
	case uuid.UUID:
		if bv, ok := b.(uuid.UUID); ok {
			return bytes.Compare(av[:], bv[:]), nil
		}
	}
	return 0, strata.NewInvalidOperationError("cannot compare %T with %T", a, b)
}

func asFloat(v strata.Value) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
