package sql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// stmt accumulates one SQL statement with its bound arguments, using the
// placeholder and quoting style of the target dialect.
type stmt struct {
	dialect string
	b       strings.Builder
	args    []any
	aliases int
}

func newStmt(dialectName string) *stmt {
	return &stmt{dialect: dialectName}
}

func (s *stmt) String() string { return s.b.String() }

func (s *stmt) write(parts ...string) {
	for _, p := range parts {
		s.b.WriteString(p)
	}
}

// ident writes a quoted identifier.
func (s *stmt) ident(name string) {
	if s.dialect == dialect.MySQL {
		s.write("`", name, "`")
		return
	}
	s.write(`"`, name, `"`)
}

// column writes a qualified, quoted column reference.
func (s *stmt) column(qualifier, name string) {
	s.ident(qualifier)
	s.write(".")
	s.ident(name)
}

// arg binds a value and writes its placeholder.
func (s *stmt) arg(v any) {
	s.args = append(s.args, convertArg(v))
	if s.dialect == dialect.Postgres {
		s.write("$", strconv.Itoa(len(s.args)))
		return
	}
	s.write("?")
}

// alias returns a fresh table alias for a nested subquery.
func (s *stmt) alias() string {
	s.aliases++
	return "t" + strconv.Itoa(s.aliases)
}

// convertArg maps engine values to driver-friendly ones.
func convertArg(v any) any {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case map[string]any, []any:
		buf, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(buf)
	default:
		return v
	}
}

// selectPlan emits the SELECT of a plan's root result set. Ordering always
// ends with the key properties so repeated executions are reproducible.
func selectPlan(dialectName string, p *plan.Plan) (*stmt, error) {
	s := newStmt(dialectName)
	et := p.Entity
	s.write("SELECT ")
	switch {
	case len(p.Aggregates) > 0:
		if err := s.aggregateList(et, p); err != nil {
			return nil, err
		}
	case len(p.Projection) > 0:
		for i, name := range p.Projection {
			if i > 0 {
				s.write(", ")
			}
			s.column(et.Table, name)
		}
	default:
		s.columnList(et)
	}
	s.write(" FROM ")
	s.ident(et.Table)
	if p.Predicate != nil {
		s.write(" WHERE ")
		if err := s.pred(et, et.Table, p.Predicate); err != nil {
			return nil, err
		}
	}
	if len(p.GroupBy) > 0 {
		s.write(" GROUP BY ")
		for i, name := range p.GroupBy {
			if i > 0 {
				s.write(", ")
			}
			s.column(et.Table, name)
		}
		s.write(" ORDER BY ")
		for i, name := range p.GroupBy {
			if i > 0 {
				s.write(", ")
			}
			s.column(et.Table, name)
		}
		return s, nil
	}
	if len(p.Aggregates) > 0 {
		return s, nil
	}
	s.write(" ORDER BY ")
	for _, term := range p.Order {
		s.column(et.Table, term.Property)
		if term.Direction == plan.Descending {
			s.write(" DESC")
		}
		s.write(", ")
	}
	for i, kp := range et.Keys {
		if i > 0 {
			s.write(", ")
		}
		s.column(et.Table, kp.Name)
	}
	s.pagination(p.Offset, p.Limit)
	return s, nil
}

func (s *stmt) columnList(et *graph.EntityType) {
	for i, fd := range et.Properties {
		if i > 0 {
			s.write(", ")
		}
		s.column(et.Table, fd.Name)
	}
}

func (s *stmt) pagination(offset, limit int) {
	if offset < 0 && limit < 0 {
		return
	}
	switch {
	case limit >= 0:
		s.write(" LIMIT ", strconv.Itoa(limit))
	case s.dialect == dialect.SQLite:
		s.write(" LIMIT -1")
	case s.dialect == dialect.MySQL:
		// MySQL has no OFFSET without LIMIT.
		s.write(" LIMIT 18446744073709551615")
	}
	if offset >= 0 {
		s.write(" OFFSET ", strconv.Itoa(offset))
	}
}

func (s *stmt) aggregateList(et *graph.EntityType, p *plan.Plan) error {
	n := 0
	for _, name := range p.GroupBy {
		if n > 0 {
			s.write(", ")
		}
		s.column(et.Table, name)
		n++
	}
	for _, agg := range p.Aggregates {
		if n > 0 {
			s.write(", ")
		}
		n++
		switch agg.Func {
		case plan.AggCount:
			s.write("COUNT(*)")
		case plan.AggAny:
			s.write("CASE WHEN COUNT(*) > 0 THEN 1 ELSE 0 END")
		case plan.AggAll:
			// NULL on an empty set; the scanner reads that as vacuous truth.
			s.write("MIN(CASE WHEN ")
			if err := s.pred(et, et.Table, agg.Predicate); err != nil {
				return err
			}
			s.write(" THEN 1 ELSE 0 END)")
		case plan.AggSum:
			s.write("SUM(")
			s.column(et.Table, agg.Property)
			s.write(")")
		case plan.AggMean:
			s.write("AVG(")
			s.column(et.Table, agg.Property)
			s.write(")")
		case plan.AggMin:
			s.write("MIN(")
			s.column(et.Table, agg.Property)
			s.write(")")
		case plan.AggMax:
			s.write("MAX(")
			s.column(et.Table, agg.Property)
			s.write(")")
		}
	}
	return nil
}

// pred translates a predicate tree. Column references are qualified with the
// given qualifier (table name or subquery alias).
func (s *stmt) pred(et *graph.EntityType, qualifier string, expr querylanguage.Expr) error {
	switch x := expr.(type) {
	case *querylanguage.UnaryExpr:
		s.write("NOT (")
		if err := s.pred(et, qualifier, x.X); err != nil {
			return err
		}
		s.write(")")
		return nil
	case *querylanguage.BinaryExpr:
		return s.binaryPred(et, qualifier, x)
	case *querylanguage.NaryExpr:
		op := " AND "
		if x.Op == querylanguage.OpOr {
			op = " OR "
		}
		s.write("(")
		for i, sub := range x.Xs {
			if i > 0 {
				s.write(op)
			}
			if err := s.pred(et, qualifier, sub); err != nil {
				return err
			}
		}
		s.write(")")
		return nil
	case *querylanguage.CallExpr:
		return s.callPred(et, qualifier, x)
	default:
		return strata.NewInvalidOperationError("expression %s is not a predicate", expr)
	}
}

func (s *stmt) binaryPred(et *graph.EntityType, qualifier string, x *querylanguage.BinaryExpr) error {
	switch x.Op {
	case querylanguage.OpAnd, querylanguage.OpOr:
		op := " AND "
		if x.Op == querylanguage.OpOr {
			op = " OR "
		}
		s.write("(")
		if err := s.pred(et, qualifier, x.X); err != nil {
			return err
		}
		s.write(op)
		if err := s.pred(et, qualifier, x.Y); err != nil {
			return err
		}
		s.write(")")
		return nil
	case querylanguage.OpIn, querylanguage.OpNotIn:
		return s.inPred(et, qualifier, x)
	}
	// NULL comparisons translate to IS NULL / IS NOT NULL.
	if v, ok := x.Y.(*querylanguage.Value); ok && v.V == nil {
		if err := s.operand(et, qualifier, x.X); err != nil {
			return err
		}
		switch x.Op {
		case querylanguage.OpEQ:
			s.write(" IS NULL")
		case querylanguage.OpNEQ:
			s.write(" IS NOT NULL")
		default:
			return strata.NewInvalidOperationError("ordering comparison with NULL")
		}
		return nil
	}
	if err := s.operand(et, qualifier, x.X); err != nil {
		return err
	}
	switch x.Op {
	case querylanguage.OpEQ:
		s.write(" = ")
	case querylanguage.OpNEQ:
		s.write(" <> ")
	case querylanguage.OpGT:
		s.write(" > ")
	case querylanguage.OpGTE:
		s.write(" >= ")
	case querylanguage.OpLT:
		s.write(" < ")
	case querylanguage.OpLTE:
		s.write(" <= ")
	default:
		return strata.NewInvalidOperationError("binary operator %v in predicate", x.Op)
	}
	return s.operand(et, qualifier, x.Y)
}

func (s *stmt) inPred(et *graph.EntityType, qualifier string, x *querylanguage.BinaryExpr) error {
	v, ok := x.Y.(*querylanguage.Value)
	if !ok {
		return strata.NewInvalidOperationError("in-predicate on non-literal list")
	}
	list, ok := v.V.([]any)
	if !ok {
		return strata.NewInvalidOperationError("in-predicate on non-list value %v", v.V)
	}
	if len(list) == 0 {
		// IN () is invalid SQL; an empty list matches nothing.
		if x.Op == querylanguage.OpNotIn {
			s.write("1 = 1")
		} else {
			s.write("1 = 0")
		}
		return nil
	}
	if err := s.operand(et, qualifier, x.X); err != nil {
		return err
	}
	if x.Op == querylanguage.OpNotIn {
		s.write(" NOT IN (")
	} else {
		s.write(" IN (")
	}
	for i, item := range list {
		if i > 0 {
			s.write(", ")
		}
		s.arg(item)
	}
	s.write(")")
	return nil
}

func (s *stmt) callPred(et *graph.EntityType, qualifier string, x *querylanguage.CallExpr) error {
	if x.Func == querylanguage.FuncHasEdge {
		return s.edgePred(et, qualifier, x)
	}
	if len(x.Args) != 2 {
		return strata.NewInvalidOperationError("%s expects two arguments", x.Func)
	}
	v, ok := x.Args[1].(*querylanguage.Value)
	if !ok {
		return strata.NewInvalidOperationError("%s expects a literal argument", x.Func)
	}
	str, ok := v.V.(string)
	if !ok {
		return strata.NewInvalidOperationError("%s expects a string argument", x.Func)
	}
	fold := x.Func == querylanguage.FuncEqualFold || x.Func == querylanguage.FuncContainsFold
	if fold {
		s.write("LOWER(")
	}
	if err := s.operand(et, qualifier, x.Args[0]); err != nil {
		return err
	}
	if fold {
		s.write(")")
	}
	switch x.Func {
	case querylanguage.FuncEqualFold:
		s.write(" = ")
		s.arg(strings.ToLower(str))
	case querylanguage.FuncContains:
		s.likeArg("%" + escapeLike(str) + "%")
	case querylanguage.FuncContainsFold:
		s.likeArg("%" + escapeLike(strings.ToLower(str)) + "%")
	case querylanguage.FuncHasPrefix:
		s.likeArg(escapeLike(str) + "%")
	case querylanguage.FuncHasSuffix:
		s.likeArg("%" + escapeLike(str))
	default:
		return strata.NewInvalidOperationError("unknown predicate function %q", x.Func)
	}
	return nil
}

// edgePred emits an EXISTS subquery for a navigation predicate.
func (s *stmt) edgePred(et *graph.EntityType, qualifier string, x *querylanguage.CallExpr) error {
	if len(x.Args) == 0 {
		return strata.NewInvalidOperationError("navigation predicate without a navigation")
	}
	ref, ok := x.Args[0].(*querylanguage.Edge)
	if !ok {
		return strata.NewInvalidOperationError("navigation predicate on a non-navigation expression")
	}
	rel := et.Relationship(ref.Name)
	if rel == nil {
		return strata.NewInvalidOperationError("unknown navigation %q on %q", ref.Name, et.Name)
	}
	if rel.Kind == edge.M2M {
		return s.joinEdgePred(qualifier, rel, x.Args[1:])
	}
	alias := s.alias()
	s.write("EXISTS (SELECT 1 FROM ")
	s.ident(rel.Target.Table)
	s.write(" AS ")
	s.ident(alias)
	s.write(" WHERE ")
	if rel.Inverse {
		// The foreign key lives on this side; match the target's key.
		for i, kp := range rel.Principal.Keys {
			if i > 0 {
				s.write(" AND ")
			}
			s.column(alias, kp.Name)
			s.write(" = ")
			s.column(qualifier, rel.Columns[i].Name)
		}
	} else {
		for i, col := range rel.Columns {
			if i > 0 {
				s.write(" AND ")
			}
			s.column(alias, col.Name)
			s.write(" = ")
			s.column(qualifier, rel.Principal.Keys[i].Name)
		}
	}
	for _, nested := range x.Args[1:] {
		s.write(" AND ")
		if err := s.pred(rel.Target, alias, nested); err != nil {
			return err
		}
	}
	s.write(")")
	return nil
}

// joinEdgePred emits the two-hop EXISTS of a many-to-many navigation.
func (s *stmt) joinEdgePred(qualifier string, rel *graph.Relationship, nested []querylanguage.Expr) error {
	joinAlias, targetAlias := s.alias(), s.alias()
	s.write("EXISTS (SELECT 1 FROM ")
	s.ident(rel.Through.Table)
	s.write(" AS ")
	s.ident(joinAlias)
	s.write(" JOIN ")
	s.ident(rel.Target.Table)
	s.write(" AS ")
	s.ident(targetAlias)
	s.write(" ON ")
	for i, col := range rel.JoinTarget.Columns {
		if i > 0 {
			s.write(" AND ")
		}
		s.column(targetAlias, rel.Target.Keys[i].Name)
		s.write(" = ")
		s.column(joinAlias, col.Name)
	}
	s.write(" WHERE ")
	for i, col := range rel.JoinSource.Columns {
		if i > 0 {
			s.write(" AND ")
		}
		s.column(joinAlias, col.Name)
		s.write(" = ")
		s.column(qualifier, rel.Owner.Keys[i].Name)
	}
	for _, n := range nested {
		s.write(" AND ")
		if err := s.pred(rel.Target, targetAlias, n); err != nil {
			return err
		}
	}
	s.write(")")
	return nil
}

func (s *stmt) operand(et *graph.EntityType, qualifier string, expr querylanguage.Expr) error {
	switch x := expr.(type) {
	case *querylanguage.Field:
		s.column(qualifier, x.Name)
		return nil
	case *querylanguage.Value:
		s.arg(x.V)
		return nil
	default:
		return strata.NewInvalidOperationError("expression %s is not a value", expr)
	}
}

// likeArg binds an escaped LIKE pattern with an explicit ESCAPE clause.
// SQLite has no default escape character, so the escaping done by escapeLike
// is inert without it. The escape character is bound as a parameter to avoid
// per-dialect string-literal quoting.
func (s *stmt) likeArg(pattern string) {
	s.write(" LIKE ")
	s.arg(pattern)
	s.write(" ESCAPE ")
	s.arg(`\`)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

// insertStmt emits the INSERT of an operation. For Postgres the statement
// returns the server-generated properties; other dialects report them through
// LastInsertId.
func insertStmt(dialectName string, et *graph.EntityType, values map[string]strata.Value) (*stmt, []*field.Descriptor) {
	s := newStmt(dialectName)
	s.write("INSERT INTO ")
	s.ident(et.Table)
	s.write(" (")
	n := 0
	for _, fd := range et.Properties {
		if _, ok := values[fd.Name]; !ok {
			continue
		}
		if n > 0 {
			s.write(", ")
		}
		s.ident(fd.Name)
		n++
	}
	s.write(") VALUES (")
	n = 0
	for _, fd := range et.Properties {
		v, ok := values[fd.Name]
		if !ok {
			continue
		}
		if n > 0 {
			s.write(", ")
		}
		s.arg(v)
		n++
	}
	s.write(")")
	var generated []*field.Descriptor
	for _, fd := range et.Properties {
		if fd.DefaultKind != field.DefaultServer {
			continue
		}
		if _, ok := values[fd.Name]; ok {
			continue
		}
		generated = append(generated, fd)
	}
	if dialectName == dialect.Postgres && len(generated) > 0 {
		s.write(" RETURNING ")
		for i, fd := range generated {
			if i > 0 {
				s.write(", ")
			}
			s.ident(fd.Name)
		}
	}
	return s, generated
}

func updateStmt(dialectName string, et *graph.EntityType, key []strata.Value, values map[string]strata.Value) *stmt {
	s := newStmt(dialectName)
	s.write("UPDATE ")
	s.ident(et.Table)
	s.write(" SET ")
	n := 0
	for _, fd := range et.Properties {
		v, ok := values[fd.Name]
		if !ok {
			continue
		}
		if n > 0 {
			s.write(", ")
		}
		s.ident(fd.Name)
		s.write(" = ")
		s.arg(v)
		n++
	}
	s.keyClause(et, key)
	return s
}

func deleteStmt(dialectName string, et *graph.EntityType, key []strata.Value) *stmt {
	s := newStmt(dialectName)
	s.write("DELETE FROM ")
	s.ident(et.Table)
	s.keyClause(et, key)
	return s
}

func (s *stmt) keyClause(et *graph.EntityType, key []strata.Value) {
	s.write(" WHERE ")
	for i, kp := range et.Keys {
		if i > 0 {
			s.write(" AND ")
		}
		s.ident(kp.Name)
		s.write(" = ")
		s.arg(key[i])
	}
}
