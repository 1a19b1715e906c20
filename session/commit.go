package session

import (
	"context"
	"errors"
	"sort"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/schema/edge"
)

// CommitStats reports the operation counts of one commit.
type CommitStats struct {
	Inserts int
	Updates int
	Deletes int
}

// deferredUpdate is a foreign-key assignment postponed past the inserts to
// break a nullable-relationship cycle: the dependent row inserts with a null
// foreign key and receives the principal's key in a follow-up update inside
// the same transaction.
type deferredUpdate struct {
	dependent *Entity
	rel       *graph.Relationship
	principal *Entity
}

// insertDep is one insert-ordering constraint: dependent inserts after
// principal.
type insertDep struct {
	dependent *Entity
	principal *Entity
	rel       *graph.Relationship
	alive     bool
}

// Commit applies every tracked change in one provider transaction: inserts
// in principal-before-dependent order, then updates, then deletes with
// dependents first. Delete behaviors expand before the transaction opens;
// generated keys flow back into the entities on success and every tracked
// state rebases. On failure the transaction rolls back and no store change
// survives.
func (s *Session) Commit(ctx context.Context) (CommitStats, error) {
	if err := s.expandDeletes(ctx); err != nil {
		return CommitStats{}, err
	}
	var added, modified, deleted []*Entity
	for _, e := range s.tracked {
		switch e.state {
		case strata.Added:
			added = append(added, e)
		case strata.Modified:
			modified = append(modified, e)
		case strata.Deleted:
			deleted = append(deleted, e)
		}
	}
	inserts, deferred, err := s.orderInserts(added)
	if err != nil {
		return CommitStats{}, err
	}
	opIndex := make(map[*Entity]int, len(inserts))
	for i, e := range inserts {
		opIndex[e] = i
	}
	nulled := make(map[*Entity]map[string]struct{})
	for _, d := range deferred {
		cols := nulled[d.dependent]
		if cols == nil {
			cols = make(map[string]struct{})
			nulled[d.dependent] = cols
		}
		for _, col := range d.rel.Columns {
			cols[col.Name] = struct{}{}
		}
	}

	var ops []dialect.Operation
	for _, e := range inserts {
		ops = append(ops, dialect.Operation{
			Op:     strata.OpInsert,
			Entity: e.et.Name,
			Values: s.insertValues(e, opIndex, nulled[e]),
		})
	}
	updates := 0
	for _, d := range deferred {
		ops = append(ops, deferredOp(d, opIndex))
		updates++
	}
	for _, e := range modified {
		values, err := s.updateValues(e, opIndex)
		if err != nil {
			return CommitStats{}, err
		}
		if len(values) == 0 {
			continue
		}
		ops = append(ops, dialect.Operation{
			Op:     strata.OpUpdate,
			Entity: e.et.Name,
			Key:    e.Key(),
			Values: values,
		})
		updates++
	}
	deleteOrder := orderDeletes(deleted)
	for _, e := range deleteOrder {
		ops = append(ops, dialect.Operation{
			Op:     strata.OpDelete,
			Entity: e.et.Name,
			Key:    e.Key(),
		})
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return CommitStats{}, strata.NewCommitError("", 0, err)
	}
	var results []dialect.Result
	if len(ops) > 0 {
		if results, err = tx.Apply(ctx, ops); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return CommitStats{}, strata.NewCommitError("", 0, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return CommitStats{}, strata.NewCommitError("", 0, err)
	}

	// The transaction is durable; advance the tracked states.
	for i, e := range inserts {
		for name, v := range results[i].Generated {
			e.values[name] = v
		}
	}
	for _, e := range inserts {
		s.settleRefs(e)
	}
	for _, d := range deferred {
		key := d.principal.Key()
		for i, col := range d.rel.Columns {
			d.dependent.values[col.Name] = key[i]
		}
	}
	var rebaseErr error
	for _, e := range inserts {
		e.rebase()
		if _, err := s.index(e); err != nil && rebaseErr == nil {
			rebaseErr = err
		}
	}
	for _, e := range modified {
		s.settleRefs(e)
		e.rebase()
	}
	for _, e := range deleteOrder {
		s.Detach(e)
	}
	stats := CommitStats{Inserts: len(inserts), Updates: updates, Deletes: len(deleteOrder)}
	return stats, rebaseErr
}

// expandDeletes applies the declared delete behaviors before the transaction
// opens: cascades materialize and mark their dependents, restrict rejects the
// commit while every state is still intact, and set-null turns dependents
// into implicit updates. The expansion mutates tracked states, so after a
// failed commit the cascade and set-null marks remain in memory; a retry
// re-derives the same operations from them.
func (s *Session) expandDeletes(ctx context.Context) error {
	var queue []*Entity
	for _, e := range s.tracked {
		if e.state == strata.Deleted {
			queue = append(queue, e)
		}
	}
	visited := make(map[*Entity]struct{})
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if _, ok := visited[e]; ok {
			continue
		}
		visited[e] = struct{}{}
		for _, rel := range e.et.Relationships {
			if rel.Inverse || rel.Kind == edge.M2M || rel.OnDelete == edge.NoAction {
				continue
			}
			deps, err := s.dependentsOf(ctx, rel, e)
			if err != nil {
				return err
			}
			switch rel.OnDelete {
			case edge.Cascade:
				for _, d := range deps {
					switch d.state {
					case strata.Added:
						s.Detach(d)
					case strata.Deleted:
						queue = append(queue, d)
					default:
						d.state = strata.Deleted
						queue = append(queue, d)
					}
				}
			case edge.Restrict:
				for _, d := range deps {
					if d.state != strata.Deleted {
						return strata.NewConstraintError(
							"deleting "+e.et.Label+" "+e.Key().String()+
								" is restricted by "+rel.Dependent.Label+" "+d.Key().String(), nil)
					}
				}
			case edge.SetNull:
				for _, d := range deps {
					if d.state == strata.Deleted {
						continue
					}
					for _, col := range rel.Columns {
						d.values[col.Name] = nil
					}
					d.reevaluate()
				}
			}
		}
	}
	return nil
}

// dependentsOf returns every live dependent referencing the entity over the
// given forward relationship: tracked instances plus stored rows, hydrated
// and deduplicated through the identity map.
func (s *Session) dependentsOf(ctx context.Context, rel *graph.Relationship, e *Entity) ([]*Entity, error) {
	key := e.Key()
	for _, v := range key {
		if v == nil {
			return nil, nil
		}
	}
	keyHash, err := key.Hash()
	if err != nil {
		return nil, err
	}
	p, err := plan.Query(rel.Dependent.Name).
		Where(plan.In(descriptorNames(rel.Columns), [][]strata.Value{key})).
		IgnoreFilters().
		Build(s.g)
	if err != nil {
		return nil, err
	}
	stored, err := s.execute(ctx, p)
	if err != nil {
		return nil, err
	}
	seen := make(map[*Entity]struct{}, len(stored))
	out := stored[:len(stored):len(stored)]
	for _, d := range stored {
		seen[d] = struct{}{}
	}
	// Tracked dependents whose rows are not stored yet (Added) or whose
	// foreign key changed in memory.
	for _, d := range s.tracked {
		if d.et != rel.Dependent {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		hash, ok, err := valueHash(rel.Columns, d.values)
		if err != nil {
			return nil, err
		}
		if ok && hash == keyHash {
			out = append(out, d)
			continue
		}
		// A pending navigation binding references the principal by instance.
		for name, principal := range d.refs {
			if principal == e && d.et.Relationship(name).Ref == rel {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

// orderInserts topologically orders the pending inserts so principals precede
// their dependents. A stall over only optional relationships breaks one of
// them with a deferred update; a stall over required relationships alone is a
// CycleError.
func (s *Session) orderInserts(added []*Entity) ([]*Entity, []deferredUpdate, error) {
	// Index complete client-assigned keys for value-based dependencies.
	byKey := make(map[string]map[string]*Entity)
	for _, e := range added {
		hash, ok, err := valueHash(e.et.Keys, e.values)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		byType := byKey[e.et.Name]
		if byType == nil {
			byType = make(map[string]*Entity)
			byKey[e.et.Name] = byType
		}
		byType[hash] = e
	}
	var edges []insertDep
	indeg := make(map[*Entity]int, len(added))
	for _, e := range added {
		for _, name := range sortedRefNames(e) {
			principal := e.refs[name]
			rel := e.et.Relationship(name)
			if principal.state != strata.Added || principal.s != s {
				return nil, nil, strata.NewInvalidOperationError(
					"%s navigation %q references a principal whose key is neither assigned nor pending insertion",
					e.et.Name, name)
			}
			edges = append(edges, insertDep{dependent: e, principal: principal, rel: rel, alive: true})
			indeg[e]++
		}
		for _, rel := range e.et.Relationships {
			if !rel.Inverse || rel.Kind == edge.M2M {
				continue
			}
			if _, bound := e.refs[rel.Name]; bound {
				continue
			}
			hash, ok, err := valueHash(rel.Columns, e.values)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			principal := byKey[rel.Principal.Name][hash]
			if principal == nil || principal == e {
				continue
			}
			edges = append(edges, insertDep{dependent: e, principal: principal, rel: rel, alive: true})
			indeg[e]++
		}
	}
	var (
		ordered  []*Entity
		deferred []deferredUpdate
	)
	done := make(map[*Entity]struct{}, len(added))
	for len(ordered) < len(added) {
		var picked *Entity
		for _, e := range added {
			if _, ok := done[e]; !ok && indeg[e] == 0 {
				picked = e
				break
			}
		}
		if picked == nil {
			// Every remaining insert waits on another remaining insert.
			// Break one optional relationship; an all-required stall is a
			// genuine cycle.
			broke := false
			for i := range edges {
				ed := &edges[i]
				if !ed.alive || ed.rel.Required {
					continue
				}
				if _, ok := done[ed.dependent]; ok {
					continue
				}
				ed.alive = false
				indeg[ed.dependent]--
				deferred = append(deferred, deferredUpdate{
					dependent: ed.dependent,
					rel:       ed.rel,
					principal: ed.principal,
				})
				broke = true
				break
			}
			if !broke {
				return nil, nil, cycleError(added, edges, done)
			}
			continue
		}
		done[picked] = struct{}{}
		ordered = append(ordered, picked)
		for i := range edges {
			ed := &edges[i]
			if ed.alive && ed.principal == picked {
				ed.alive = false
				indeg[ed.dependent]--
			}
		}
	}
	return ordered, deferred, nil
}

// cycleError extracts one cycle over the remaining required dependencies and
// names its entity types in traversal order.
func cycleError(added []*Entity, edges []insertDep, done map[*Entity]struct{}) error {
	next := make(map[*Entity]*Entity)
	for _, ed := range edges {
		if !ed.alive {
			continue
		}
		if _, ok := done[ed.dependent]; ok {
			continue
		}
		if _, ok := next[ed.dependent]; !ok {
			next[ed.dependent] = ed.principal
		}
	}
	var start *Entity
	for _, e := range added {
		if _, ok := done[e]; !ok {
			start = e
			break
		}
	}
	var names []string
	seen := make(map[*Entity]int)
	for cur := start; cur != nil; cur = next[cur] {
		if at, ok := seen[cur]; ok {
			names = append(names[at:], cur.et.Name)
			return strata.NewCycleError(names...)
		}
		seen[cur] = len(names)
		names = append(names, cur.et.Name)
	}
	return strata.NewCycleError(names...)
}

// insertValues assembles the insert operation values: the entity's set
// properties, declared constant defaults for unset ones, and the pending
// navigation bindings as key references. Columns of a broken cycle edge
// insert as null.
func (s *Session) insertValues(e *Entity, opIndex map[*Entity]int, nulled map[string]struct{}) map[string]strata.Value {
	values := make(map[string]strata.Value, len(e.et.Properties))
	for _, fd := range e.et.Properties {
		if v, ok := e.values[fd.Name]; ok {
			values[fd.Name] = v
			continue
		}
		if dv, ok := fd.DefaultValue(); ok {
			// Constant defaults materialize client-side and flow back into
			// the entity.
			values[fd.Name] = dv
			e.values[fd.Name] = dv
		}
	}
	for _, name := range sortedRefNames(e) {
		principal := e.refs[name]
		rel := e.et.Relationship(name)
		key := principal.Key()
		for i, col := range rel.Columns {
			if key[i] == nil {
				values[col.Name] = dialect.KeyRef{Op: opIndex[principal], Property: rel.Principal.Keys[i].Name}
			} else {
				values[col.Name] = key[i]
			}
		}
	}
	for name := range nulled {
		values[name] = nil
	}
	return values
}

// deferredOp builds the follow-up update assigning a broken cycle edge's
// foreign key. Both the dependent's key and the principal's key may still be
// generated by earlier operations of the batch.
func deferredOp(d deferredUpdate, opIndex map[*Entity]int) dialect.Operation {
	values := make(map[string]strata.Value, len(d.rel.Columns))
	principalKey := d.principal.Key()
	for i, col := range d.rel.Columns {
		if principalKey[i] == nil {
			values[col.Name] = dialect.KeyRef{Op: opIndex[d.principal], Property: d.rel.Principal.Keys[i].Name}
		} else {
			values[col.Name] = principalKey[i]
		}
	}
	key := make([]strata.Value, len(d.dependent.et.Keys))
	for i, kp := range d.dependent.et.Keys {
		if v := d.dependent.values[kp.Name]; v != nil {
			key[i] = v
		} else {
			key[i] = dialect.KeyRef{Op: opIndex[d.dependent], Property: kp.Name}
		}
	}
	return dialect.Operation{
		Op:     strata.OpUpdate,
		Entity: d.dependent.et.Name,
		Key:    key,
		Values: values,
	}
}

// updateValues assembles the update operation values of a modified entity:
// its changed properties plus pending navigation bindings.
func (s *Session) updateValues(e *Entity, opIndex map[*Entity]int) (map[string]strata.Value, error) {
	values := e.changedValues(s.partial)
	for _, name := range sortedRefNames(e) {
		principal := e.refs[name]
		rel := e.et.Relationship(name)
		key := principal.Key()
		for i, col := range rel.Columns {
			if key[i] == nil {
				idx, ok := opIndex[principal]
				if !ok {
					return nil, strata.NewInvalidOperationError(
						"%s navigation %q references a principal whose key is neither assigned nor pending insertion",
						e.et.Name, name)
				}
				values[col.Name] = dialect.KeyRef{Op: idx, Property: rel.Principal.Keys[i].Name}
			} else {
				values[col.Name] = key[i]
			}
		}
	}
	return values, nil
}

// settleRefs copies the now-known principal keys of pending navigation
// bindings into the entity's foreign-key properties.
func (s *Session) settleRefs(e *Entity) {
	for name, principal := range e.refs {
		rel := e.et.Relationship(name)
		key := principal.Key()
		for i, col := range rel.Columns {
			e.values[col.Name] = key[i]
		}
	}
}

// orderDeletes orders pending deletes so dependents go before their
// principals. Remaining mutually dependent deletes keep their tracking
// order.
func orderDeletes(deleted []*Entity) []*Entity {
	if len(deleted) < 2 {
		return deleted
	}
	byKey := make(map[string]map[string]*Entity)
	for _, e := range deleted {
		hash, ok, err := valueHash(e.et.Keys, e.values)
		if err != nil || !ok {
			continue
		}
		byType := byKey[e.et.Name]
		if byType == nil {
			byType = make(map[string]*Entity)
			byKey[e.et.Name] = byType
		}
		byType[hash] = e
	}
	// waits[p] counts deleted dependents that must go first.
	waits := make(map[*Entity]int, len(deleted))
	dependents := make(map[*Entity][]*Entity)
	for _, e := range deleted {
		for _, rel := range e.et.Relationships {
			if !rel.Inverse || rel.Kind == edge.M2M {
				continue
			}
			hash, ok, err := valueHash(rel.Columns, e.values)
			if err != nil || !ok {
				continue
			}
			principal := byKey[rel.Principal.Name][hash]
			if principal == nil || principal == e {
				continue
			}
			waits[principal]++
			dependents[e] = append(dependents[e], principal)
		}
	}
	var ordered []*Entity
	done := make(map[*Entity]struct{}, len(deleted))
	for len(ordered) < len(deleted) {
		progressed := false
		for _, e := range deleted {
			if _, ok := done[e]; ok || waits[e] != 0 {
				continue
			}
			done[e] = struct{}{}
			ordered = append(ordered, e)
			for _, principal := range dependents[e] {
				waits[principal]--
			}
			progressed = true
		}
		if !progressed {
			for _, e := range deleted {
				if _, ok := done[e]; !ok {
					done[e] = struct{}{}
					ordered = append(ordered, e)
				}
			}
		}
	}
	return ordered
}

func sortedRefNames(e *Entity) []string {
	if len(e.refs) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.refs))
	for name := range e.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
