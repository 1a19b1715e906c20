package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// fetchedSet is one materialized result set, scanned off the provider cursor
// before hydration.
type fetchedSet struct {
	cols []string
	recs [][]strata.Value
}

// relatedSets holds the result sets of one navigation load. Many-to-many
// navigations carry the join rows alongside the targets.
type relatedSets struct {
	join   *fetchedSet
	target *fetchedSet
}

// scanSet drains the current result set of the cursor.
func scanSet(rows dialect.Rows) (*fetchedSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	set := &fetchedSet{cols: cols}
	for rows.Next() {
		rec := make([]strata.Value, len(cols))
		if err := rows.Scan(rec); err != nil {
			return nil, err
		}
		set.recs = append(set.recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// hydrate materializes one record. In tracking mode the identity map
// deduplicates: a key already tracked returns the existing instance
// untouched, so two loads of the same row never produce two objects.
func (s *Session) hydrate(et *graph.EntityType, set *fetchedSet, rec []strata.Value, tracking bool) (*Entity, error) {
	values := make(map[string]strata.Value, len(set.cols))
	for i, name := range set.cols {
		values[name] = rec[i]
	}
	if !tracking {
		return newEntity(nil, et, values, strata.Detached), nil
	}
	hash, err := et.KeyOf(values).Hash()
	if err != nil {
		return nil, err
	}
	if existing := s.resolve(et, hash); existing != nil {
		return existing, nil
	}
	e := newEntity(s, et, values, strata.Unchanged)
	e.rebase()
	if err := s.register(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Session) hydrateSet(et *graph.EntityType, set *fetchedSet, tracking bool) ([]*Entity, error) {
	out := make([]*Entity, 0, len(set.recs))
	for _, rec := range set.recs {
		e, err := s.hydrate(et, set, rec, tracking)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// consumeIncludes hydrates a combined-mode cursor: one result set per
// include node in depth-first pre-order, join rows before targets for
// many-to-many nodes.
func (s *Session) consumeIncludes(rows dialect.Rows, nodes []*plan.Include, parents []*Entity, tracking bool) error {
	for _, node := range nodes {
		sets := &relatedSets{}
		if node.Rel.Kind == edge.M2M {
			if !rows.NextResultSet() {
				return strata.NewInvalidOperationError("missing join result set for navigation %q", node.Name)
			}
			join, err := scanSet(rows)
			if err != nil {
				return err
			}
			sets.join = join
		}
		if !rows.NextResultSet() {
			return strata.NewInvalidOperationError("missing result set for navigation %q", node.Name)
		}
		target, err := scanSet(rows)
		if err != nil {
			return err
		}
		sets.target = target
		children, err := s.applyRelated(node.Rel, parents, sets, tracking)
		if err != nil {
			return err
		}
		if err := s.consumeIncludes(rows, node.Children, children, tracking); err != nil {
			return err
		}
	}
	return nil
}

// splitIncludes materializes each include level with its own derived load.
// Sibling navigations fetch concurrently; hydration stays sequential since
// the identity map is single-owner.
func (s *Session) splitIncludes(ctx context.Context, nodes []*plan.Include, parents []*Entity, tracking bool) error {
	if len(nodes) == 0 {
		return nil
	}
	fetched := make([]*relatedSets, len(nodes))
	eg, gctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		eg.Go(func() error {
			sets, err := s.fetchRelated(gctx, node.Rel, parents, nil)
			if err != nil {
				return err
			}
			fetched[i] = sets
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, node := range nodes {
		children, err := s.applyRelated(node.Rel, parents, fetched[i], tracking)
		if err != nil {
			return err
		}
		if err := s.splitIncludes(ctx, node.Children, children, tracking); err != nil {
			return err
		}
	}
	return nil
}

// loadRelated fetches and attaches one navigation level for the given
// parents. It backs explicit and lazy loads and the split-query path.
func (s *Session) loadRelated(ctx context.Context, rel *graph.Relationship, parents []*Entity, filter querylanguage.P) error {
	tracking := len(parents) > 0 && parents[0].s != nil
	sets, err := s.fetchRelated(ctx, rel, parents, filter)
	if err != nil {
		return err
	}
	_, err = s.applyRelated(rel, parents, sets, tracking)
	return err
}

// fetchRelated loads the raw result sets of one navigation level. It only
// reads session state, so sibling fetches may run concurrently.
func (s *Session) fetchRelated(ctx context.Context, rel *graph.Relationship, parents []*Entity, filter querylanguage.P) (*relatedSets, error) {
	if rel.Kind == edge.M2M {
		return s.fetchJoinRelated(ctx, rel, parents, filter)
	}
	src := rel.Owner.Keys
	if rel.Inverse {
		src = rel.Columns
	}
	tuples, err := entityTuples(src, parents)
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return &relatedSets{}, nil
	}
	target, props := rel.Dependent, rel.Columns
	if rel.Inverse {
		target, props = rel.Principal, rel.Principal.Keys
	}
	set, err := s.queryRecords(ctx, target, descriptorNames(props), tuples, filter)
	if err != nil {
		return nil, err
	}
	return &relatedSets{target: set}, nil
}

func (s *Session) fetchJoinRelated(ctx context.Context, rel *graph.Relationship, parents []*Entity, filter querylanguage.P) (*relatedSets, error) {
	tuples, err := entityTuples(rel.Owner.Keys, parents)
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return &relatedSets{}, nil
	}
	join, err := s.queryRecords(ctx, rel.Through, descriptorNames(rel.JoinSource.Columns), tuples, nil)
	if err != nil {
		return nil, err
	}
	targetTuples, err := recordTuples(join, rel.JoinTarget.Columns)
	if err != nil {
		return nil, err
	}
	if len(targetTuples) == 0 {
		return &relatedSets{join: join}, nil
	}
	target, err := s.queryRecords(ctx, rel.Target, descriptorNames(rel.Target.Keys), targetTuples, filter)
	if err != nil {
		return nil, err
	}
	return &relatedSets{join: join, target: target}, nil
}

// queryRecords runs one batch-membership load against the provider and
// drains its root result set. Derived loads never re-apply global filters.
func (s *Session) queryRecords(ctx context.Context, et *graph.EntityType, props []string, tuples [][]strata.Value, filter querylanguage.P) (*fetchedSet, error) {
	b := plan.Query(et.Name).Where(plan.In(props, tuples)).IgnoreFilters()
	if filter != nil {
		b.Where(filter)
	}
	p, err := b.Build(s.g)
	if err != nil {
		return nil, err
	}
	rows, err := s.drv.Query(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSet(rows)
}

// applyRelated hydrates the navigation's result sets and attaches the
// children to every parent whose (entity, navigation) pair is not yet
// materialized. The mark makes re-traversal of cyclic graphs idempotent.
func (s *Session) applyRelated(rel *graph.Relationship, parents []*Entity, sets *relatedSets, tracking bool) ([]*Entity, error) {
	var children []*Entity
	if sets.target != nil {
		var err error
		if children, err = s.hydrateSet(rel.Target, sets.target, tracking); err != nil {
			return nil, err
		}
	}
	pending := make(map[*Entity]struct{}, len(parents))
	for _, p := range parents {
		if p.isLoaded(rel.Name) {
			continue
		}
		if _, ok := pending[p]; ok {
			continue
		}
		pending[p] = struct{}{}
		p.edges[rel.Name] = nil
	}
	var err error
	if rel.Kind == edge.M2M {
		err = s.attachJoin(rel, pending, parents, sets, children, tracking)
	} else {
		err = attachRelated(rel, pending, parents, children)
	}
	if err != nil {
		return nil, err
	}
	for p := range pending {
		p.markLoaded(rel.Name)
	}
	return children, nil
}

// attachRelated matches children to parents over the foreign key. For a
// forward navigation the child carries the key; for an inverse one the
// parent does.
func attachRelated(rel *graph.Relationship, pending map[*Entity]struct{}, parents, children []*Entity) error {
	parentFds := rel.Owner.Keys
	childFds := rel.Columns
	if rel.Inverse {
		parentFds, childFds = rel.Columns, rel.Principal.Keys
	}
	index := make(map[string][]*Entity, len(parents))
	for p := range pending {
		hash, ok, err := valueHash(parentFds, p.values)
		if err != nil {
			return err
		}
		if ok {
			index[hash] = append(index[hash], p)
		}
	}
	for _, c := range children {
		hash, ok, err := valueHash(childFds, c.values)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, p := range index[hash] {
			p.edges[rel.Name] = append(p.edges[rel.Name], c)
		}
	}
	return nil
}

// attachJoin matches many-to-many targets to parents through the join rows.
func (s *Session) attachJoin(rel *graph.Relationship, pending map[*Entity]struct{}, parents []*Entity, sets *relatedSets, children []*Entity, tracking bool) error {
	if sets.join == nil {
		return nil
	}
	// Join rows are entities in their own right; track them too.
	joins, err := s.hydrateSet(rel.Through, sets.join, tracking)
	if err != nil {
		return err
	}
	index := make(map[string][]*Entity, len(parents))
	for p := range pending {
		hash, ok, err := valueHash(rel.Owner.Keys, p.values)
		if err != nil {
			return err
		}
		if ok {
			index[hash] = append(index[hash], p)
		}
	}
	targets := make(map[string]*Entity, len(children))
	for _, c := range children {
		hash, ok, err := valueHash(rel.Target.Keys, c.values)
		if err != nil {
			return err
		}
		if ok {
			targets[hash] = c
		}
	}
	for _, j := range joins {
		ownerHash, ok, err := valueHash(rel.JoinSource.Columns, j.values)
		if err != nil || !ok {
			if err != nil {
				return err
			}
			continue
		}
		targetHash, ok, err := valueHash(rel.JoinTarget.Columns, j.values)
		if err != nil || !ok {
			if err != nil {
				return err
			}
			continue
		}
		target, ok := targets[targetHash]
		if !ok {
			continue
		}
		for _, p := range index[ownerHash] {
			p.edges[rel.Name] = append(p.edges[rel.Name], target)
		}
	}
	return nil
}

// entityTuples collects the distinct value tuples of the given properties
// across entities. Tuples with nil components join nothing and are skipped.
func entityTuples(fds []*field.Descriptor, entities []*Entity) ([][]strata.Value, error) {
	seen := make(map[string]struct{}, len(entities))
	var out [][]strata.Value
	for _, e := range entities {
		tup := make([]strata.Value, len(fds))
		skip := false
		for i, fd := range fds {
			v := e.values[fd.Name]
			if v == nil {
				skip = true
				break
			}
			tup[i] = v
		}
		if skip {
			continue
		}
		hash, err := graph.Key(tup).Hash()
		if err != nil {
			return nil, err
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, tup)
	}
	return out, nil
}

// recordTuples collects the distinct value tuples of the given properties
// from a raw result set.
func recordTuples(set *fetchedSet, fds []*field.Descriptor) ([][]strata.Value, error) {
	idx := make([]int, len(fds))
	for i, fd := range fds {
		idx[i] = -1
		for j, name := range set.cols {
			if name == fd.Name {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, strata.NewInvalidOperationError("result set misses property %q", fd.Name)
		}
	}
	seen := make(map[string]struct{}, len(set.recs))
	var out [][]strata.Value
	for _, rec := range set.recs {
		tup := make([]strata.Value, len(fds))
		skip := false
		for i, j := range idx {
			if rec[j] == nil {
				skip = true
				break
			}
			tup[i] = rec[j]
		}
		if skip {
			continue
		}
		hash, err := graph.Key(tup).Hash()
		if err != nil {
			return nil, err
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, tup)
	}
	return out, nil
}

// valueHash hashes the tuple of the given properties from a value map; the
// second result is false when a component is nil.
func valueHash(fds []*field.Descriptor, values map[string]strata.Value) (string, bool, error) {
	tup := make(graph.Key, len(fds))
	for i, fd := range fds {
		v := values[fd.Name]
		if v == nil {
			return "", false, nil
		}
		tup[i] = v
	}
	hash, err := tup.Hash()
	return hash, err == nil, err
}

func descriptorNames(fds []*field.Descriptor) []string {
	names := make([]string, len(fds))
	for i, fd := range fds {
		names[i] = fd.Name
	}
	return names
}
