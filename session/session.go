// Package session implements the unit of work: an identity map enforcing one
// instance per row, a change tracker deriving operations from property
// mutations, a relationship materializer for eager, explicit and lazy
// navigation loads, and a committer that orders and applies all tracked
// changes in a single provider transaction.
//
// A session is designed for single-owner, sequential use within one logical
// scope (a request, a job); it is not safe for concurrent mutation.
// Independent sessions may query the same provider concurrently.
package session

import (
	"context"

	"github.com/syssam/strata"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/plan"
	"github.com/syssam/strata/querylanguage"
)

// Session is one unit of work over a model and an execution provider.
type Session struct {
	g       *graph.Graph
	drv     dialect.Driver
	partial bool

	identity map[string]map[string]*Entity // entity name -> key hash -> instance
	tracked  []*Entity                     // all tracked instances, in attach order
}

// Option configures a session.
type Option func(*Session)

// WithPartialUpdates restricts update operations to explicitly flagged
// properties (Entity.SetModified) instead of every changed property.
func WithPartialUpdates() Option {
	return func(s *Session) { s.partial = true }
}

// New returns an empty session over the given model and provider.
func New(g *graph.Graph, drv dialect.Driver, opts ...Option) *Session {
	s := &Session{
		g:        g,
		drv:      drv,
		identity: make(map[string]map[string]*Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the model registry of the session.
func (s *Session) Graph() *graph.Graph { return s.g }

// resolve returns the tracked instance for the given type and key hash.
func (s *Session) resolve(et *graph.EntityType, hash string) *Entity {
	return s.identity[et.Name][hash]
}

// index enters the entity into the identity map. It reports whether a new
// entry was created; a different instance under the same key is a
// ConflictError.
func (s *Session) index(e *Entity) (bool, error) {
	hash, err := e.keyHash()
	if err != nil {
		return false, err
	}
	byKey := s.identity[e.et.Name]
	if byKey == nil {
		byKey = make(map[string]*Entity)
		s.identity[e.et.Name] = byKey
	}
	if existing, ok := byKey[hash]; ok {
		if existing == e {
			return false, nil
		}
		return false, strata.NewConflictError(e.et.Name, e.Key().String())
	}
	byKey[hash] = e
	return true, nil
}

// register indexes the entity and starts tracking it.
func (s *Session) register(e *Entity) error {
	added, err := s.index(e)
	if err != nil {
		return err
	}
	if added {
		s.tracked = append(s.tracked, e)
	}
	return nil
}

// unindex drops the entity's identity-map entry without ending tracking.
func (s *Session) unindex(e *Entity) {
	if hash, err := e.keyHash(); err == nil {
		if byKey := s.identity[e.et.Name]; byKey != nil && byKey[hash] == e {
			delete(byKey, hash)
		}
	}
}

func (s *Session) deregister(e *Entity) {
	s.unindex(e)
	for i, t := range s.tracked {
		if t == e {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			break
		}
	}
}

// Add tracks a new instance for insertion. Key properties with a
// server-computed default may be omitted; the generated values flow back
// into the entity on commit. An instance whose key is fully client-assigned
// is indexed immediately: Get resolves it without a provider round trip, and
// a second Add under the same key is a ConflictError.
func (s *Session) Add(entity string, values map[string]strata.Value) (*Entity, error) {
	et, err := s.g.Entity(entity)
	if err != nil {
		return nil, err
	}
	if err := validateValues(et, values); err != nil {
		return nil, err
	}
	e := newEntity(s, et, values, strata.Added)
	if e.keyComplete() {
		if _, err := s.index(e); err != nil {
			return nil, err
		}
	}
	s.tracked = append(s.tracked, e)
	return e, nil
}

// Attach tracks an existing instance as Unchanged without loading it. The
// full key must be present.
func (s *Session) Attach(entity string, values map[string]strata.Value) (*Entity, error) {
	et, err := s.g.Entity(entity)
	if err != nil {
		return nil, err
	}
	if err := validateValues(et, values); err != nil {
		return nil, err
	}
	for _, kp := range et.Keys {
		if values[kp.Name] == nil {
			return nil, strata.NewInvalidOperationError(
				"attaching %s without key property %q", et.Name, kp.Name)
		}
	}
	e := newEntity(s, et, values, strata.Unchanged)
	e.rebase()
	if err := s.register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete marks the entity for deletion on the next commit. Deleting an
// Added instance detaches it instead; it was never persisted.
func (s *Session) Delete(e *Entity) error {
	switch e.state {
	case strata.Detached:
		return strata.NewInvalidOperationError("deleting a detached %s", e.et.Name)
	case strata.Added:
		s.Detach(e)
		return nil
	default:
		e.state = strata.Deleted
		return nil
	}
}

// Detach removes the entity from the session. The instance keeps its values
// but loses its lifecycle.
func (s *Session) Detach(e *Entity) {
	s.deregister(e)
	e.state = strata.Detached
	e.s = nil
}

// Get loads one entity by key. A tracked instance is returned directly
// without touching the provider; otherwise the row is fetched, hydrated and
// tracked. Returns NotFoundError if no row matches.
func (s *Session) Get(ctx context.Context, entity string, key ...strata.Value) (*Entity, error) {
	et, err := s.g.Entity(entity)
	if err != nil {
		return nil, err
	}
	if len(key) != len(et.Keys) {
		return nil, strata.NewInvalidOperationError(
			"%s key expects %d components, got %d", et.Name, len(et.Keys), len(key))
	}
	if hash, err := graph.Key(key).Hash(); err == nil {
		if e := s.resolve(et, hash); e != nil {
			return e, nil
		}
	}
	ps := make([]querylanguage.P, len(key))
	for i, kp := range et.Keys {
		ps[i] = querylanguage.FieldEQ(kp.Name, key[i])
	}
	matches, err := s.Query(entity).Where(ps...).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, strata.NewNotFoundErrorWithKey(et.Name, graph.Key(key).String())
	}
	return matches[0], nil
}

// Load explicitly materializes one navigation of a tracked entity, with an
// optional extra filter on the related rows.
func (s *Session) Load(ctx context.Context, e *Entity, name string, filter ...querylanguage.P) error {
	if e.state == strata.Detached || e.s != s {
		return strata.NewInvalidOperationError("loading navigation %q of a detached entity", name)
	}
	rel := e.et.Relationship(name)
	if rel == nil {
		return strata.NewInvalidOperationError("unknown navigation %q on %s", name, e.et.Name)
	}
	var pred querylanguage.P
	for _, p := range filter {
		if pred == nil {
			pred = p
		} else {
			pred = querylanguage.And(pred, p)
		}
	}
	if pred != nil {
		if err := plan.ValidatePredicate(rel.Target, pred); err != nil {
			return err
		}
	}
	delete(e.loaded, name)
	return s.loadRelated(ctx, rel, []*Entity{e}, pred)
}

func validateValues(et *graph.EntityType, values map[string]strata.Value) error {
	for name := range values {
		if et.Property(name) == nil {
			return strata.NewInvalidOperationError("unknown property %q on %s", name, et.Name)
		}
	}
	return nil
}
