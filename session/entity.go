package session

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata"
	"github.com/syssam/strata/graph"
	"github.com/syssam/strata/schema/edge"
)

// Entity is one tracked (or detached) instance: a dynamic record of property
// values described by its registry type. Tracked entities carry the original
// snapshot used for dirty detection and the materialized navigation cache.
type Entity struct {
	s      *Session
	et     *graph.EntityType
	state  strata.State
	values map[string]strata.Value

	snapshot map[string][]byte    // canonical encoding per property at load
	flagged  map[string]struct{}  // explicitly modified property names
	refs     map[string]*Entity   // pending foreign-key bindings by navigation
	edges    map[string][]*Entity // materialized navigation cache
	loaded   map[string]struct{}  // materialized (entity, navigation) marks
}

func newEntity(s *Session, et *graph.EntityType, values map[string]strata.Value, state strata.State) *Entity {
	e := &Entity{
		s:       s,
		et:      et,
		state:   state,
		values:  make(map[string]strata.Value, len(et.Properties)),
		flagged: make(map[string]struct{}),
		refs:    make(map[string]*Entity),
		edges:   make(map[string][]*Entity),
		loaded:  make(map[string]struct{}),
	}
	for k, v := range values {
		e.values[k] = v
	}
	return e
}

// Type returns the registry type of the entity.
func (e *Entity) Type() *graph.EntityType { return e.et }

// State returns the lifecycle state of the entity.
func (e *Entity) State() strata.State { return e.state }

// Key returns the key tuple of the entity, in declared key-property order.
// Components may be nil for an Added entity awaiting a generated key.
func (e *Entity) Key() graph.Key { return e.et.KeyOf(e.values) }

// Value returns the current value of the named property.
func (e *Entity) Value(name string) strata.Value { return e.values[name] }

// Values returns a copy of the current property values.
func (e *Entity) Values() map[string]strata.Value {
	out := make(map[string]strata.Value, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Set assigns a property value. Key properties are immutable once the entity
// has been loaded or attached; only Added and Detached instances may set
// them. Setting a value on a tracked instance re-evaluates its state.
func (e *Entity) Set(name string, v strata.Value) error {
	fd := e.et.Property(name)
	if fd == nil {
		return strata.NewInvalidOperationError("unknown property %q on %s", name, e.et.Name)
	}
	if fd.Key && e.state != strata.Detached && e.state != strata.Added {
		return strata.NewInvalidOperationError("key property %q of %s is immutable", name, e.et.Name)
	}
	if fd.Key && e.state == strata.Added && e.s != nil {
		return e.rekey(name, v)
	}
	e.values[name] = v
	e.reevaluate()
	return nil
}

// rekey moves the identity-map entry of an Added instance when one of its key
// properties changes. A complete key colliding with another tracked instance
// is a ConflictError; the previous value and entry are restored.
func (e *Entity) rekey(name string, v strata.Value) error {
	prev, had := e.values[name]
	e.s.unindex(e)
	e.values[name] = v
	if !e.keyComplete() {
		return nil
	}
	if _, err := e.s.index(e); err != nil {
		if had {
			e.values[name] = prev
		} else {
			delete(e.values, name)
		}
		if e.keyComplete() {
			_, _ = e.s.index(e)
		}
		return err
	}
	return nil
}

// keyComplete reports whether every key component has a value.
func (e *Entity) keyComplete() bool {
	for _, v := range e.Key() {
		if v == nil {
			return false
		}
	}
	return true
}

// SetModified flags a property as modified even if its value is unchanged,
// forcing it into the next update operation.
func (e *Entity) SetModified(name string) error {
	fd := e.et.Property(name)
	if fd == nil {
		return strata.NewInvalidOperationError("unknown property %q on %s", name, e.et.Name)
	}
	if fd.Key {
		return strata.NewInvalidOperationError("key property %q of %s is immutable", name, e.et.Name)
	}
	e.flagged[name] = struct{}{}
	e.reevaluate()
	return nil
}

// SetRef binds a to-one navigation to the given principal. The foreign-key
// properties take the principal's key values; a principal whose generated key
// is still pending is resolved during commit. A nil target nulls the foreign
// key.
func (e *Entity) SetRef(name string, target *Entity) error {
	rel := e.et.Relationship(name)
	if rel == nil {
		return strata.NewInvalidOperationError("unknown navigation %q on %s", name, e.et.Name)
	}
	if !rel.Inverse || rel.Kind == edge.M2M {
		return strata.NewInvalidOperationError(
			"navigation %q of %s carries no foreign key on this side", name, e.et.Name)
	}
	if target == nil {
		if rel.Required {
			return strata.NewInvalidOperationError(
				"navigation %q of %s is required and cannot be cleared", name, e.et.Name)
		}
		delete(e.refs, name)
		for _, col := range rel.Columns {
			e.values[col.Name] = nil
		}
		e.edges[name] = nil
		e.loaded[name] = struct{}{}
		e.reevaluate()
		return nil
	}
	if target.et != rel.Principal {
		return strata.NewInvalidOperationError(
			"navigation %q of %s expects a %s, got %s", name, e.et.Name, rel.Principal.Name, target.et.Name)
	}
	key := target.Key()
	pending := false
	for _, v := range key {
		if v == nil {
			pending = true
			break
		}
	}
	if pending {
		// The principal's key is generated during commit; remember the
		// binding so the committer can wire it with a key reference.
		e.refs[name] = target
	} else {
		delete(e.refs, name)
		for i, col := range rel.Columns {
			e.values[col.Name] = key[i]
		}
	}
	e.edges[name] = []*Entity{target}
	e.loaded[name] = struct{}{}
	e.reevaluate()
	return nil
}

// Related returns the materialized entities of the named navigation, loading
// them on demand when the navigation's strategy allows it. Explicit-strategy
// navigations must be loaded with Session.Load first; accessing one before
// that returns NotLoadedError. A lazy navigation issues one load per parent
// on first access.
func (e *Entity) Related(ctx context.Context, name string) ([]*Entity, error) {
	rel := e.et.Relationship(name)
	if rel == nil {
		return nil, strata.NewInvalidOperationError("unknown navigation %q on %s", name, e.et.Name)
	}
	if _, ok := e.loaded[name]; ok {
		return e.edges[name], nil
	}
	if e.s == nil || e.state == strata.Detached {
		return nil, strata.NewInvalidOperationError(
			"navigation %q of a detached %s cannot be loaded", name, e.et.Name)
	}
	if rel.Strategy == edge.ExplicitLoad {
		return nil, strata.NewNotLoadedError(name)
	}
	if err := e.s.loadRelated(ctx, rel, []*Entity{e}, nil); err != nil {
		return nil, err
	}
	return e.edges[name], nil
}

// RelatedOne is Related for to-one navigations; it returns nil when no
// related entity exists.
func (e *Entity) RelatedOne(ctx context.Context, name string) (*Entity, error) {
	related, err := e.Related(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(related) == 0 {
		return nil, nil
	}
	return related[0], nil
}

// reevaluate re-derives Unchanged vs Modified from the snapshot. States
// outside that pair are sticky.
func (e *Entity) reevaluate() {
	switch e.state {
	case strata.Unchanged, strata.Modified:
	default:
		return
	}
	if e.dirty() {
		e.state = strata.Modified
	} else {
		e.state = strata.Unchanged
	}
}

func (e *Entity) dirty() bool {
	if len(e.flagged) > 0 || len(e.refs) > 0 {
		return true
	}
	for _, fd := range e.et.Properties {
		if fd.Key {
			continue
		}
		if e.changed(fd.Name) {
			return true
		}
	}
	return false
}

// changed reports whether the property differs from its snapshot under
// canonical-encoding equality.
func (e *Entity) changed(name string) bool {
	buf, err := msgpack.Marshal(e.values[name])
	if err != nil {
		return true
	}
	return string(buf) != string(e.snapshot[name])
}

// changedValues collects the properties of the next update operation: all
// changed non-key properties plus explicit flags, or only the flags in
// partial-update mode.
func (e *Entity) changedValues(partial bool) map[string]strata.Value {
	out := make(map[string]strata.Value)
	for name := range e.flagged {
		out[name] = e.values[name]
	}
	if partial {
		return out
	}
	for _, fd := range e.et.Properties {
		if fd.Key {
			continue
		}
		if e.changed(fd.Name) {
			out[fd.Name] = e.values[fd.Name]
		}
	}
	return out
}

// rebase captures a fresh snapshot of every property and resets the
// modification flags. The entity becomes Unchanged.
func (e *Entity) rebase() {
	e.snapshot = make(map[string][]byte, len(e.et.Properties))
	for _, fd := range e.et.Properties {
		buf, err := msgpack.Marshal(e.values[fd.Name])
		if err != nil {
			continue
		}
		e.snapshot[fd.Name] = buf
	}
	e.flagged = make(map[string]struct{})
	e.refs = make(map[string]*Entity)
	e.state = strata.Unchanged
}

func (e *Entity) isLoaded(name string) bool {
	_, ok := e.loaded[name]
	return ok
}

func (e *Entity) markLoaded(name string) { e.loaded[name] = struct{}{} }

func (e *Entity) keyHash() (string, error) { return e.Key().Hash() }
