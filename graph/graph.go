// Package graph provides the model registry: the resolved, immutable
// description of entity types, their properties, keys and relationships.
//
// A Graph is built once at startup from declarations and finalized:
//
//	g := graph.New()
//	g.Register("User",
//		field.Int64("id").Key().ServerDefault(),
//		field.String("email").Unique(),
//	)
//	g.Register("Post",
//		field.Int64("id").Key().ServerDefault(),
//		field.Int64("author_id"),
//	)
//	g.Relate("User", edge.To("posts", "Post").Columns("author_id"))
//	g.Relate("Post", edge.From("author", "User").Ref("posts").Unique().Required())
//	if err := g.Finalize(); err != nil { ... }
//
// Relationships are declared on the principal (key-owning) side with edge.To;
// the dependent side mirrors them with edge.From. After Finalize the graph is
// read-only and safe for concurrent use.
package graph

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata"
	"github.com/syssam/strata/querylanguage"
	"github.com/syssam/strata/schema/edge"
	"github.com/syssam/strata/schema/field"
)

// EntityType is the resolved metadata of one registered entity.
type EntityType struct {
	Name          string              // registered name, e.g. "User"
	Label         string              // snake_case name, e.g. "user"
	Table         string              // pluralized label, e.g. "users"
	Properties    []*field.Descriptor // all properties, in declaration order
	Keys          []*field.Descriptor // key properties, in declaration order
	Relationships []*Relationship     // navigations declared on this type

	props map[string]*field.Descriptor
	rels  map[string]*Relationship
}

// Property returns the property with the given name, or nil.
func (e *EntityType) Property(name string) *field.Descriptor {
	return e.props[name]
}

// Relationship returns the navigation with the given name, or nil.
func (e *EntityType) Relationship(name string) *Relationship {
	return e.rels[name]
}

// KeyOf extracts the key tuple from a property-value map, in declared
// key-property order.
func (e *EntityType) KeyOf(values map[string]strata.Value) Key {
	k := make(Key, len(e.Keys))
	for i, p := range e.Keys {
		k[i] = values[p.Name]
	}
	return k
}

// Relationship is a resolved navigation between two entity types.
//
// Principal is the key-owning side and Dependent the foreign-key-owning side.
// For a many-to-many navigation the foreign keys live on the join entity, and
// JoinSource/JoinTarget name the join entity's navigations back to the two
// sides.
type Relationship struct {
	Name       string
	Kind       edge.Kind
	Owner      *EntityType // type the navigation is declared on
	Target     *EntityType // navigation target type
	Principal  *EntityType
	Dependent  *EntityType
	Inverse    bool
	Ref        *Relationship       // the paired navigation on the other side, if declared
	Unique     bool                // to-one navigation
	Required   bool                // foreign key is non-nullable
	Columns    []*field.Descriptor // foreign-key properties on Dependent (nil for M2M)
	Through    *EntityType         // join entity, for M2M
	JoinSource *Relationship       // join entity navigation to Owner, for M2M
	JoinTarget *Relationship       // join entity navigation to Target, for M2M
	OnDelete   edge.DeleteBehavior
	Strategy   edge.LoadStrategy
	Comment    string
}

// Key is the ordered tuple of key-property values identifying one entity.
// Equality is structural and order-sensitive.
type Key []strata.Value

// Hash returns the canonical encoding of the key tuple, usable as a map key.
func (k Key) Hash() (string, error) {
	buf, err := msgpack.Marshal([]strata.Value(k))
	if err != nil {
		return "", fmt.Errorf("hashing key: %w", err)
	}
	return string(buf), nil
}

// String formats the key for error messages. Single-property keys print as
// the bare value.
func (k Key) String() string {
	if len(k) == 1 {
		return fmt.Sprint(k[0])
	}
	parts := make([]string, len(k))
	for i := range k {
		parts[i] = fmt.Sprint(k[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Graph is the model registry. It is mutable until Finalize and read-only
// afterwards.
type Graph struct {
	types     map[string]*EntityType
	order     []string
	pending   map[string][]*edge.Descriptor
	filters   map[string]querylanguage.P
	warnings  []string
	finalized bool
}

// New returns an empty registry.
func New() *Graph {
	return &Graph{
		types:   make(map[string]*EntityType),
		pending: make(map[string][]*edge.Descriptor),
		filters: make(map[string]querylanguage.P),
	}
}

// Register declares an entity type with its properties.
func (g *Graph) Register(name string, fields ...*field.Builder) error {
	if g.finalized {
		return strata.NewConfigurationError("registry is finalized")
	}
	if _, ok := g.types[name]; ok {
		return strata.NewConfigurationError("entity %q already registered", name)
	}
	label := inflect.Underscore(name)
	et := &EntityType{
		Name:  name,
		Label: label,
		Table: inflect.Pluralize(label),
		props: make(map[string]*field.Descriptor),
	}
	for _, fb := range fields {
		fd := fb.Descriptor()
		if !fd.Type.Valid() {
			return strata.NewConfigurationError("entity %q: property %q has invalid type", name, fd.Name)
		}
		if fd.Type == field.TypeEnum && len(fd.Values) == 0 {
			return strata.NewConfigurationError("entity %q: enum property %q has no values", name, fd.Name)
		}
		if _, ok := et.props[fd.Name]; ok {
			return strata.NewConfigurationError("entity %q: duplicate property %q", name, fd.Name)
		}
		et.props[fd.Name] = fd
		et.Properties = append(et.Properties, fd)
		if fd.Key {
			et.Keys = append(et.Keys, fd)
		}
	}
	if len(et.Keys) == 0 {
		return strata.NewConfigurationError("entity %q has no key property", name)
	}
	g.types[name] = et
	g.order = append(g.order, name)
	return nil
}

// Relate declares navigations on a registered entity. Resolution and
// validation are deferred to Finalize, so declaration order does not matter.
func (g *Graph) Relate(owner string, edges ...*edge.Builder) error {
	if g.finalized {
		return strata.NewConfigurationError("registry is finalized")
	}
	if _, ok := g.types[owner]; !ok {
		return strata.NewConfigurationError("unknown entity %q", owner)
	}
	for _, eb := range edges {
		g.pending[owner] = append(g.pending[owner], eb.Descriptor())
	}
	return nil
}

// AddFilter declares a global query filter for the entity. Multiple filters
// on the same entity are conjoined. Filters apply at the root of a query plan
// only; they do not cascade into included navigation loads.
func (g *Graph) AddFilter(entity string, p querylanguage.P) error {
	if g.finalized {
		return strata.NewConfigurationError("registry is finalized")
	}
	if _, ok := g.types[entity]; !ok {
		return strata.NewConfigurationError("unknown entity %q", entity)
	}
	if prev, ok := g.filters[entity]; ok {
		p = querylanguage.And(prev, p)
	}
	g.filters[entity] = p
	return nil
}

// Filter returns the global query filter of the entity, or nil.
func (g *Graph) Filter(entity string) querylanguage.P {
	return g.filters[entity]
}

// Entity returns the entity type with the given name.
func (g *Graph) Entity(name string) (*EntityType, error) {
	et, ok := g.types[name]
	if !ok {
		return nil, strata.NewConfigurationError("unknown entity %q", name)
	}
	return et, nil
}

// Entities returns all entity types in registration order.
func (g *Graph) Entities() []*EntityType {
	out := make([]*EntityType, len(g.order))
	for i, name := range g.order {
		out[i] = g.types[name]
	}
	return out
}

// Warnings returns informational findings from Finalize, such as schema-level
// required-cascade cycles. Runtime object graphs may still cycle regardless.
func (g *Graph) Warnings() []string {
	return g.warnings
}

// Finalize resolves all declared navigations, validates the model and seals
// the registry. After a successful Finalize the graph is read-only.
func (g *Graph) Finalize() error {
	if g.finalized {
		return strata.NewConfigurationError("registry is finalized")
	}
	// Forward navigations first: inverses resolve against them.
	for _, name := range g.order {
		for _, ed := range g.pending[name] {
			if ed.Inverse {
				continue
			}
			if err := g.resolveForward(g.types[name], ed); err != nil {
				return err
			}
		}
	}
	for _, name := range g.order {
		for _, ed := range g.pending[name] {
			if !ed.Inverse {
				continue
			}
			if err := g.resolveInverse(g.types[name], ed); err != nil {
				return err
			}
		}
	}
	// Forward M2M joins resolve against the join entity's inverses; the M2M
	// inverses then mirror their forward side.
	for _, inverse := range []bool{false, true} {
		for _, name := range g.order {
			for _, rel := range g.types[name].Relationships {
				if rel.Kind == edge.M2M && rel.Inverse == inverse {
					if err := g.resolveJoin(rel); err != nil {
						return err
					}
				}
			}
		}
	}
	if err := g.checkConflicts(); err != nil {
		return err
	}
	g.detectRequiredCascadeCycles()
	g.pending = nil
	g.finalized = true
	return nil
}

func (g *Graph) resolveForward(owner *EntityType, ed *edge.Descriptor) error {
	target, ok := g.types[ed.Type]
	if !ok {
		return strata.NewConfigurationError("entity %q: navigation %q targets unknown entity %q", owner.Name, ed.Name, ed.Type)
	}
	rel := &Relationship{
		Name:      ed.Name,
		Owner:     owner,
		Target:    target,
		Unique:    ed.Unique,
		Required:  ed.Required,
		OnDelete:  ed.OnDelete,
		Strategy:  ed.Strategy,
		Comment:   ed.Comment,
		Principal: owner,
		Dependent: target,
	}
	switch {
	case ed.Through != "":
		through, ok := g.types[ed.Through]
		if !ok {
			return strata.NewConfigurationError("entity %q: navigation %q goes through unknown entity %q", owner.Name, ed.Name, ed.Through)
		}
		rel.Kind = edge.M2M
		rel.Through = through
		rel.Dependent = through
	case ed.Unique:
		rel.Kind = edge.O2O
	default:
		rel.Kind = edge.O2M
	}
	if rel.Kind != edge.M2M {
		cols, err := g.resolveColumns(rel, target, ed.Columns)
		if err != nil {
			return err
		}
		rel.Columns = cols
	}
	return g.addRelationship(owner, rel)
}

func (g *Graph) resolveInverse(owner *EntityType, ed *edge.Descriptor) error {
	target, ok := g.types[ed.Type]
	if !ok {
		return strata.NewConfigurationError("entity %q: navigation %q targets unknown entity %q", owner.Name, ed.Name, ed.Type)
	}
	if ed.Ref == "" {
		return strata.NewConfigurationError("entity %q: inverse navigation %q has no reference", owner.Name, ed.Name)
	}
	ref := target.Relationship(ed.Ref)
	if ref == nil || ref.Inverse {
		return strata.NewConfigurationError("entity %q: inverse navigation %q references unknown navigation %q on %q", owner.Name, ed.Name, ed.Ref, target.Name)
	}
	if ref.Target != owner {
		return strata.NewConfigurationError("entity %q: inverse navigation %q references %q.%q, which targets %q", owner.Name, ed.Name, target.Name, ed.Ref, ref.Target.Name)
	}
	if ref.Ref != nil {
		return strata.NewConfigurationError("entity %q: navigation %q is already referenced by %q.%q", target.Name, ed.Ref, ref.Ref.Owner.Name, ref.Ref.Name)
	}
	rel := &Relationship{
		Name:      ed.Name,
		Owner:     owner,
		Target:    target,
		Inverse:   true,
		Ref:       ref,
		Unique:    ed.Unique,
		Required:  ed.Required || ref.Required,
		OnDelete:  ref.OnDelete,
		Strategy:  ed.Strategy,
		Comment:   ed.Comment,
		Principal: ref.Principal,
		Dependent: ref.Dependent,
		Columns:   ref.Columns,
		Through:   ref.Through,
	}
	switch ref.Kind {
	case edge.O2O:
		if !ed.Unique {
			return strata.NewConfigurationError("entity %q: inverse navigation %q of one-to-one %q.%q must be unique", owner.Name, ed.Name, target.Name, ed.Ref)
		}
		rel.Kind = edge.O2O
	case edge.O2M:
		if !ed.Unique {
			return strata.NewConfigurationError("entity %q: inverse navigation %q of one-to-many %q.%q must be unique", owner.Name, ed.Name, target.Name, ed.Ref)
		}
		rel.Kind = edge.M2O
	case edge.M2M:
		if ed.Unique {
			return strata.NewConfigurationError("entity %q: inverse navigation %q of many-to-many %q.%q cannot be unique", owner.Name, ed.Name, target.Name, ed.Ref)
		}
		rel.Kind = edge.M2M
	}
	ref.Ref = rel
	// Requiredness declared on either side binds the shared foreign key.
	ref.Required = rel.Required
	if rel.Required {
		for _, c := range rel.Columns {
			if c.Nillable {
				return strata.NewConfigurationError("entity %q: required navigation %q uses nillable foreign key %q.%q", owner.Name, ed.Name, rel.Dependent.Name, c.Name)
			}
		}
	}
	return g.addRelationship(owner, rel)
}

// resolveColumns resolves the foreign-key properties of a non-M2M
// relationship on the dependent type. Missing declarations default to
// "<principal label>_<key property>".
func (g *Graph) resolveColumns(rel *Relationship, dependent *EntityType, names []string) ([]*field.Descriptor, error) {
	if len(names) == 0 {
		names = make([]string, len(rel.Principal.Keys))
		for i, kp := range rel.Principal.Keys {
			names[i] = rel.Principal.Label + "_" + kp.Name
		}
	}
	if len(names) != len(rel.Principal.Keys) {
		return nil, strata.NewConfigurationError(
			"entity %q: navigation %q declares %d foreign-key properties for a %d-property key",
			rel.Owner.Name, rel.Name, len(names), len(rel.Principal.Keys))
	}
	cols := make([]*field.Descriptor, len(names))
	for i, n := range names {
		fd := dependent.Property(n)
		if fd == nil {
			return nil, strata.NewConfigurationError(
				"entity %q: navigation %q references missing foreign-key property %q",
				rel.Owner.Name, rel.Name, dependent.Name+"."+n)
		}
		if !fd.Type.Compatible(rel.Principal.Keys[i].Type) {
			return nil, strata.NewConfigurationError(
				"entity %q: navigation %q: foreign key %q.%q (%s) is incompatible with key %q.%q (%s)",
				rel.Owner.Name, rel.Name, dependent.Name, n, fd.Type,
				rel.Principal.Name, rel.Principal.Keys[i].Name, rel.Principal.Keys[i].Type)
		}
		if rel.Required && fd.Nillable {
			return nil, strata.NewConfigurationError(
				"entity %q: required navigation %q uses nillable foreign key %q.%q",
				rel.Owner.Name, rel.Name, dependent.Name, n)
		}
		if rel.OnDelete == edge.SetNull && !fd.Nillable {
			return nil, strata.NewConfigurationError(
				"entity %q: set-null navigation %q uses non-nillable foreign key %q.%q",
				rel.Owner.Name, rel.Name, dependent.Name, n)
		}
		cols[i] = fd
	}
	return cols, nil
}

// resolveJoin binds a many-to-many relationship to the join entity's
// navigations back to its two sides.
func (g *Graph) resolveJoin(rel *Relationship) error {
	if rel.Inverse {
		rel.JoinSource = rel.Ref.JoinTarget
		rel.JoinTarget = rel.Ref.JoinSource
		return nil
	}
	var source, target *Relationship
	for _, jr := range rel.Through.Relationships {
		if !jr.Unique {
			continue
		}
		if jr.Target == rel.Owner && source == nil {
			source = jr
		} else if jr.Target == rel.Target && target == nil {
			target = jr
		}
	}
	if source == nil || target == nil {
		return strata.NewConfigurationError(
			"entity %q: navigation %q: join entity %q must declare unique navigations to both %q and %q",
			rel.Owner.Name, rel.Name, rel.Through.Name, rel.Owner.Name, rel.Target.Name)
	}
	rel.JoinSource = source
	rel.JoinTarget = target
	return nil
}

func (g *Graph) addRelationship(owner *EntityType, rel *Relationship) error {
	if owner.rels == nil {
		owner.rels = make(map[string]*Relationship)
	}
	if owner.Property(rel.Name) != nil {
		return strata.NewConfigurationError("entity %q: navigation %q collides with a property", owner.Name, rel.Name)
	}
	if _, ok := owner.rels[rel.Name]; ok {
		return strata.NewConfigurationError("entity %q: duplicate navigation %q", owner.Name, rel.Name)
	}
	owner.rels[rel.Name] = rel
	owner.Relationships = append(owner.Relationships, rel)
	return nil
}

// checkConflicts rejects two distinct relationships claiming the same
// foreign-key property set between the same pair of types.
func (g *Graph) checkConflicts() error {
	seen := make(map[string]*Relationship)
	for _, name := range g.order {
		for _, rel := range g.types[name].Relationships {
			if rel.Inverse || rel.Kind == edge.M2M {
				continue
			}
			cols := make([]string, len(rel.Columns))
			for i, c := range rel.Columns {
				cols[i] = c.Name
			}
			key := rel.Dependent.Name + "/" + strings.Join(cols, ",")
			if prev, ok := seen[key]; ok {
				return strata.NewConfigurationError(
					"conflicting navigations %q.%q and %q.%q share foreign key %s on %q",
					prev.Owner.Name, prev.Name, rel.Owner.Name, rel.Name,
					strings.Join(cols, ","), rel.Dependent.Name)
			}
			seen[key] = rel
		}
	}
	return nil
}

// detectRequiredCascadeCycles records a warning for each schema-level cycle
// over required cascade relationships. Such a cycle makes it possible for a
// single cascade delete to revisit its own type; it is reported rather than
// rejected because runtime data may never form the loop.
func (g *Graph) detectRequiredCascadeCycles() {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int)
	// principal -> dependents over required cascade edges
	next := func(name string) []string {
		var out []string
		for _, rel := range g.types[name].Relationships {
			if !rel.Inverse && rel.Required && rel.OnDelete == edge.Cascade {
				out = append(out, rel.Dependent.Name)
			}
		}
		return out
	}
	var path []string
	var visit func(string)
	visit = func(name string) {
		color[name] = gray
		path = append(path, name)
		for _, dep := range next(name) {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				g.warnings = append(g.warnings,
					fmt.Sprintf("required cascade cycle: %s", strings.Join(cycle, " -> ")))
			}
		}
		path = path[:len(path)-1]
		color[name] = black
	}
	for _, name := range g.order {
		if color[name] == white {
			visit(name)
		}
	}
}
