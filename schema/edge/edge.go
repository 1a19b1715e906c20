// Package edge provides fluent builders for declaring relationships
// (navigations) between entity types.
//
// A relationship is declared on its owning side with To, and optionally
// mirrored on the dependent side with From:
//
//	edge.To("items", "OrderItem").Columns("order_id").OnDelete(edge.Cascade)
//	edge.From("order", "Order").Ref("items").Unique().Required()
package edge

// Kind is the resolved cardinality of a relationship.
type Kind uint8

// Relationship kinds.
const (
	O2O Kind = iota + 1 // one-to-one
	O2M                 // one-to-many
	M2O                 // many-to-one
	M2M                 // many-to-many
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	default:
		return "Invalid"
	}
}

// DeleteBehavior is the delete-propagation policy of a relationship:
// what happens to dependents when their principal is deleted.
type DeleteBehavior uint8

// Delete-propagation policies.
const (
	// NoAction leaves dependents untouched; the provider may still
	// reject the delete with its own constraint.
	NoAction DeleteBehavior = iota
	// Cascade deletes dependents together with the principal.
	Cascade
	// Restrict aborts the commit if live dependents remain.
	Restrict
	// SetNull nulls the dependents' foreign keys before the delete.
	SetNull
)

// String returns the policy name.
func (d DeleteBehavior) String() string {
	switch d {
	case Cascade:
		return "Cascade"
	case Restrict:
		return "Restrict"
	case SetNull:
		return "SetNull"
	default:
		return "NoAction"
	}
}

// LoadStrategy selects when a navigation's data is fetched. It is a closed
// enumeration consumed by the relationship materializer.
type LoadStrategy uint8

// Load strategies.
const (
	// ExplicitLoad requires a Load call before the navigation is readable.
	ExplicitLoad LoadStrategy = iota
	// EagerLoad includes the navigation with every query of the owner.
	EagerLoad
	// LazyLoad fetches the navigation on first access. Accessing a lazy
	// collection for each of N parents issues N loads; callers that need
	// the whole graph should prefer eager includes.
	LazyLoad
)

// String returns the strategy name.
func (s LoadStrategy) String() string {
	switch s {
	case EagerLoad:
		return "Eager"
	case LazyLoad:
		return "Lazy"
	default:
		return "Explicit"
	}
}

// A Descriptor for relationship configuration.
type Descriptor struct {
	Name     string         // navigation name
	Type     string         // target entity type name
	Inverse  bool           // declared with From (dependent side)
	Ref      string         // name of the forward navigation, for From
	Unique   bool           // to-one navigation
	Required bool           // non-nullable foreign key
	Columns  []string       // foreign-key property names on the dependent side
	Through  string         // join entity type, for many-to-many
	OnDelete DeleteBehavior // delete-propagation policy
	Strategy LoadStrategy   // load strategy
	Comment  string         // declaration comment
}

// Builder is the constructor of relationship descriptors.
type Builder struct {
	desc *Descriptor
}

// To declares a navigation from the owning side to the given target type.
func To(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: target}}
}

// From declares the inverse navigation on the dependent side. It must
// reference its forward counterpart with Ref.
func From(name, target string) *Builder {
	return &Builder{desc: &Descriptor{Name: name, Type: target, Inverse: true}}
}

// Ref names the forward navigation this inverse navigation mirrors.
func (b *Builder) Ref(name string) *Builder {
	b.desc.Ref = name
	return b
}

// Unique restricts the navigation to a single related entity.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Required marks the underlying foreign key non-nullable.
func (b *Builder) Required() *Builder {
	b.desc.Required = true
	return b
}

// Columns names the foreign-key properties on the dependent side, in key
// order. If omitted, the registry derives "<navigation>_<key>" names.
func (b *Builder) Columns(names ...string) *Builder {
	b.desc.Columns = names
	return b
}

// Through routes a many-to-many relationship over the given join entity.
func (b *Builder) Through(joinType string) *Builder {
	b.desc.Through = joinType
	return b
}

// OnDelete sets the delete-propagation policy.
func (b *Builder) OnDelete(d DeleteBehavior) *Builder {
	b.desc.OnDelete = d
	return b
}

// Loading sets the load strategy.
func (b *Builder) Loading(s LoadStrategy) *Builder {
	b.desc.Strategy = s
	return b
}

// Comment sets the declaration comment of the navigation.
func (b *Builder) Comment(c string) *Builder {
	b.desc.Comment = c
	return b
}

// Descriptor returns the built relationship descriptor.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
