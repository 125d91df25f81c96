/*Package schema holds the static per-entity-type metadata: field
visibility tiers, the short and long field lists, relation descriptors,
and the registry that maps endpoint names to entity types.

The schema is defined at process configuration time and is immutable
thereafter; reads need no synchronization.
*/
package schema

import (
	"fmt"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
)

// Relation describes an edge to another entity type. Relations are
// explicit values attached to the schema at configuration time; the
// serializer never parses naming conventions.
type Relation struct {
	// Name is the JSON key the relation serializes under
	Name string
	// Kind determines resolution and fan-out
	Kind core.RelationKind
	// Target is the endpoint name of the related entity type
	Target string
	// Depth is the serialization depth applied to the related instances
	Depth core.Depth
}

// Field is one entry of a short or long field list: either a plain field
// or a relation.
type Field struct {
	// Name is the JSON key. For relations it equals Relation.Name.
	Name string
	// Relation is nil for plain fields
	Relation *Relation
}

// Plain returns a plain field descriptor
func Plain(name string) Field {
	return Field{Name: name}
}

// Related returns a relation field descriptor
func Related(rel Relation) Field {
	return Field{Name: rel.Name, Relation: &rel}
}

// Descriptor is the registered metadata of one entity type.
type Descriptor struct {
	// Endpoint is the URL key of the entity type
	Endpoint string

	// The three disjoint visibility sets, ascending privilege. A field
	// that appears in none of them requires TierRegisteredUser; only
	// explicitly public and explicitly owner-only fields deviate from
	// that default.
	PublicFields         []string
	RegisteredUserFields []string
	OwnerOnlyFields      []string

	// ShortFields is the bounded view, LongFields the extended view.
	// Every short field must also be part of the long view.
	ShortFields []Field
	LongFields  []Field

	// SchemaID optionally names a JSON schema that create and update
	// payloads must validate against
	SchemaID string
}

// TierOf returns the visibility tier the field requires
func (d *Descriptor) TierOf(field string) access.Tier {
	for _, f := range d.PublicFields {
		if f == field {
			return access.TierPublic
		}
	}
	for _, f := range d.OwnerOnlyFields {
		if f == field {
			return access.TierOwner
		}
	}
	return access.TierRegisteredUser
}

// Fields returns the field list for the requested depth, in declared order
func (d *Descriptor) Fields(depth core.Depth) []Field {
	if depth == core.DepthShort {
		return d.ShortFields
	}
	return d.LongFields
}

// check validates the descriptor invariants
func (d *Descriptor) check() error {
	if d.Endpoint == "" {
		return fmt.Errorf("descriptor lacks endpoint name")
	}
	long := map[string]bool{}
	for _, f := range d.LongFields {
		long[f.Name] = true
	}
	for _, f := range d.ShortFields {
		if !long[f.Name] {
			return fmt.Errorf("endpoint %s: short field %s is not part of the long view", d.Endpoint, f.Name)
		}
	}
	return nil
}

// EntityType is a registered entity: its descriptor plus the per-type
// extension hooks.
type EntityType struct {
	*Descriptor
	Hooks core.Hooks
}

// Registry maps endpoint names to entity types.
type Registry struct {
	types map[string]*EntityType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register binds the descriptor's endpoint name to the entity type.
// It returns ErrDuplicateEndpoint if the name is already bound, or an
// error if the descriptor violates its invariants.
func (r *Registry) Register(desc *Descriptor, hooks core.Hooks) error {
	if err := desc.check(); err != nil {
		return err
	}
	if _, ok := r.types[desc.Endpoint]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicateEndpoint, desc.Endpoint)
	}
	r.types[desc.Endpoint] = &EntityType{Descriptor: desc, Hooks: hooks}
	return nil
}

// MustRegister is Register for configuration time; it panics on error
func (r *Registry) MustRegister(desc *Descriptor, hooks core.Hooks) {
	if err := r.Register(desc, hooks); err != nil {
		panic(fmt.Errorf("invalid configuration: %s", err))
	}
}

// Resolve returns the entity type for the endpoint name, or ErrNotFound
func (r *Registry) Resolve(endpoint string) (*EntityType, error) {
	entity, ok := r.types[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: no endpoint %s", core.ErrNotFound, endpoint)
	}
	return entity, nil
}

// Endpoints returns all registered endpoint names
func (r *Registry) Endpoints() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}
