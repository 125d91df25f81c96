/*Package dictify converts entity instances into nested JSON-compatible
mappings ("dictification").

The serializer walks the short or long field list of the entity type in
declared order, includes a plain field only if the caller's visibility
tier permits it, and recurses into relations with the depth encoded in
the relation descriptor. Visibility of related instances is recomputed
per instance with that instance's own ownership predicate; it is never
inherited from the parent.

A visited set scoped to one top-level call guards against cyclic object
graphs: a relation pointing back to an instance on the current recursion
path serializes as a minimal id-only reference. The same instance may
still appear fully serialized in sibling branches.
*/
package dictify

import (
	"context"
	"fmt"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
	"github.com/modelapi/modelapi/core/schema"
)

// Serializer dictifies instances of registered entity types. It is
// stateless and safe for concurrent use; the cycle-detection set is
// allocated per call.
type Serializer struct {
	registry *schema.Registry
	store    core.Store
}

// New creates a serializer for the given registry and store
func New(registry *schema.Registry, store core.Store) *Serializer {
	return &Serializer{registry: registry, store: store}
}

// Dictify serializes the instance at the requested depth for the given
// caller. A deactivated instance dictifies to nil, which marshals to JSON
// null. Field-level visibility denial is silent omission, never an error;
// errors only report schema misconfiguration or storage failures.
func (s *Serializer) Dictify(ctx context.Context, endpoint string, instance core.Instance,
	depth core.Depth, caller access.Identity) (map[string]interface{}, error) {
	return s.dictify(ctx, endpoint, instance, depth, caller, map[string]bool{})
}

func (s *Serializer) dictify(ctx context.Context, endpoint string, instance core.Instance,
	depth core.Depth, caller access.Identity, visited map[string]bool) (map[string]interface{}, error) {

	if instance == nil || !instance.Active() {
		return nil, nil
	}
	entity, err := s.registry.Resolve(endpoint)
	if err != nil {
		return nil, err
	}

	tier := access.EffectiveTier(caller, instance)

	key := identityKey(endpoint, instance)
	visited[key] = true
	defer delete(visited, key)

	result := map[string]interface{}{}
	for _, field := range entity.Fields(depth) {
		if entity.TierOf(field.Name) > tier {
			continue
		}
		if field.Relation == nil {
			value, ok := instance.Field(field.Name)
			if !ok {
				result[field.Name] = nil
				continue
			}
			result[field.Name] = value
			continue
		}

		rel := field.Relation
		related, err := s.store.Related(ctx, endpoint, instance, rel.Target, rel.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: relation %s of %s: %s", core.ErrStorageFailure, rel.Name, endpoint, err)
		}
		if rel.Kind.ToMany() {
			views := make([]interface{}, 0, len(related))
			for _, r := range related {
				view, err := s.nested(ctx, rel, r, caller, visited)
				if err != nil {
					return nil, err
				}
				views = append(views, view)
			}
			result[rel.Name] = views
		} else {
			if len(related) == 0 {
				result[rel.Name] = nil
				continue
			}
			view, err := s.nested(ctx, rel, related[0], caller, visited)
			if err != nil {
				return nil, err
			}
			result[rel.Name] = view
		}
	}
	return result, nil
}

// nested serializes one related instance with the relation's depth. An
// instance already on the recursion path becomes an id-only reference.
func (s *Serializer) nested(ctx context.Context, rel *schema.Relation, instance core.Instance,
	caller access.Identity, visited map[string]bool) (interface{}, error) {

	if instance == nil || !instance.Active() {
		return nil, nil
	}
	if visited[identityKey(rel.Target, instance)] {
		return map[string]interface{}{"id": instance.ID()}, nil
	}
	view, err := s.dictify(ctx, rel.Target, instance, rel.Depth, caller, visited)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, nil
	}
	return view, nil
}

func identityKey(endpoint string, instance core.Instance) string {
	return endpoint + ":" + instance.ID()
}
