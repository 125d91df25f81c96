/*Package memstore is an in-memory implementation of the entity storage
API. It keeps instances per endpoint in insertion order and resolves
relations through explicit edge indexes. It is the store of choice for
tests and examples, and for small deployments that can afford to lose
state on restart.
*/
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/modelapi/modelapi/core"
)

// Store is an in-memory core.Store. All methods are go-routine safe.
type Store struct {
	mutex   sync.RWMutex
	buckets map[string]*bucket
	edges   map[edgeKey][]string
	reverse map[edgeKey][]string
}

type bucket struct {
	order []string
	byID  map[string]core.Instance
}

// edgeKey addresses all edges from one instance towards one endpoint
type edgeKey struct {
	endpoint string
	id       string
	other    string
}

// New creates an empty store
func New() *Store {
	return &Store{
		buckets: make(map[string]*bucket),
		edges:   make(map[edgeKey][]string),
		reverse: make(map[edgeKey][]string),
	}
}

// NewID returns a fresh unique instance identifier
func NewID() string {
	return uuid.New().String()
}

// Put inserts the instance under the endpoint, or replaces it if the id is
// already present. Insertion order is preserved and determines query order.
func (s *Store) Put(endpoint string, instance core.Instance) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.buckets[endpoint]
	if !ok {
		b = &bucket{byID: make(map[string]core.Instance)}
		s.buckets[endpoint] = b
	}
	id := instance.ID()
	if _, ok := b.byID[id]; !ok {
		b.order = append(b.order, id)
	}
	b.byID[id] = instance
}

// Link records a relation edge from one instance to another. The edge is
// indexed in both directions, so foreign-key and many-to-many kinds
// traverse it forward and reverse kinds traverse it backwards.
func (s *Store) Link(endpoint, id, targetEndpoint, targetID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	forward := edgeKey{endpoint: endpoint, id: id, other: targetEndpoint}
	s.edges[forward] = append(s.edges[forward], targetID)
	backward := edgeKey{endpoint: targetEndpoint, id: targetID, other: endpoint}
	s.reverse[backward] = append(s.reverse[backward], id)
}

// Get returns the instance with the given id, or ErrNotFound
func (s *Store) Get(ctx context.Context, endpoint, id string) (core.Instance, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	b, ok := s.buckets[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: no endpoint %s", core.ErrNotFound, endpoint)
	}
	instance, ok := b.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrNotFound, endpoint, id)
	}
	return instance, nil
}

// Query returns all instances of the endpoint in insertion order
func (s *Store) Query(ctx context.Context, endpoint string) ([]core.Instance, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	b, ok := s.buckets[endpoint]
	if !ok {
		return nil, nil
	}
	instances := make([]core.Instance, 0, len(b.order))
	for _, id := range b.order {
		instances = append(instances, b.byID[id])
	}
	return instances, nil
}

// Related resolves the relation edges of from towards the target endpoint
func (s *Store) Related(ctx context.Context, endpoint string, from core.Instance,
	target string, kind core.RelationKind) ([]core.Instance, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	key := edgeKey{endpoint: endpoint, id: from.ID(), other: target}
	var ids []string
	if kind == core.RelationReverse {
		ids = s.reverse[key]
	} else {
		ids = s.edges[key]
	}

	b, ok := s.buckets[target]
	if !ok {
		return nil, nil
	}
	var instances []core.Instance
	for _, id := range ids {
		if instance, ok := b.byID[id]; ok {
			instances = append(instances, instance)
		}
	}
	if !kind.ToMany() && len(instances) > 1 {
		instances = instances[:1]
	}
	return instances, nil
}
