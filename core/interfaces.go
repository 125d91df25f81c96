package core

import (
	"context"
	"net/http"
)

// User is a reference to an authenticated account, owned and resolved by
// the storage layer. The exposure layer only ever compares and forwards it.
type User interface {
	// Key is the stable identifier of the account
	Key() string
	// Active reports whether the account may log in and hold a session
	Active() bool
}

// Instance is one persisted record of a registered entity type.
//
// The storage layer owns the lifecycle; the exposure layer reads fields,
// asks the ownership predicate, and delegates updates. Deactivation is an
// update, never a deletion.
type Instance interface {
	// ID is the stable unique identifier within the entity type
	ID() string
	// Active reports whether the instance is live. Deactivated instances
	// serialize to null and disappear from list results.
	Active() bool
	// Field returns the named field value. The second return is false if
	// the instance does not carry the field at all.
	Field(name string) (interface{}, bool)
	// IsOwner is the entity-specific ownership predicate
	IsOwner(user User) bool
	// Update applies a modification request and returns the updated
	// instance, or ErrNotFound if the update is rejected. The caller
	// identity travels in the request context.
	Update(r *http.Request) (Instance, error)
}

// Hooks are the per-entity-type extension points resolved through the
// schema registry.
type Hooks interface {
	// Create builds a new instance from the request, or returns ErrNotFound
	// if the entity type does not support creation or rejects the payload.
	Create(r *http.Request) (Instance, error)
	// CustomRequest serves entity-specific routes that are neither a plain
	// get nor an update. segments holds the path segments after the
	// endpoint name. Returns ErrUnhandled if the hook does not recognize
	// the request.
	CustomRequest(r *http.Request, segments []string) (interface{}, error)
}

// Store is the opaque entity-storage API the exposure layer delegates to.
type Store interface {
	// Get returns the instance with the given id, or ErrNotFound
	Get(ctx context.Context, endpoint, id string) (Instance, error)
	// Query returns all instances of the endpoint in insertion order
	Query(ctx context.Context, endpoint string) ([]Instance, error)
	// Related resolves the relation edges of from towards the target
	// endpoint. For to-one kinds the result has at most one element.
	Related(ctx context.Context, endpoint string, from Instance, target string, kind RelationKind) ([]Instance, error)
}
