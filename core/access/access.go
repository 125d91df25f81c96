/*Package access provides utilities for access control
 */
package access

import (
	"context"

	"github.com/modelapi/modelapi/core"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyIdentity contextKey = "_identity_"
)

// Tier is a field-visibility tier. Tiers are ordered: Public <
// RegisteredUser < Owner. A caller is granted the highest tier it
// qualifies for, and a field is included in a serialization only if its
// required tier does not exceed the granted one.
type Tier int

// the three visibility tiers, ascending privilege
const (
	TierPublic Tier = iota + 1
	TierRegisteredUser
	TierOwner
)

func (t Tier) String() string {
	switch t {
	case TierPublic:
		return "public"
	case TierRegisteredUser:
		return "registered-user"
	case TierOwner:
		return "owner"
	}
	return "unknown"
}

/*Identity is the caller identity of a request: either anonymous or an
authenticated user reference.

Identities are added to a request context with

  ctx = identity.ContextWithIdentity(ctx)

and retrieved with

  identity := IdentityFromContext(ctx)

The dispatcher adds the identity to the context after consulting the
authenticator, so that per-entity hooks can read it from the request.
*/
type Identity struct {
	user core.User
}

// Anonymous returns the identity of an unauthenticated caller
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns the identity for the given user reference. A nil
// user yields the anonymous identity.
func Authenticated(user core.User) Identity {
	return Identity{user: user}
}

// Authenticated reports whether the caller is a logged-in user
func (i Identity) Authenticated() bool {
	return i.user != nil
}

// User returns the authenticated user reference, or nil for anonymous callers
func (i Identity) User() core.User {
	return i.user
}

// EffectiveTier computes the visibility tier the caller is entitled to for
// one particular instance. Anonymous callers get TierPublic; authenticated
// callers get TierOwner if the instance's ownership predicate accepts
// them, otherwise TierRegisteredUser.
func EffectiveTier(caller Identity, instance core.Instance) Tier {
	if !caller.Authenticated() {
		return TierPublic
	}
	if instance != nil && instance.IsOwner(caller.user) {
		return TierOwner
	}
	return TierRegisteredUser
}

// ContextWithIdentity returns a new context with this identity added to it
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves the caller identity from the context. If
// no identity was added, the anonymous identity is returned.
func IdentityFromContext(ctx context.Context) Identity {
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	if ok {
		return identity
	}
	return Anonymous()
}
