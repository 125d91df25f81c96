package access

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/modelapi/modelapi/core"
)

// SessionCookie is the name of the cookie that carries the session token.
// For the benefit of simple frontend development the token is also
// accepted as "Authorization: Bearer" header.
const SessionCookie = "Modelapi-JWT"

// Authenticator is the opaque session/credential collaborator consumed by
// the dispatcher. It resolves credentials to a user reference, reads the
// caller identity off a request, and establishes or clears sessions.
type Authenticator interface {
	// Authenticate verifies the credentials and returns the user
	// reference, or ErrAuthenticationFailure
	Authenticate(ctx context.Context, username, password string) (core.User, error)
	// CurrentCaller returns the identity of the requester
	CurrentCaller(r *http.Request) Identity
	// EstablishSession attaches a session for the user to the response
	EstablishSession(w http.ResponseWriter, user core.User) error
	// ClearSession removes the session from the response
	ClearSession(w http.ResponseWriter, r *http.Request)
}

// UserSource resolves usernames and session subjects against the storage
// layer. Lookup additionally returns the bcrypt hash of the account's
// password for credential verification.
type UserSource interface {
	Lookup(ctx context.Context, username string) (user core.User, passwordHash string, err error)
	Resolve(ctx context.Context, key string) (core.User, error)
}

// SessionAuthenticatorBuilder is a builder helper for the SessionAuthenticator
type SessionAuthenticatorBuilder struct {
	// Users resolves accounts. This is mandatory.
	Users UserSource
	// Secret signs the session tokens. This is mandatory.
	Secret []byte
	// Lifetime of a session. Defaults to 24h.
	Lifetime time.Duration
}

// SessionAuthenticator is an Authenticator that verifies passwords with
// bcrypt and keeps sessions in a signed HS256 JWT cookie. The cookie is
// self-contained; no server-side session store is needed.
type SessionAuthenticator struct {
	users    UserSource
	secret   []byte
	lifetime time.Duration
	cache    *identityCache
}

// NewSessionAuthenticator realizes the authenticator
func NewSessionAuthenticator(sb *SessionAuthenticatorBuilder) *SessionAuthenticator {
	if sb.Users == nil {
		panic("Users is missing")
	}
	if len(sb.Secret) == 0 {
		panic("Secret is missing")
	}
	lifetime := sb.Lifetime
	if lifetime == 0 {
		lifetime = 24 * time.Hour
	}
	return &SessionAuthenticator{
		users:    sb.Users,
		secret:   sb.Secret,
		lifetime: lifetime,
		cache:    newIdentityCache(),
	}
}

// Authenticate verifies username and password. Unknown accounts, wrong
// passwords and inactive accounts all fail the same way, wrapped as
// ErrAuthenticationFailure.
func (s *SessionAuthenticator) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	user, hash, err := s.users.Lookup(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrAuthenticationFailure, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: wrong password", core.ErrAuthenticationFailure)
	}
	if !user.Active() {
		return nil, fmt.Errorf("%w: account inactive", core.ErrAuthenticationFailure)
	}
	return user, nil
}

// CurrentCaller returns the identity for the session token in the request,
// or the anonymous identity if there is no valid session. An identity
// already present in the request context wins; this lets in-process
// clients and tests inject callers without a token.
func (s *SessionAuthenticator) CurrentCaller(r *http.Request) Identity {
	if identity := IdentityFromContext(r.Context()); identity.Authenticated() {
		return identity
	}

	tokenString := ""
	bearer := r.Header.Get("Authorization")
	if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
		tokenString = bearer[7:]
	} else if cookie, _ := r.Cookie(SessionCookie); cookie != nil {
		tokenString = cookie.Value
	}
	if len(tokenString) == 0 {
		return Anonymous()
	}

	if identity, ok := s.cache.read(tokenString); ok {
		return identity
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Anonymous()
	}

	user, err := s.users.Resolve(r.Context(), claims.Subject)
	if err != nil || !user.Active() {
		return Anonymous()
	}

	identity := Authenticated(user)
	s.cache.write(tokenString, identity)
	return identity
}

// EstablishSession sets the session cookie for the user
func (s *SessionAuthenticator) EstablishSession(w http.ResponseWriter, user core.User) error {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.Key(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrAuthenticationFailure, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    tokenString,
		Path:     "/",
		Expires:  now.Add(s.lifetime),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSession expires the session cookie
func (s *SessionAuthenticator) ClearSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// identityCache is an in-memory cache for resolved session tokens. The
// purpose of the cache is to reduce the number of storage lookups; without
// it the authenticator would have to resolve the user for every single
// request.
type identityCache struct {
	mutex sync.RWMutex
	cache map[string]Identity
}

func newIdentityCache() *identityCache {
	return &identityCache{cache: make(map[string]Identity)}
}

// read returns an identity from in-process cache. Token should be the
// session token the identity was derived from, not the user key.
// This function is go-routine safe
func (c *identityCache) read(token string) (Identity, bool) {
	c.mutex.RLock()
	identity, ok := c.cache[token]
	c.mutex.RUnlock()
	return identity, ok
}

// write stores an identity in the in-memory cache.
// This function is go-routine safe
func (c *identityCache) write(token string, identity Identity) {
	c.mutex.Lock()
	c.cache[token] = identity
	c.mutex.Unlock()
}
