package backend

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
	"github.com/modelapi/modelapi/core/model"
	"github.com/modelapi/modelapi/core/schema"
	"github.com/modelapi/modelapi/store/memstore"
)

// The test schema is a small publishing domain: profiles own articles,
// posts have comments, digests bundle articles and serve custom requests.

type testUser struct {
	key    string
	active bool
	hash   string
}

func (u *testUser) Key() string  { return u.key }
func (u *testUser) Active() bool { return u.active }

type userSource struct {
	users map[string]*testUser
}

func (s *userSource) Lookup(ctx context.Context, username string) (core.User, string, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, "", fmt.Errorf("no such user %s", username)
	}
	return u, u.hash, nil
}

func (s *userSource) Resolve(ctx context.Context, key string) (core.User, error) {
	u, ok := s.users[key]
	if !ok {
		return nil, fmt.Errorf("no such user %s", key)
	}
	return u, nil
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// profile is the account-facing entity; it is read-only through the API
type profile struct {
	model.Base
	id       string
	ownerKey string
}

func (p *profile) ID() string { return p.id }

func (p *profile) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return p.id, true
	}
	return p.BaseField(name)
}

func (p *profile) IsOwner(user core.User) bool {
	return user != nil && user.Key() == p.ownerKey
}

func (p *profile) Update(r *http.Request) (core.Instance, error) {
	return model.DefaultUpdate(r, &p.Base, p)
}

type profileHooks struct{}

func (profileHooks) Create(r *http.Request) (core.Instance, error) {
	return nil, core.ErrNotFound
}

func (profileHooks) CustomRequest(r *http.Request, segments []string) (interface{}, error) {
	return nil, core.ErrUnhandled
}

// article is singly owned; rating is registered-user visible, notes are
// owner-only
type article struct {
	model.Base
	id       string
	ownerKey string
	rating   int
	notes    string
}

func (a *article) ID() string { return a.id }

func (a *article) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return a.id, true
	case "rating":
		return a.rating, true
	case "notes":
		return a.notes, true
	}
	return a.BaseField(name)
}

func (a *article) IsOwner(user core.User) bool {
	return user != nil && user.Key() == a.ownerKey
}

func (a *article) Update(r *http.Request) (core.Instance, error) {
	caller := access.IdentityFromContext(r.Context())
	if !caller.Authenticated() || !a.IsOwner(caller.User()) {
		return nil, core.ErrNotFound
	}
	if _, ok := model.Param(r, "bump"); ok {
		a.rating++
	}
	return model.DefaultUpdate(r, &a.Base, a)
}

type articleHooks struct {
	store    *memstore.Store
	profiles map[string]string // user key -> profile id
}

func (h articleHooks) Create(r *http.Request) (core.Instance, error) {
	caller := access.IdentityFromContext(r.Context())
	if !caller.Authenticated() {
		return nil, core.ErrNotFound
	}
	notes, _ := model.Param(r, "notes")
	a := &article{
		id:       memstore.NewID(),
		ownerKey: caller.User().Key(),
		rating:   1,
		notes:    notes,
	}
	h.store.Put("article", a)
	if profileID, ok := h.profiles[a.ownerKey]; ok {
		h.store.Link("article", a.id, "profile", profileID)
	}
	return a, nil
}

func (h articleHooks) CustomRequest(r *http.Request, segments []string) (interface{}, error) {
	return nil, core.ErrUnhandled
}

// post and comment are unowned; every registered user passes the
// ownership predicate
type post struct {
	model.Base
	id     string
	rating int
}

func (p *post) ID() string { return p.id }

func (p *post) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return p.id, true
	case "rating":
		return p.rating, true
	}
	return p.BaseField(name)
}

func (p *post) IsOwner(user core.User) bool { return true }

func (p *post) Update(r *http.Request) (core.Instance, error) {
	if _, ok := model.Param(r, "bump"); ok {
		p.rating++
	}
	return model.DefaultUpdate(r, &p.Base, p)
}

type postHooks struct {
	store *memstore.Store
}

func (h postHooks) Create(r *http.Request) (core.Instance, error) {
	p := &post{id: memstore.NewID(), rating: 1}
	h.store.Put("post", p)
	return p, nil
}

func (h postHooks) CustomRequest(r *http.Request, segments []string) (interface{}, error) {
	return nil, core.ErrUnhandled
}

type comment struct {
	model.Base
	id     string
	rating int
}

func (c *comment) ID() string { return c.id }

func (c *comment) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return c.id, true
	case "rating":
		return c.rating, true
	}
	return c.BaseField(name)
}

func (c *comment) IsOwner(user core.User) bool { return true }

func (c *comment) Update(r *http.Request) (core.Instance, error) {
	if _, ok := model.Param(r, "bump"); ok {
		c.rating++
	}
	return model.DefaultUpdate(r, &c.Base, c)
}

type commentHooks struct {
	store *memstore.Store
}

func (h commentHooks) Create(r *http.Request) (core.Instance, error) {
	c := &comment{id: memstore.NewID(), rating: 1}
	h.store.Put("comment", c)
	if postID, ok := model.Param(r, "post"); ok {
		h.store.Link("comment", c.id, "post", postID)
	}
	return c, nil
}

func (h commentHooks) CustomRequest(r *http.Request, segments []string) (interface{}, error) {
	return nil, core.ErrUnhandled
}

// digest bundles articles and serves custom requests
type digest struct {
	model.Base
	id string
}

func (d *digest) ID() string { return d.id }

func (d *digest) Field(name string) (interface{}, bool) {
	switch name {
	case "id":
		return d.id, true
	}
	return d.BaseField(name)
}

func (d *digest) IsOwner(user core.User) bool { return true }

func (d *digest) Update(r *http.Request) (core.Instance, error) {
	return model.DefaultUpdate(r, &d.Base, d)
}

type digestHooks struct{}

func (digestHooks) Create(r *http.Request) (core.Instance, error) {
	return nil, core.ErrNotFound
}

func (digestHooks) CustomRequest(r *http.Request, segments []string) (interface{}, error) {
	if len(segments) == 0 {
		return nil, core.ErrUnhandled
	}
	if segments[0] == "ping" {
		return "pong", nil
	}
	return map[string]interface{}{"echo": segments}, nil
}

// newTestRegistry builds the registry for the publishing domain
func newTestRegistry(store *memstore.Store, profiles map[string]string) *schema.Registry {
	registry := schema.NewRegistry()

	registry.MustRegister(&schema.Descriptor{
		Endpoint:     "profile",
		PublicFields: []string{"id"},
		ShortFields:  []schema.Field{schema.Plain("id")},
		LongFields:   []schema.Field{schema.Plain("id")},
	}, profileHooks{})

	registry.MustRegister(&schema.Descriptor{
		Endpoint:             "article",
		PublicFields:         []string{"id"},
		RegisteredUserFields: []string{"rating", "author"},
		OwnerOnlyFields:      []string{"notes"},
		ShortFields:          []schema.Field{schema.Plain("id")},
		LongFields: []schema.Field{
			schema.Plain("id"),
			schema.Plain("rating"),
			schema.Plain("notes"),
			schema.Related(schema.Relation{
				Name:   "author",
				Kind:   core.RelationOneToOne,
				Target: "profile",
				Depth:  core.DepthShort,
			}),
		},
	}, articleHooks{store: store, profiles: profiles})

	registry.MustRegister(&schema.Descriptor{
		Endpoint:             "post",
		PublicFields:         []string{"id"},
		RegisteredUserFields: []string{"rating", "comments"},
		ShortFields:          []schema.Field{schema.Plain("id")},
		LongFields: []schema.Field{
			schema.Plain("id"),
			schema.Plain("rating"),
			schema.Related(schema.Relation{
				Name:   "comments",
				Kind:   core.RelationReverse,
				Target: "comment",
				Depth:  core.DepthShort,
			}),
		},
	}, postHooks{store: store})

	registry.MustRegister(&schema.Descriptor{
		Endpoint:             "comment",
		PublicFields:         []string{"id"},
		RegisteredUserFields: []string{"rating", "post"},
		ShortFields:          []schema.Field{schema.Plain("id")},
		LongFields: []schema.Field{
			schema.Plain("id"),
			schema.Plain("rating"),
			schema.Related(schema.Relation{
				Name:   "post",
				Kind:   core.RelationForeignKey,
				Target: "post",
				Depth:  core.DepthShort,
			}),
		},
	}, commentHooks{store: store})

	registry.MustRegister(&schema.Descriptor{
		Endpoint:             "digest",
		PublicFields:         []string{"id"},
		RegisteredUserFields: []string{"articles"},
		ShortFields:          []schema.Field{schema.Plain("id")},
		LongFields: []schema.Field{
			schema.Plain("id"),
			schema.Related(schema.Relation{
				Name:   "articles",
				Kind:   core.RelationManyToMany,
				Target: "article",
				Depth:  core.DepthShort,
			}),
		},
	}, digestHooks{})

	return registry
}
