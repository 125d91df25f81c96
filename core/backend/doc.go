/*
Package backend is the generic REST exposure layer.

It turns a registered set of entity types into CRUD-style HTTP endpoints
under a configured prefix, enforces field-level visibility based on
caller identity and ownership, and serializes entities to nested JSON
views.

# Configuration

A backend is realized from a builder:

	registry := schema.NewRegistry()
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
	}, articleHooks{store})

	router := mux.NewRouter()
	backend.New(&backend.Builder{
		Prefix:        "/api",
		Registry:      registry,
		Store:         store,
		Router:        router,
		Authenticator: authenticator,
	})

# Routes

Every registered endpoint answers the following routes:

	GET  /api/article/           list, short views, ?page=n, page size 10
	GET  /api/article/42/        get, long view
	GET  /api/article/42/x/...   custom request, served by the entity hook
	POST /api/article/           create, gated by authentication or
	                             PublicCreateEndpoints
	POST /api/article/42/        update, gated by authentication or
	                             PublicUpdateEndpoints

plus the reserved routes

	POST /api/login/             establish a session, answer with the
	                             configured post-login entity
	POST /api/logout/            clear the session

# Failure model

Every failure - routing miss, permission denial, invalid pagination,
failed create or update, unresolved custom request, failed login -
renders as status 404 with an empty body. The API deliberately does not
distinguish "does not exist" from "not permitted", so it never leaks
whether a resource exists.

# Visibility

Fields are filtered per caller and per instance. Anonymous callers see
public fields, authenticated callers additionally see registered-user
fields, and callers accepted by the instance's ownership predicate also
see owner-only fields. A field the caller may not see is silently
omitted, never an error.
*/
package backend
