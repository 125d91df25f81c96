package backend

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
	"github.com/modelapi/modelapi/core/dictify"
	"github.com/modelapi/modelapi/core/logger"
	"github.com/modelapi/modelapi/core/schema"
)

// Backend is the generic REST exposure layer: it resolves request paths
// to entity type, action and instance, gates writes, and serializes
// results. It holds no per-request state.
type Backend struct {
	prefix        string
	registry      *schema.Registry
	store         core.Store
	authenticator access.Authenticator
	serializer    *dictify.Serializer
	publicCreate  map[string]bool
	publicUpdate  map[string]bool
	loginReturn   LoginReturnFunc
	jsonValidator *schema.Validator
}

// LoginReturnFunc maps a freshly authenticated user to the entity
// instance the login route answers with, dictified long.
type LoginReturnFunc func(r *http.Request, user core.User) (endpoint string, instance core.Instance, err error)

// Builder is a builder helper for the Backend
type Builder struct {
	// Prefix is the URL prefix all routes live under, e.g. "/api". This is mandatory.
	Prefix string
	// Registry holds the registered entity types. This is mandatory.
	Registry *schema.Registry
	// Store is the entity storage the backend delegates to. This is mandatory.
	Store core.Store
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Authenticator resolves caller identities and serves login/logout.
	// This is optional; without it every caller is anonymous and login
	// always fails.
	Authenticator access.Authenticator
	// PublicCreateEndpoints may be created without authentication
	PublicCreateEndpoints []string
	// PublicUpdateEndpoints may be updated without authentication
	PublicUpdateEndpoints []string
	// LoginReturn produces the entity returned on successful login. This
	// is optional; without it login answers null.
	LoginReturn LoginReturnFunc
	// JSONSchemas are top-level JSON schemas for payload validation,
	// referenced by Descriptor.SchemaID. Optional.
	JSONSchemas []string
	// JSONSchemasRefs are schemas that may be referenced by the top-level
	// schemas. Optional.
	JSONSchemasRefs []string
}

// New realizes the backend and adds its routes to the router
func New(bb *Builder) *Backend {
	if bb.Prefix == "" || bb.Prefix == "/" {
		panic("Prefix is missing")
	}
	if bb.Registry == nil {
		panic("Registry is missing")
	}
	if bb.Store == nil {
		panic("Store is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}

	validator, err := schema.NewValidator(bb.JSONSchemas, bb.JSONSchemasRefs)
	if err != nil {
		panic(fmt.Errorf("invalid configuration: %s", err))
	}

	b := &Backend{
		prefix:        strings.TrimSuffix(bb.Prefix, "/"),
		registry:      bb.Registry,
		store:         bb.Store,
		authenticator: bb.Authenticator,
		publicCreate:  make(map[string]bool),
		publicUpdate:  make(map[string]bool),
		loginReturn:   bb.LoginReturn,
		jsonValidator: validator,
	}
	b.serializer = dictify.New(bb.Registry, bb.Store)

	for _, endpoint := range bb.PublicCreateEndpoints {
		b.publicCreate[endpoint] = true
	}
	for _, endpoint := range bb.PublicUpdateEndpoints {
		b.publicUpdate[endpoint] = true
	}

	rlog := logger.FromContext(nil)
	rlog.Debugln("backend: handle route:", b.prefix+"/...")
	for _, endpoint := range bb.Registry.Endpoints() {
		rlog.Debugln("  endpoint:", endpoint)
	}

	bb.Router.PathPrefix(b.prefix + "/").HandlerFunc(b.dispatch)
	bb.Router.HandleFunc(b.prefix, b.dispatch)
	return b
}

// Serializer returns the serializer of this backend
func (b *Backend) Serializer() *dictify.Serializer {
	return b.serializer
}

// canCreate returns true if the caller may create instances of the endpoint
func (b *Backend) canCreate(endpoint string, caller access.Identity) bool {
	return caller.Authenticated() || b.publicCreate[endpoint]
}

// canUpdate returns true if the caller may update instances of the endpoint
func (b *Backend) canUpdate(endpoint string, caller access.Identity) bool {
	return caller.Authenticated() || b.publicUpdate[endpoint]
}
