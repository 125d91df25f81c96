package backend

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
	"github.com/modelapi/modelapi/core/logger"
	"github.com/modelapi/modelapi/core/schema"
)

// routeMatch is the dispatcher's resolution of one request: the operation
// and its path operands. A get match may still fall through to a custom
// request if the id segment does not resolve to an instance.
type routeMatch struct {
	operation core.Operation
	endpoint  string
	id        string
	segments  []string
}

// matchRoute maps method and path segments onto an operation. The second
// return is false for requests no operation accepts.
func matchRoute(method string, segments []string) (routeMatch, bool) {
	if len(segments) == 0 {
		return routeMatch{}, false
	}

	switch segments[0] {
	case "login":
		if method == http.MethodPost && len(segments) == 1 {
			return routeMatch{operation: core.OperationLogin}, true
		}
		return routeMatch{}, false
	case "logout":
		if method == http.MethodPost && len(segments) == 1 {
			return routeMatch{operation: core.OperationLogout}, true
		}
		return routeMatch{}, false
	}

	match := routeMatch{endpoint: segments[0]}
	rest := segments[1:]
	switch method {
	case http.MethodGet:
		switch len(rest) {
		case 0:
			match.operation = core.OperationList
		case 1:
			match.operation = core.OperationGet
			match.id = rest[0]
			match.segments = rest
		default:
			match.operation = core.OperationCustom
			match.segments = rest
		}
	case http.MethodPost:
		switch len(rest) {
		case 0:
			match.operation = core.OperationCreate
		case 1:
			match.operation = core.OperationUpdate
			match.id = rest[0]
		default:
			return routeMatch{}, false
		}
	default:
		return routeMatch{}, false
	}
	return match, true
}

// dispatch is the single entry point for every request under the prefix.
// It resolves the path segments [endpoint, instanceOrAction?, custom...]
// into an operation and hands off to the action handlers. Any denial or
// absence renders as an empty 404 body; the system deliberately does not
// distinguish "forbidden" from "not found".
func (b *Backend) dispatch(w http.ResponseWriter, r *http.Request) {
	ctx, rlog := logger.ContextWithLogger(r.Context())
	r = r.WithContext(ctx)

	caller := access.Anonymous()
	if b.authenticator != nil {
		caller = b.authenticator.CurrentCaller(r)
	} else {
		caller = access.IdentityFromContext(ctx)
	}
	if caller.Authenticated() {
		ctx, rlog = logger.ContextWithLoggerIdentity(ctx, caller.User().Key())
	}
	ctx = access.ContextWithIdentity(ctx, caller)
	r = r.WithContext(ctx)

	segments := splitSegments(strings.TrimPrefix(r.URL.Path, b.prefix))
	match, ok := matchRoute(r.Method, segments)
	if !ok {
		b.notFound(w, r)
		return
	}
	rlog.Debugln("dispatch:", match.operation, r.URL.Path)

	switch match.operation {
	case core.OperationLogin:
		b.handleLogin(w, r)
		return
	case core.OperationLogout:
		b.handleLogout(w, r)
		return
	}

	entity, err := b.registry.Resolve(match.endpoint)
	if err != nil {
		b.notFound(w, r)
		return
	}

	switch match.operation {
	case core.OperationList:
		b.handleList(w, r, entity, caller)
	case core.OperationGet:
		instance, err := b.store.Get(ctx, entity.Endpoint, match.id)
		if err == nil {
			b.handleGet(w, r, entity, instance, caller)
			return
		}
		if !errors.Is(err, core.ErrNotFound) {
			b.notFound(w, r)
			return
		}
		// the segment is not an id of this entity, fall through to the
		// entity's custom request hook
		b.handleCustom(w, r, entity, match.segments)
	case core.OperationCustom:
		b.handleCustom(w, r, entity, match.segments)
	case core.OperationCreate:
		b.handleCreate(w, r, entity, caller)
	case core.OperationUpdate:
		b.handleUpdate(w, r, entity, match.id, caller)
	default:
		b.notFound(w, r)
	}
}

// handleList answers with one page of short views. Deactivated instances
// are filtered out before pagination.
func (b *Backend) handleList(w http.ResponseWriter, r *http.Request, entity *schema.EntityType, caller access.Identity) {
	pageNumber := 1
	if page := r.URL.Query().Get("page"); page != "" {
		var err error
		pageNumber, err = strconv.Atoi(page)
		if err != nil {
			b.notFound(w, r)
			return
		}
	}

	instances, err := b.store.Query(r.Context(), entity.Endpoint)
	if err != nil {
		b.notFound(w, r)
		return
	}
	live := make([]core.Instance, 0, len(instances))
	for _, instance := range instances {
		if instance.Active() {
			live = append(live, instance)
		}
	}

	page, err := Paginate(live, pageNumber, DefaultPageSize)
	if err != nil {
		b.notFound(w, r)
		return
	}

	views := make([]interface{}, 0, len(page))
	for _, instance := range page {
		view, err := b.serializer.Dictify(r.Context(), entity.Endpoint, instance, core.DepthShort, caller)
		if err != nil {
			b.notFound(w, r)
			return
		}
		views = append(views, view)
	}
	b.respond(w, r, views)
}

// handleGet answers with the long view of one instance
func (b *Backend) handleGet(w http.ResponseWriter, r *http.Request, entity *schema.EntityType,
	instance core.Instance, caller access.Identity) {
	view, err := b.serializer.Dictify(r.Context(), entity.Endpoint, instance, core.DepthLong, caller)
	if err != nil {
		b.notFound(w, r)
		return
	}
	b.respond(w, r, view)
}

// handleCreate gates creation and delegates to the entity's create hook
func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request, entity *schema.EntityType, caller access.Identity) {
	if !b.canCreate(entity.Endpoint, caller) {
		b.notFound(w, r)
		return
	}
	if !b.validatePayload(r, entity) {
		b.notFound(w, r)
		return
	}
	instance, err := entity.Hooks.Create(r)
	if err != nil || instance == nil {
		b.notFound(w, r)
		return
	}
	view, err := b.serializer.Dictify(r.Context(), entity.Endpoint, instance, core.DepthLong, caller)
	if err != nil {
		b.notFound(w, r)
		return
	}
	b.respond(w, r, view)
}

// handleUpdate resolves the instance, gates the update and delegates to
// the instance's update hook
func (b *Backend) handleUpdate(w http.ResponseWriter, r *http.Request, entity *schema.EntityType,
	id string, caller access.Identity) {
	instance, err := b.store.Get(r.Context(), entity.Endpoint, id)
	if err != nil {
		b.notFound(w, r)
		return
	}
	if !b.canUpdate(entity.Endpoint, caller) {
		b.notFound(w, r)
		return
	}
	if !b.validatePayload(r, entity) {
		b.notFound(w, r)
		return
	}
	updated, err := instance.Update(r)
	if err != nil || updated == nil {
		b.notFound(w, r)
		return
	}
	view, err := b.serializer.Dictify(r.Context(), entity.Endpoint, updated, core.DepthLong, caller)
	if err != nil {
		b.notFound(w, r)
		return
	}
	b.respond(w, r, view)
}

// handleCustom delegates to the entity's custom request hook
func (b *Backend) handleCustom(w http.ResponseWriter, r *http.Request, entity *schema.EntityType, segments []string) {
	result, err := entity.Hooks.CustomRequest(r, segments)
	if err != nil {
		b.notFound(w, r)
		return
	}
	b.respond(w, r, result)
}

// validatePayload checks the request body against the entity's JSON
// schema, if it names one. The body is restored so the hooks can read it
// again.
func (b *Backend) validatePayload(r *http.Request, entity *schema.EntityType) bool {
	if entity.SchemaID == "" || !b.jsonValidator.HasSchema(entity.SchemaID) {
		return true
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := b.jsonValidator.ValidateString(string(body), entity.SchemaID); err != nil {
		logger.FromContext(r.Context()).Debugln("payload validation failed:", err)
		return false
	}
	return true
}

// respond writes a 200 JSON response
func (b *Backend) respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		b.notFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonData)
}

// notFound writes the uniform failure response: status 404, empty body
func (b *Backend) notFound(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Debugln("not found:", r.Method, r.URL.Path)
	w.WriteHeader(http.StatusNotFound)
}

// splitSegments splits a path into its non-empty segments, which makes
// trailing and doubled slashes irrelevant
func splitSegments(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
