/*Package model provides reusable building blocks for API entities: the
activation state every entity carries and the default update behavior
that turns a "deactivate" request parameter into a soft delete.

Entities embed Base and call DefaultUpdate at the end of their own update
hook, or replace the behavior entirely.
*/
package model

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
)

// Base carries the activation state of an entity. The zero value is
// active. Deactivation is an update, never a deletion; a deactivated
// instance serializes to null and disappears from list results.
type Base struct {
	Deactivated     bool
	DateDeactivated time.Time
}

// Active reports whether the instance is live
func (b *Base) Active() bool {
	return !b.Deactivated
}

// Deactivate marks the instance inactive and stamps the time
func (b *Base) Deactivate() {
	if b.Deactivated {
		return
	}
	b.Deactivated = true
	b.DateDeactivated = time.Now().UTC()
}

// BaseField serves the activation fields by name, for entities that
// expose them in their schema
func (b *Base) BaseField(name string) (interface{}, bool) {
	switch name {
	case "active":
		return b.Active(), true
	case "date_deactivated":
		if b.DateDeactivated.IsZero() {
			return nil, true
		}
		return b.DateDeactivated, true
	}
	return nil, false
}

// DefaultUpdate is the reusable tail of an update hook: if the caller owns
// the instance and the request carries a truthy "deactivate" parameter,
// the instance is deactivated. An instance that ends up inactive no longer
// exists to the API, so the update reports ErrNotFound; otherwise the
// instance itself is returned.
//
// Entity update hooks may call through to DefaultUpdate after applying
// their own field changes, or ignore it entirely.
func DefaultUpdate(r *http.Request, base *Base, instance core.Instance) (core.Instance, error) {
	caller := access.IdentityFromContext(r.Context())
	if value, ok := Param(r, "deactivate"); ok && value != "" && value != "false" {
		if caller.Authenticated() && instance.IsOwner(caller.User()) {
			base.Deactivate()
		}
	}
	if !base.Active() {
		return nil, fmt.Errorf("%w: instance is deactivated", core.ErrNotFound)
	}
	return instance, nil
}

// Param reads one request parameter. Form encodings are read through
// ParseForm; everything else is treated as a flat JSON object. The body is
// restored so it can be read again.
func Param(r *http.Request, name string) (string, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", false
		}
		values, ok := r.PostForm[name]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}

	if r.Body == nil {
		return "", false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var params map[string]interface{}
	if err := json.Unmarshal(body, &params); err != nil {
		return "", false
	}
	value, ok := params[name]
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}
