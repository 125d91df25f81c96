package backend

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
	"github.com/modelapi/modelapi/core/logger"
)

// credentials as accepted by the login route. Both a JSON body and
// classic form encoding work.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(r *http.Request) (credentials, bool) {
	var creds credentials
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return creds, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return creds, false
		}
		creds.Username = r.PostFormValue("username")
		creds.Password = r.PostFormValue("password")
	}
	return creds, creds.Username != ""
}

// handleLogin authenticates the credentials, establishes a session and
// answers with the long view of the configured post-login entity. Bad
// credentials and inactive accounts fail uniformly with 404 and no
// session.
func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if b.authenticator == nil {
		b.notFound(w, r)
		return
	}
	creds, ok := readCredentials(r)
	if !ok {
		b.notFound(w, r)
		return
	}

	user, err := b.authenticator.Authenticate(r.Context(), creds.Username, creds.Password)
	if err != nil {
		logger.FromContext(r.Context()).Debugln("login failed:", err)
		b.notFound(w, r)
		return
	}

	if err := b.authenticator.EstablishSession(w, user); err != nil {
		b.notFound(w, r)
		return
	}

	if b.loginReturn == nil {
		b.respond(w, r, nil)
		return
	}
	endpoint, instance, err := b.loginReturn(r, user)
	if err != nil {
		b.notFound(w, r)
		return
	}
	view, err := b.serializer.Dictify(r.Context(), endpoint, instance, core.DepthLong, access.Authenticated(user))
	if err != nil {
		b.notFound(w, r)
		return
	}
	b.respond(w, r, view)
}

// handleLogout clears the session, logged in or not
func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if b.authenticator != nil {
		b.authenticator.ClearSession(w, r)
	}
	b.respond(w, r, nil)
}
