/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router.
It is perfectly suited for unit tests and for request handlers that need
to call other handlers to fulfill their task.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"

	"github.com/modelapi/modelapi/core"
	"github.com/modelapi/modelapi/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router         *mux.Router
	httpClient     *http.Client
	url            string
	identity       access.Identity
	hasIdentity    bool
	ctx            context.Context
	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the
// backend, through the mux router.
//
// WithUser() injects a caller identity into the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make real REST requests to the backend
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	c.defaultHeaders = headers
	return c
}

// WithCookie returns a new client that sends the cookie with every request
func (c Client) WithCookie(cookie *http.Cookie) Client {
	return c.WithHeader("Cookie", cookie.String())
}

// WithUser returns a new client with the authenticated caller identity of
// the given user (this works only directly against the mux router; a
// normal client logs in through the login route)
func (c Client) WithUser(user core.User) Client {
	c.identity = access.Authenticated(user)
	c.hasIdentity = true
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context this client operates with
func (c Client) Context() context.Context {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if c.hasIdentity {
		ctx = access.ContextWithIdentity(ctx, c.identity)
	}
	return ctx
}

// RawGet gets the resource from path. Expects http.StatusOK as response,
// otherwise it will flag an error.
//
// The path can be extended with query strings. result can be a raw
// *[]byte or nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.RawGetWithHeader(path, nil, result)
	return status, err
}

// RawGetWithHeader gets the resource from path like RawGet, with extra
// request headers. Returns the actual status code and the response header.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodGet, c.url+path, nil)
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}
	return c.do(r, result)
}

// RawPost posts a resource to path. Expects http.StatusOK as response,
// otherwise it will flag an error.
//
// body can also be a []byte, result can also be a raw *[]byte. Both can
// be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.RawPostWithHeader(path, nil, body, result)
	return status, err
}

// RawPostWithHeader posts a resource to path like RawPost, with extra
// request headers. Returns the actual status code and the response
// header, which is how a login caller picks up the session cookie.
func (c Client) RawPostWithHeader(path string, header map[string]string, body interface{}, result interface{}) (int, http.Header, error) {
	var err error
	j, ok := body.([]byte)
	if !ok && body != nil {
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, nil, fmt.Errorf("POST to %s: %w", path, err)
		}
	}
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPost, c.url+path, bytes.NewBuffer(j))
	if _, ok := header["Content-Type"]; !ok {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}
	return c.do(r, result)
}

// RawPostForm posts form-encoded values to path.
func (c Client) RawPostForm(path string, values map[string]string, result interface{}) (int, http.Header, error) {
	form := make([]string, 0, len(values))
	for key, value := range values {
		form = append(form, key+"="+value)
	}
	body := strings.Join(form, "&")
	header := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPost, c.url+path, strings.NewReader(body))
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}
	return c.do(r, result)
}

func (c Client) do(r *http.Request, result interface{}) (int, http.Header, error) {
	var err error
	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, nil, err
		}
		defer res.Body.Close()
		resBody, _ = io.ReadAll(res.Body)
	}

	status := res.StatusCode
	if status != http.StatusOK {
		return status, res.Header, fmt.Errorf("handler returned wrong status code: got %v want %v. Body: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	if len(resBody) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, res.Header, err
}

// SessionCookie extracts the session cookie from a response header, or
// nil if the response did not set one.
func SessionCookie(header http.Header) *http.Cookie {
	res := http.Response{Header: header}
	for _, cookie := range res.Cookies() {
		if cookie.Name == access.SessionCookie {
			return cookie
		}
	}
	return nil
}
