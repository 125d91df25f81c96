package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithLogger(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	require.NotNil(t, rlog)
	id := RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)

	// a context that already carries a logger keeps it
	ctx2, rlog2 := ContextWithLogger(ctx)
	assert.Equal(t, ctx, ctx2)
	assert.Equal(t, rlog, rlog2)
	assert.Equal(t, id, RequestIDFromContext(ctx2))

	assert.Equal(t, FromContext(ctx), rlog)
}

func TestRequestIDFromContextWithoutLogger(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, RequestIDFromContext(nil))
	assert.NotNil(t, FromContext(nil))
}

func TestContextWithLoggerIdentity(t *testing.T) {
	ctx, _ := ContextWithLogger(context.Background())
	id := RequestIDFromContext(ctx)

	ctx, rlog := ContextWithLoggerIdentity(ctx, "alice")
	assert.Equal(t, "alice", rlog.Data[identityLoggerKey])
	assert.Equal(t, id, RequestIDFromContext(ctx), "identity keeps the request ID")
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	AddRequestID(router)

	var seen string
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.NotEmpty(t, seen, "handler must see the request ID in its context")
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"),
		"the response header reports the same request ID")
}
