package core

import "errors"

// The error taxonomy of the exposure layer. Everything a request can run
// into ultimately collapses into ErrNotFound at the HTTP boundary; the
// finer-grained errors exist so collaborators and tests can tell the cases
// apart internally.
var (
	// ErrNotFound is the single externally observable failure: routing miss,
	// permission denial, invalid pagination, failed create or update, failed
	// login. The dispatcher renders it as an empty 404 body.
	ErrNotFound = errors.New("not found")

	// ErrUnhandled is returned by a custom request hook that does not
	// recognize the request. The dispatcher maps it to ErrNotFound.
	ErrUnhandled = errors.New("unhandled")

	// ErrDuplicateEndpoint is returned when an endpoint name is registered twice.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint")

	// ErrStorageFailure wraps failures of the storage collaborator.
	ErrStorageFailure = errors.New("storage failure")

	// ErrAuthenticationFailure wraps failures of the authenticator collaborator.
	ErrAuthenticationFailure = errors.New("authentication failure")
)
