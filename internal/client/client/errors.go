package client

import "errors"

var (
	ErrUnavailable   = errors.New("server unavailable")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotRegistered = errors.New("device is not registered")
	// ErrRejected marks a request the server refused for good; retrying the
	// same request will not succeed.
	ErrRejected = errors.New("rejected by server")
)
