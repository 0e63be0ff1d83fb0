package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrUnauthorized means the bearer credential is missing or could not be verified
	ErrUnauthorized = goerr.New("unauthorized")

	// ErrBadRequest means a required field is missing or malformed
	ErrBadRequest = goerr.New("bad request")

	// ErrRateLimited means the per-user sliding window is exhausted
	ErrRateLimited = goerr.New("too many requests")

	ErrMemoryNotFound = goerr.New("memory not found")

	// ErrUpstreamTimeout means an embedding or extraction call hit its deadline; callers may retry
	ErrUpstreamTimeout = goerr.New("upstream timeout")
)
