// Package http implements a small HTTP/1.1 server engine: a TCP acceptor,
// a request parser, a path-pattern router, a composable middleware chain
// and a fixed-size worker pool. It is meant for embedders who want an
// auditable stack rather than a full framework.
package http

import "time"

const (
	DefaultReadBufferSize  = 4096
	DefaultWriteBufferSize = 4096

	DefaultMaxHeaderBytes = 8 * 1024
	DefaultMaxBodyBytes   = 2 * 1024 * 1024

	DefaultWorkerPoolSize = 64
	DefaultConnQueueSize  = 128

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Second
)

// Handler processes one request and fills in the response. The engine never
// interprets handler bodies; it guarantees the handler of a matched route is
// invoked at most once per request.
type Handler func(ctx *RequestCtx)

// Middleware wraps a Handler. Middleware run outer-to-inner on the way in
// and inner-to-outer on the way out; returning without calling next
// short-circuits the rest of the chain.
type Middleware func(next Handler) Handler

var (
	// Pre-computed response for connections rejected before a worker ever
	// touches them.
	response503Overloaded = []byte("HTTP/1.1 503 Service Unavailable\r\nconnection: close\r\ncontent-length: 0\r\n\r\n")
)
