package http

import (
	"bufio"
	"context"
	"net"
)

// RequestCtx carries one connection plus its parse/write buffers and the
// request/response pair for the exchange in flight. It is owned by exactly
// one worker at a time and recycled between connections.
type RequestCtx struct {
	conn       net.Conn
	connReader *bufio.Reader
	connWriter *bufio.Writer
	ctx        context.Context

	Request  Request
	Response Response
}

func newRequestCtx() *RequestCtx {
	return &RequestCtx{
		connReader: bufio.NewReaderSize(nil, DefaultReadBufferSize),
		connWriter: bufio.NewWriterSize(nil, DefaultWriteBufferSize),
		Request:    newRequest(),
		Response:   newResponse(),
	}
}

func (ctx *RequestCtx) reset(baseCtx context.Context, conn net.Conn) {
	ctx.conn = conn
	ctx.connReader.Reset(conn)
	ctx.connWriter.Reset(conn)
	ctx.ctx = baseCtx
	ctx.Request.Reset()
	ctx.Response.Reset()
}

// Context returns the context for the request in flight. Middleware may
// derive from it (tracing does) via SetContext.
func (ctx *RequestCtx) Context() context.Context {
	if ctx.ctx == nil {
		return context.Background()
	}
	return ctx.ctx
}

func (ctx *RequestCtx) SetContext(c context.Context) {
	ctx.ctx = c
}

// RemoteAddr returns the peer address, or nil outside a live connection.
func (ctx *RequestCtx) RemoteAddr() net.Addr {
	if ctx.conn == nil {
		return nil
	}
	return ctx.conn.RemoteAddr()
}
