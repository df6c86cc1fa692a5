package http

import (
	"io"
	"net"
	"time"
)

// connState drives one connection through its lifecycle. Keeping the loop an
// explicit state machine (rather than recursion or callbacks) keeps resource
// ownership with the single worker that runs it.
type connState uint8

const (
	stateReadingRequest connState = iota
	stateRouting
	stateProcessing
	stateWritingResponse
	stateKeepAlive
	stateClosed
)

// serveConn runs the state machine for one connection:
//
//	ReadingRequest -> Routing -> Processing -> WritingResponse
//	    -> KeepAlive -> ReadingRequest | Closed
//
// Router misses still produce a response (404/405) and proceed to the write;
// only I/O errors and protocol errors tear the connection down.
func (s *Server) serveConn(ctx *RequestCtx, conn net.Conn) {
	defer conn.Close()
	ctx.reset(s.baseContext(), conn)

	parser := Parser{
		MaxHeaderBytes: s.MaxHeaderBytes,
		MaxBodyBytes:   s.MaxBodyBytes,
	}

	var (
		state           = stateReadingRequest
		firstRequest    = true
		closeAfterWrite = false
	)

	for state != stateClosed {
		switch state {
		case stateReadingRequest:
			timeout := s.readTimeout()
			if !firstRequest {
				timeout = s.idleTimeout()
			}
			conn.SetReadDeadline(time.Now().Add(timeout))

			err := parser.Parse(ctx.connReader, &ctx.Request)
			switch {
			case err == nil:
				state = stateRouting
			case IsProtocolError(err):
				// Answer with a 400, then never keep the connection alive.
				s.logger().Debug("protocol error", "error", err, "remote", conn.RemoteAddr())
				ctx.Response.Reset()
				ctx.Response.WithStatus(StatusBadRequest)
				closeAfterWrite = true
				state = stateWritingResponse
			default:
				if err != io.EOF {
					s.logger().Debug("read failed", "error", err, "remote", conn.RemoteAddr())
				}
				state = stateClosed
			}

		case stateRouting:
			// Routing outcomes (including 404/405) are folded into the
			// dispatch handler so middleware observe them too.
			if s.shuttingDown() {
				closeAfterWrite = true
			}
			state = stateProcessing

		case stateProcessing:
			s.invokeHandler(ctx)
			state = stateWritingResponse

		case stateWritingResponse:
			keepAlive := ctx.Request.KeepAlive && !closeAfterWrite
			if keepAlive {
				ctx.Response.Headers.Set("Connection", "keep-alive")
			} else {
				ctx.Response.Headers.Set("Connection", "close")
			}
			ctx.Response.noBody = ctx.Request.Method == MethodHead

			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
			if err := ctx.Response.Write(ctx.connWriter); err != nil {
				s.logger().Debug("write failed", "error", err, "remote", conn.RemoteAddr())
				state = stateClosed
				break
			}
			if keepAlive {
				state = stateKeepAlive
			} else {
				state = stateClosed
			}

		case stateKeepAlive:
			ctx.Request.Reset()
			ctx.Response.Reset()
			// Contexts derived via SetContext (tracing does this) must not
			// outlive their exchange.
			ctx.ctx = s.baseContext()
			firstRequest = false
			state = stateReadingRequest
		}
	}
}

// invokeHandler runs the middleware chain and handler behind the outermost
// fault boundary: an escaped panic becomes a bare 500.
func (s *Server) invokeHandler(ctx *RequestCtx) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger().Error("unhandled panic in handler chain",
				"error", recovered,
				"method", ctx.Request.Method,
				"path", ctx.Request.Path,
			)
			ctx.Response.Reset()
			ctx.Response.WithStatus(StatusInternalServerError)
		}
	}()

	s.handler(ctx)
}
