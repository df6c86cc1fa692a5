package http

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/flinthq/flint/http"

// Extension data keys used by the built-in middleware.
const (
	ExtensionRequestID     = "request_id"
	ExtensionAuthenticated = "authenticated"
)

// RecoverMiddleware is the outermost fault boundary: a panic anywhere down
// the chain becomes a plain 500 with no internal detail on the wire.
func RecoverMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			defer func() {
				if recovered := recover(); recovered != nil {
					logger.Error("handler panic",
						"error", recovered,
						"method", ctx.Request.Method,
						"path", ctx.Request.Path,
					)
					ctx.Response.Reset()
					ctx.Response.WithStatus(StatusInternalServerError)
				}
			}()

			next(ctx)
		}
	}
}

// AccessLogMiddleware logs one line per request after the rest of the chain
// has run.
func AccessLogMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			start := time.Now()

			next(ctx)

			logger.InfoContext(ctx.Context(), "request",
				"method", ctx.Request.Method,
				"path", ctx.Request.Path,
				"status", ctx.Response.Status,
				"duration", time.Since(start),
				"remote", ctx.RemoteAddr(),
			)
		}
	}
}

// RequestIDMiddleware tags every request with a fresh ID, exposed to the
// handler as extension data and to the client as X-Request-Id.
func RequestIDMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			id := uuid.NewString()
			ctx.Request.SetExtension(ExtensionRequestID, id)
			ctx.Response.Headers.Set("X-Request-Id", id)

			next(ctx)
		}
	}
}

// APIKeyMiddleware guards the rest of the chain behind an X-Api-Key header.
// A missing or wrong key short-circuits with a 401; the guarded handler is
// never invoked. On success the authenticated flag is left in the request's
// extension data.
func APIKeyMiddleware(key string) Middleware {
	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			presented, found := ctx.Request.Header("X-Api-Key")
			if !found || presented != key {
				ctx.Response.WithStatus(StatusUnauthorized)
				return
			}
			ctx.Request.SetExtension(ExtensionAuthenticated, true)

			next(ctx)
		}
	}
}

// MetricsMiddleware records a request counter and a duration histogram via
// the globally registered OpenTelemetry meter provider.
func MetricsMiddleware() Middleware {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}
	requestDuration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Request handling duration"),
		metric.WithUnit("ms"))
	if err != nil {
		panic(err)
	}

	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			start := time.Now()

			next(ctx)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", string(ctx.Request.Method)),
				attribute.Int("http.response.status_code", int(ctx.Response.Status)),
			)
			requestCount.Add(ctx.Context(), 1, attrs)
			requestDuration.Record(ctx.Context(), float64(time.Since(start))/float64(time.Millisecond), attrs)
		}
	}
}

// TracingMiddleware opens a server span per request and propagates it to the
// handler through the request context.
func TracingMiddleware() Middleware {
	tracer := otel.Tracer(instrumentationName)

	return func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			spanCtx, span := tracer.Start(ctx.Context(), string(ctx.Request.Method)+" "+ctx.Request.Path)
			defer span.End()
			ctx.SetContext(spanCtx)

			next(ctx)

			span.SetAttributes(
				attribute.String("http.request.method", string(ctx.Request.Method)),
				attribute.String("url.path", ctx.Request.Path),
				attribute.Int("http.response.status_code", int(ctx.Response.Status)),
			)
		}
	}
}
