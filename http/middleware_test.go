package http

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMiddlewareOrdering(t *testing.T) {
	var trace []string

	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx *RequestCtx) {
				trace = append(trace, name+".before")
				next(ctx)
				trace = append(trace, name+".after")
			}
		}
	}

	router := NewRouter()
	router.Use(mark("a"), mark("b"))
	router.GET("/", func(ctx *RequestCtx) {
		trace = append(trace, "handler")
	})

	ctx := newRequestCtx()
	ctx.Request.Method = MethodGet
	ctx.Request.Path = "/"
	router.Handler()(ctx)

	want := []string{"a.before", "b.before", "handler", "b.after", "a.after"}
	if len(trace) != len(want) {
		t.Fatalf("expected %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, trace)
		}
	}
}

func TestMiddlewareSeesNotFound(t *testing.T) {
	var observed uint16

	router := NewRouter()
	router.Use(func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			next(ctx)
			observed = ctx.Response.Status
		}
	})

	ctx := newRequestCtx()
	ctx.Request.Method = MethodGet
	ctx.Request.Path = "/nowhere"
	router.Handler()(ctx)

	if observed != StatusNotFound {
		t.Errorf("expected middleware to observe 404, got %d", observed)
	}
}

func TestMiddlewareShortCircuit(t *testing.T) {
	var trace []string

	outer := func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			trace = append(trace, "outer.before")
			next(ctx)
			trace = append(trace, "outer.after")
		}
	}
	guard := func(next Handler) Handler {
		return func(ctx *RequestCtx) {
			ctx.Response.WithStatus(StatusUnauthorized)
		}
	}

	router := NewRouter()
	router.Use(outer, guard)
	router.GET("/", func(ctx *RequestCtx) {
		trace = append(trace, "handler")
	})

	ctx := newRequestCtx()
	ctx.Request.Method = MethodGet
	ctx.Request.Path = "/"
	router.Handler()(ctx)

	// The handler never runs, but the outer middleware still wraps the
	// short-circuited response.
	if len(trace) != 2 || trace[0] != "outer.before" || trace[1] != "outer.after" {
		t.Errorf("unexpected trace %v", trace)
	}
	if ctx.Response.Status != StatusUnauthorized {
		t.Errorf("expected 401, got %d", ctx.Response.Status)
	}
}

func TestPerRouteMiddleware(t *testing.T) {
	var hits []string

	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx *RequestCtx) {
				hits = append(hits, name)
				next(ctx)
			}
		}
	}

	router := NewRouter()
	router.GET("/guarded", func(ctx *RequestCtx) {}, mark("guard"))
	router.GET("/open", func(ctx *RequestCtx) {})

	ctx := newRequestCtx()
	ctx.Request.Method = MethodGet
	ctx.Request.Path = "/open"
	router.Handler()(ctx)
	if len(hits) != 0 {
		t.Errorf("per-route middleware leaked onto another route: %v", hits)
	}

	ctx = newRequestCtx()
	ctx.Request.Method = MethodGet
	ctx.Request.Path = "/guarded"
	router.Handler()(ctx)
	if len(hits) != 1 || hits[0] != "guard" {
		t.Errorf("expected [guard], got %v", hits)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(discardLogger())(func(ctx *RequestCtx) {
		ctx.Response.WithText("partial")
		panic("boom")
	})

	ctx := newRequestCtx()
	handler(ctx)

	if ctx.Response.Status != StatusInternalServerError {
		t.Errorf("expected 500, got %d", ctx.Response.Status)
	}
	if len(ctx.Response.Body) != 0 {
		t.Errorf("expected partial response to be discarded, got %q", ctx.Response.Body)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	invoked := false
	handler := APIKeyMiddleware("secret")(func(ctx *RequestCtx) {
		invoked = true
		ctx.Response.WithText("ok")
	})

	ctx := newRequestCtx()
	handler(ctx)
	if invoked {
		t.Error("handler invoked without a key")
	}
	if ctx.Response.Status != StatusUnauthorized {
		t.Errorf("expected 401, got %d", ctx.Response.Status)
	}

	ctx = newRequestCtx()
	ctx.Request.Headers.Set("X-Api-Key", "wrong")
	handler(ctx)
	if invoked {
		t.Error("handler invoked with a wrong key")
	}

	ctx = newRequestCtx()
	ctx.Request.Headers.Set("X-Api-Key", "secret")
	handler(ctx)
	if !invoked {
		t.Error("handler not invoked with the right key")
	}
	if flag, _ := ctx.Request.Extension(ExtensionAuthenticated); flag != true {
		t.Error("authenticated extension not set")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware()(func(ctx *RequestCtx) {})

	ctx := newRequestCtx()
	handler(ctx)

	id, found := ctx.Request.Extension(ExtensionRequestID)
	if !found {
		t.Fatal("request id extension not set")
	}
	header, _ := ctx.Response.Headers.Get("X-Request-Id")
	if header != id {
		t.Errorf("expected header %v, got %v", id, header)
	}

	ctx2 := newRequestCtx()
	handler(ctx2)
	id2, _ := ctx2.Request.Extension(ExtensionRequestID)
	if id == id2 {
		t.Error("expected a fresh id per request")
	}
}
