package http

import (
	"fmt"
	"strings"
)

// Route is one (methods, pattern) -> handler registration. Routes live for
// the lifetime of the server; the table is immutable once serving starts, so
// concurrent lookups need no locking.
type Route struct {
	Methods  []Method
	Pattern  string
	Handler  Handler
	segments []segment
	prefix   bool
}

type segment struct {
	literal  string
	param    string
	wildcard bool
}

// MatchResult classifies a route lookup so the caller can tell a 404 from
// a 405.
type MatchResult int

const (
	MatchFound MatchResult = iota
	MatchNone
	MatchMethodNotAllowed
)

// Router dispatches requests by method and path. Patterns mix literal
// segments with named parameters and wildcards:
//
//	/person         matches exactly /person
//	/person/:id     matches /person/42, binds id="42"
//	/files/*/raw    matches /files/anything/raw without binding
//	/static/**      matches everything under /static/ (only at the end)
//
// Registration order decides precedence between overlapping patterns: the
// first full match wins.
type Router struct {
	Routes     []Route
	Middleware []Middleware
}

func NewRouter() Router {
	return Router{
		Routes: make([]Route, 0),
	}
}

// Use appends router-level middleware. It wraps every dispatch, including
// the 404 and 405 outcomes.
func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

func (router *Router) GET(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodGet}, pattern, handler, middleware...)
}

func (router *Router) HEAD(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodHead}, pattern, handler, middleware...)
}

func (router *Router) POST(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodPost}, pattern, handler, middleware...)
}

func (router *Router) PUT(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodPut}, pattern, handler, middleware...)
}

func (router *Router) PATCH(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodPatch}, pattern, handler, middleware...)
}

func (router *Router) DELETE(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodDelete}, pattern, handler, middleware...)
}

func (router *Router) OPTIONS(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle([]Method{MethodOptions}, pattern, handler, middleware...)
}

// Handle registers a handler for the given methods and pattern. Malformed
// patterns are a programming error and fail loudly at startup, never per
// request.
func (router *Router) Handle(methods []Method, pattern string, handler Handler, middleware ...Middleware) {
	segments, prefix, err := compilePattern(pattern)
	if err != nil {
		panic(fmt.Sprintf("http: route %q: %v", pattern, err))
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	router.Routes = append(router.Routes, Route{
		Methods:  methods,
		Pattern:  pattern,
		Handler:  handler,
		segments: segments,
		prefix:   prefix,
	})
}

// Group registers routes under a shared prefix, with optional middleware
// applied to each of them.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middleware ...Middleware) {
	group := NewRouter()
	groupFunc(&group)

	for _, route := range group.Routes {
		handler := route.Handler
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		// "/" inside a group addresses the prefix itself.
		pattern := route.Pattern
		if pattern == "/" {
			pattern = ""
		}
		router.Handle(route.Methods, prefix+pattern, handler)
	}
}

func compilePattern(pattern string) ([]segment, bool, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, false, fmt.Errorf("pattern must start with /")
	}

	prefix := false
	if strings.HasSuffix(pattern, "/**") {
		prefix = true
		pattern = strings.TrimSuffix(pattern, "/**")
	} else if strings.Contains(pattern, "**") {
		return nil, false, fmt.Errorf("** is only allowed as the trailing segment")
	}

	trimmed := strings.TrimPrefix(pattern, "/")
	if trimmed == "" {
		return nil, prefix, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool)
	for _, part := range parts {
		switch {
		case part == "":
			return nil, false, fmt.Errorf("empty segment")
		case part == "*":
			segments = append(segments, segment{wildcard: true})
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if name == "" {
				return nil, false, fmt.Errorf("parameter segment without a name")
			}
			if seen[name] {
				return nil, false, fmt.Errorf("duplicate parameter name %q", name)
			}
			seen[name] = true
			segments = append(segments, segment{param: name})
		default:
			segments = append(segments, segment{literal: part})
		}
	}
	return segments, prefix, nil
}

func (route *Route) allowsMethod(method Method) bool {
	for _, m := range route.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// matchPath compares the path segments against the route pattern and binds
// parameters into params on a full match.
func (route *Route) matchPath(pathSegments []string, params map[string]string) bool {
	if len(pathSegments) < len(route.segments) {
		return false
	}
	if len(pathSegments) > len(route.segments) && !route.prefix {
		return false
	}
	for i, seg := range route.segments {
		part := pathSegments[i]
		switch {
		case seg.wildcard:
			if part == "" {
				return false
			}
		case seg.param != "":
			if part == "" {
				return false
			}
			params[seg.param] = part
		default:
			if part != seg.literal {
				return false
			}
		}
	}
	return true
}

func splitPath(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Lookup finds the first registered route matching method and path, binding
// path parameters into params. When only the method is wrong it reports
// MatchMethodNotAllowed along with the set of methods that would have
// matched, in registration order.
func (router *Router) Lookup(method Method, path string, params map[string]string) (Handler, []Method, MatchResult) {
	pathSegments := splitPath(path)

	var allowed []Method
	for i := range router.Routes {
		route := &router.Routes[i]
		// A failed match may have bound a prefix of its parameters.
		clear(params)
		if !route.matchPath(pathSegments, params) {
			continue
		}
		if route.allowsMethod(method) {
			return route.Handler, nil, MatchFound
		}
		for _, m := range route.Methods {
			if !containsMethod(allowed, m) {
				allowed = append(allowed, m)
			}
		}
	}
	clear(params)

	if len(allowed) > 0 {
		return nil, allowed, MatchMethodNotAllowed
	}
	return nil, nil, MatchNone
}

func containsMethod(methods []Method, method Method) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// Handler folds the route table and the router-level middleware into a
// single dispatch handler for the connection loop.
func (router *Router) Handler() Handler {
	handler := router.dispatch
	for i := len(router.Middleware) - 1; i >= 0; i-- {
		handler = router.Middleware[i](handler)
	}
	return handler
}

func (router *Router) dispatch(ctx *RequestCtx) {
	handler, allowed, result := router.Lookup(ctx.Request.Method, ctx.Request.Path, ctx.Request.Params)
	switch result {
	case MatchFound:
		handler(ctx)
	case MatchMethodNotAllowed:
		names := make([]string, len(allowed))
		for i, m := range allowed {
			names[i] = string(m)
		}
		ctx.Response.WithHeader("Allow", strings.Join(names, ", ")).WithStatus(StatusMethodNotAllowed)
	default:
		NotFoundHandler(ctx)
	}
}

// NotFoundHandler answers routes nothing matched.
var NotFoundHandler Handler = func(ctx *RequestCtx) {
	ctx.Response.WithStatus(StatusNotFound)
}
