package http

// Request is a fully parsed HTTP request. It is immutable after parsing
// except for the extension data bag, which middleware use to hand state to
// the handler (an authenticated identity, a request ID, and so on).
type Request struct {
	Method   Method
	Path     string
	RawQuery string
	Proto    string

	// Query holds the decoded query string parameters. Params holds the
	// path parameters bound by the router; it contains exactly the names
	// declared in the matched route's pattern.
	Query  map[string]string
	Params map[string]string

	Headers Headers
	Body    []byte

	// KeepAlive is the result of negotiating the protocol version against
	// the Connection header.
	KeepAlive bool

	extensions map[string]any
}

func newRequest() Request {
	return Request{
		Query:      make(map[string]string),
		Params:     make(map[string]string),
		Headers:    make(Headers),
		extensions: make(map[string]any),
	}
}

// Reset clears the request for reuse on the next exchange.
func (req *Request) Reset() {
	req.Method = ""
	req.Path = ""
	req.RawQuery = ""
	req.Proto = ""
	req.Body = req.Body[:0]
	req.KeepAlive = false
	clear(req.Query)
	clear(req.Params)
	req.Headers.reset()
	clear(req.extensions)
}

// Header returns the first value of the named header.
func (req *Request) Header(name string) (string, bool) {
	return req.Headers.Get(name)
}

// SetExtension attaches opaque per-request state under the given key.
// Extension data is cleared between requests.
func (req *Request) SetExtension(key string, value any) {
	req.extensions[key] = value
}

// Extension returns per-request state attached by middleware.
func (req *Request) Extension(key string) (any, bool) {
	value, found := req.extensions[key]
	return value, found
}

// Param returns the named path parameter bound by the router.
func (req *Request) Param(name string) (string, bool) {
	value, found := req.Params[name]
	return value, found
}

// QueryParam returns the named query string parameter.
func (req *Request) QueryParam(name string) (string, bool) {
	value, found := req.Query[name]
	return value, found
}

// ContentLength returns the parsed body length.
func (req *Request) ContentLength() int {
	return len(req.Body)
}
