package http

// Method is an HTTP method token. The standard verbs have constants below;
// anything else is carried through as an opaque token so embedders can route
// on extension methods if they want to.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

var standardMethods = []Method{
	MethodGet,
	MethodHead,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodConnect,
	MethodOptions,
	MethodTrace,
}

// IsStandard reports whether m is one of the standard HTTP verbs.
func (m Method) IsStandard() bool {
	for _, sm := range standardMethods {
		if m == sm {
			return true
		}
	}
	return false
}

func (m Method) String() string {
	return string(m)
}

// ValidateMethod reports whether the raw token is a standard HTTP verb.
func ValidateMethod(token []byte) bool {
	return Method(token).IsStandard()
}
