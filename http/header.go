package http

import "strings"

// Headers maps lower-cased header names to their values. Header names are
// case-insensitive on the wire; normalizing on insert keeps lookups cheap.
// Multiple values per name are legal and kept in insertion order.
type Headers map[string][]string

func normalizeHeaderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add appends a value to the named header.
func (h Headers) Add(name, value string) {
	name = normalizeHeaderName(name)
	h[name] = append(h[name], strings.TrimSpace(value))
}

// Set replaces all values of the named header.
func (h Headers) Set(name, value string) {
	h[normalizeHeaderName(name)] = []string{strings.TrimSpace(value)}
}

// Get returns the first value of the named header.
func (h Headers) Get(name string) (string, bool) {
	values, found := h[normalizeHeaderName(name)]
	if !found || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns all values of the named header, in insertion order.
func (h Headers) Values(name string) []string {
	return h[normalizeHeaderName(name)]
}

func (h Headers) Has(name string) bool {
	_, found := h[normalizeHeaderName(name)]
	return found
}

func (h Headers) Del(name string) {
	delete(h, normalizeHeaderName(name))
}

func (h Headers) reset() {
	clear(h)
}
