package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SameSite int

const (
	SameSiteDefaultMode SameSite = iota + 1
	SameSiteLaxMode
	SameSiteStrictMode
	SameSiteNoneMode
)

var (
	ErrNoCookie      = errors.New("http: named cookie not present")
	ErrCookieTooLong = errors.New("http: cookie value too long")
)

type Cookie struct {
	Name  string
	Value string

	Path        string
	Domain      string
	Expires     time.Time
	MaxAge      int
	Secure      bool
	HttpOnly    bool
	SameSite    SameSite
	Partitioned bool
}

// String renders the cookie as a Set-Cookie header value.
func (c *Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	switch c.SameSite {
	case SameSiteLaxMode:
		b.WriteString("; SameSite=Lax")
	case SameSiteStrictMode:
		b.WriteString("; SameSite=Strict")
	case SameSiteNoneMode:
		b.WriteString("; SameSite=None")
	}
	if c.Partitioned {
		b.WriteString("; Partitioned")
	}

	return b.String()
}

// Valid checks the cookie against the RFC 6265 constraints the engine cares
// about before emitting it.
func (c *Cookie) Valid() error {
	if c.Name == "" {
		return fmt.Errorf("cookie name cannot be empty")
	}
	for _, r := range c.Name {
		if !isValidCookieNameChar(r) {
			return fmt.Errorf("invalid character in cookie name: %c", r)
		}
	}
	if len(c.Value) > 4096 {
		return ErrCookieTooLong
	}
	if c.SameSite == SameSiteNoneMode && !c.Secure {
		return fmt.Errorf("SameSite=None requires Secure attribute")
	}
	return nil
}

func (c *Cookie) IsExpired() bool {
	if c.MaxAge < 0 {
		return true
	}
	if !c.Expires.IsZero() && c.Expires.Before(time.Now()) {
		return true
	}
	return false
}

// Delete marks the cookie for removal on the client.
func (c *Cookie) Delete() {
	c.Value = ""
	c.MaxAge = -1
	c.Expires = time.Unix(1, 0)
}

func isValidCookieNameChar(r rune) bool {
	return r > 0x20 && r < 0x7f && r != '"' && r != ',' && r != ';' && r != '\\' &&
		r != '=' && r != '(' && r != ')' && r != '<' && r != '>' && r != '@' &&
		r != '{' && r != '}' && r != '[' && r != ']' && r != '?' && r != ':' && r != '/'
}

// Cookie returns the named cookie from the request's Cookie header.
func (req *Request) Cookie(name string) (Cookie, error) {
	var cookie Cookie
	header, found := req.Headers.Get("Cookie")
	if !found {
		return cookie, ErrNoCookie
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		cookieName, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(cookieName) == name {
			cookie.Name = name
			cookie.Value = strings.TrimSpace(value)
			return cookie, nil
		}
	}
	return cookie, ErrNoCookie
}

// SetCookie appends a Set-Cookie header for the given cookie.
func (res *Response) SetCookie(cookie *Cookie) {
	res.Headers.Add("Set-Cookie", cookie.String())
}
