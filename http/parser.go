package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Parse failure classes. The connection handler answers all of them with a
// 400 and closes the connection; everything else coming out of Parse is an
// I/O error and gets no response at all.
var (
	ErrMalformedStartLine = errors.New("http: malformed start line")
	ErrMalformedHeader    = errors.New("http: malformed header")
	ErrHeaderTooLarge     = errors.New("http: header section too large")
	ErrBodyTooLarge       = errors.New("http: request body too large")
	ErrUnsupportedVersion = errors.New("http: unsupported protocol version")
	ErrUnexpectedEOF      = errors.New("http: unexpected end of stream")
)

// IsProtocolError reports whether err is a parse failure that should be
// answered with a 4xx before closing, as opposed to an I/O failure where the
// peer may already be gone.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrMalformedStartLine) ||
		errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrHeaderTooLarge) ||
		errors.Is(err, ErrBodyTooLarge) ||
		errors.Is(err, ErrUnsupportedVersion) ||
		errors.Is(err, ErrUnexpectedEOF)
}

// Parser turns a buffered byte stream into Requests. The zero value uses the
// package defaults for both limits.
type Parser struct {
	MaxHeaderBytes int
	MaxBodyBytes   int
}

func (p *Parser) maxHeaderBytes() int {
	if p.MaxHeaderBytes > 0 {
		return p.MaxHeaderBytes
	}
	return DefaultMaxHeaderBytes
}

func (p *Parser) maxBodyBytes() int {
	if p.MaxBodyBytes > 0 {
		return p.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

// Parse reads one request off br into req. A clean close before the first
// byte returns io.EOF; a close anywhere later is ErrUnexpectedEOF.
func (p *Parser) Parse(br *bufio.Reader, req *Request) error {
	remain := p.maxHeaderBytes()

	line, err := readLine(br, &remain)
	if err != nil {
		if err == io.EOF && line == "" {
			return io.EOF
		}
		if err == io.EOF {
			return fmt.Errorf("%w: start line cut short", ErrUnexpectedEOF)
		}
		return err
	}

	if err := p.parseStartLine(line, req); err != nil {
		return err
	}

	for {
		line, err := readLine(br, &remain)
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: headers cut short", ErrUnexpectedEOF)
			}
			return err
		}
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		req.Headers.Add(name, value)
	}

	if req.Headers.Has("Transfer-Encoding") {
		// Chunked decoding is deliberately unsupported; reject instead of
		// misreading the body.
		return fmt.Errorf("%w: transfer-encoding not supported", ErrUnsupportedVersion)
	}

	if err := p.readBody(br, req); err != nil {
		return err
	}

	req.KeepAlive = negotiateKeepAlive(req)
	return nil
}

func (p *Parser) parseStartLine(line string, req *Request) error {
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: %q", ErrMalformedStartLine, line)
	}
	method, target, proto := parts[0], parts[1], parts[2]

	switch proto {
	case "HTTP/1.1", "HTTP/1.0":
	default:
		if strings.HasPrefix(proto, "HTTP/") {
			return fmt.Errorf("%w: %q", ErrUnsupportedVersion, proto)
		}
		return fmt.Errorf("%w: bad version %q", ErrMalformedStartLine, proto)
	}

	// Fragments are legal in a URI but meaningless in a request target.
	target, _, _ = strings.Cut(target, "#")
	rawPath, rawQuery, _ := strings.Cut(target, "?")
	if !strings.HasPrefix(rawPath, "/") {
		return fmt.Errorf("%w: target %q", ErrMalformedStartLine, target)
	}

	path, err := unescape(rawPath, false)
	if err != nil {
		return fmt.Errorf("%w: target %q", ErrMalformedStartLine, target)
	}

	req.Method = Method(method)
	req.Path = path
	req.RawQuery = rawQuery
	req.Proto = proto

	if err := parseQuery(rawQuery, req.Query); err != nil {
		return fmt.Errorf("%w: query %q", ErrMalformedStartLine, rawQuery)
	}
	return nil
}

func (p *Parser) readBody(br *bufio.Reader, req *Request) error {
	value, found := req.Headers.Get("Content-Length")
	if !found {
		// No body length indicator means no body.
		return nil
	}
	contentLength, err := atoi(value)
	if err != nil {
		return fmt.Errorf("%w: content-length %q", ErrMalformedHeader, value)
	}
	if contentLength > p.maxBodyBytes() {
		return fmt.Errorf("%w: content-length %d exceeds limit %d", ErrBodyTooLarge, contentLength, p.maxBodyBytes())
	}
	if contentLength == 0 {
		return nil
	}

	if cap(req.Body) < contentLength {
		req.Body = make([]byte, contentLength)
	} else {
		req.Body = req.Body[:contentLength]
	}
	if _, err := io.ReadFull(br, req.Body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: body cut short", ErrUnexpectedEOF)
		}
		return err
	}
	return nil
}

// readLine reads up to CRLF (bare LF tolerated) and charges the line against
// the remaining header budget.
func readLine(br *bufio.Reader, remain *int) (string, error) {
	line, err := br.ReadString('\n')
	if len(line) > *remain {
		return "", fmt.Errorf("%w: line exceeds budget", ErrHeaderTooLarge)
	}
	*remain -= len(line)
	if err != nil {
		return line, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func parseQuery(rawQuery string, into map[string]string) error {
	if rawQuery == "" {
		return nil
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			continue
		}
		name, err := unescape(name, true)
		if err != nil {
			return err
		}
		value, err = unescape(value, true)
		if err != nil {
			return err
		}
		into[name] = value
	}
	return nil
}

// negotiateKeepAlive applies the HTTP/1.x defaults: 1.1 keeps the connection
// open unless told otherwise, 1.0 closes it unless told otherwise. Connection
// is a comma-separated token list and may repeat; close anywhere wins.
func negotiateKeepAlive(req *Request) bool {
	var keepAlive, closeRequested bool
	for _, value := range req.Headers.Values("Connection") {
		for _, token := range strings.Split(value, ",") {
			switch strings.ToLower(strings.TrimSpace(token)) {
			case "close":
				closeRequested = true
			case "keep-alive":
				keepAlive = true
			}
		}
	}
	switch req.Proto {
	case "HTTP/1.1":
		return !closeRequested
	case "HTTP/1.0":
		return keepAlive && !closeRequested
	}
	return false
}
