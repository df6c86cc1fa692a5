package http

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strconv"
)

// Response is built incrementally by middleware and handlers, then handed to
// the serializer. The status always carries a value; Reset puts it back to
// 200 so a response is never written without one.
type Response struct {
	Status  uint16
	Headers Headers
	Body    []byte

	// bodyStream, when set, is drained into the connection instead of Body.
	// streamSize must hold its exact length; without chunked encoding there
	// is no way to frame a body of unknown size on a keep-alive connection.
	bodyStream io.Reader
	streamSize int64

	// noBody suppresses body bytes while keeping Content-Length intact,
	// which is what a HEAD response needs.
	noBody bool
}

func newResponse() Response {
	return Response{
		Status:  StatusOK,
		Headers: make(Headers),
	}
}

// Reset clears the response for reuse on the next exchange.
func (res *Response) Reset() {
	res.Status = StatusOK
	res.Headers.reset()
	res.Body = res.Body[:0]
	res.bodyStream = nil
	res.streamSize = 0
	res.noBody = false
}

func (res *Response) WithStatus(status uint16) *Response {
	res.Status = status
	return res
}

func (res *Response) WithHeader(name, value string) *Response {
	res.Headers.Set(name, value)
	return res
}

func (res *Response) WithBody(body []byte) *Response {
	res.Body = append(res.Body[:0], body...)
	res.bodyStream = nil
	return res
}

// WithBodyStream serves the body from r instead of an in-memory buffer.
// size must be the exact number of bytes r will yield.
func (res *Response) WithBodyStream(r io.Reader, size int64) *Response {
	res.bodyStream = r
	res.streamSize = size
	res.Body = res.Body[:0]
	return res
}

func (res *Response) WithText(payload string) *Response {
	res.Headers.Set("Content-Type", "text/plain; charset=utf-8")
	return res.WithBody([]byte(payload))
}

func (res *Response) WithHTML(payload string) *Response {
	res.Headers.Set("Content-Type", "text/html; charset=utf-8")
	return res.WithBody([]byte(payload))
}

func (res *Response) WithJSON(payload any) *Response {
	data, err := json.Marshal(payload)
	if err != nil {
		res.Status = StatusInternalServerError
		return res.WithBody(nil)
	}
	res.Headers.Set("Content-Type", "application/json")
	return res.WithBody(data)
}

func (res *Response) WithRedirect(location string, status uint16) *Response {
	res.Headers.Set("Location", location)
	return res.WithStatus(status)
}

func (res *Response) contentLength() int64 {
	if res.bodyStream != nil {
		return res.streamSize
	}
	return int64(len(res.Body))
}

// Write serializes the response onto the wire: status line, headers,
// Content-Length, CRLF, body. The caller flushes.
func (res *Response) Write(bw *bufio.Writer) error {
	bw.WriteString("HTTP/1.1 ")
	bw.WriteString(strconv.Itoa(int(res.Status)))
	bw.WriteByte(' ')
	bw.WriteString(StatusText(res.Status))
	bw.WriteString("\r\n")

	// Sorted names keep the framing reproducible run to run.
	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "content-length" {
			// Framing is derived from the actual body, never trusted from
			// a handler-set header.
			continue
		}
		for _, value := range res.Headers[name] {
			bw.WriteString(name)
			bw.WriteString(": ")
			bw.WriteString(value)
			bw.WriteString("\r\n")
		}
	}

	bw.WriteString("content-length: ")
	bw.WriteString(strconv.FormatInt(res.contentLength(), 10))
	bw.WriteString("\r\n\r\n")

	if res.noBody {
		if closer, ok := res.bodyStream.(io.Closer); ok {
			closer.Close()
		}
		return bw.Flush()
	}
	if res.bodyStream != nil {
		_, err := io.CopyN(bw, res.bodyStream, res.streamSize)
		if closer, ok := res.bodyStream.(io.Closer); ok {
			closer.Close()
		}
		if err != nil {
			return err
		}
		return bw.Flush()
	}
	if _, err := bw.Write(res.Body); err != nil {
		return err
	}
	return bw.Flush()
}
