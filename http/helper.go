package http

import (
	"errors"
	"math"
	"strings"
)

func atoi(s string) (int, error) {
	if len(s) == 0 {
		return 0, errors.New("invalid number")
	}
	var n int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errors.New("invalid number")
		}
		if n > (math.MaxInt-int(c-'0'))/10 {
			return 0, errors.New("number out of range")
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func hexToByte(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 255 // Invalid hex
}

// unescape decodes percent-escapes in s. plusIsSpace additionally turns '+'
// into a space, which only applies inside query strings.
func unescape(s string, plusIsSpace bool) (string, error) {
	if !strings.ContainsAny(s, "%+") {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '%':
			if i+2 >= len(s) {
				return "", errors.New("truncated percent escape")
			}
			hi, lo := hexToByte(s[i+1]), hexToByte(s[i+2])
			if hi == 255 || lo == 255 {
				return "", errors.New("invalid percent escape")
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		case '+':
			if plusIsSpace {
				b.WriteByte(' ')
			} else {
				b.WriteByte('+')
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

var mimeTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
	".xml":  "text/xml; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
}

// GetMimeType returns the content type for a file name based on its
// extension, falling back to application/octet-stream.
func GetMimeType(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		if mt, found := mimeTypes[strings.ToLower(filename[i:])]; found {
			return mt
		}
	}
	return "application/octet-stream"
}
