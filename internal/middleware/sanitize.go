package middleware

import (
	"net/url"
	"strings"
)

// SanitizePath normalizes a request path before classification: percent
// decodes, strips angle brackets and quotes, removes ".." sequences, and
// collapses repeated slashes. Defense against path traversal and XSS via
// reflected paths.
func SanitizePath(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}

	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '<', '>', '"', '\'':
			continue
		}
		b.WriteByte(p[i])
	}
	p = b.String()

	p = strings.ReplaceAll(p, "..", "")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return p
}
