package middleware

import (
	"net/http"
	"strings"
)

// ClientIPHeader carries the sanitized client IP to downstream handlers,
// replacing whatever the client sent.
const ClientIPHeader = "X-Client-IP"

// UnknownIP is the sentinel used when no client-IP-bearing header is present.
// All unknown-IP clients share one rate-limit bucket — accepted imprecision.
const UnknownIP = "unknown"

// RealIP extracts the client IP, preferring the first X-Forwarded-For entry,
// then X-Real-IP, falling back to the UnknownIP sentinel.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	return UnknownIP
}
