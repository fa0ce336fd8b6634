package middleware

import (
	"net"
	"strings"
)

const maxHostLen = 253

// ValidHost reports whether the hostname (port already stripped) matches the
// hostname grammar: alphanumeric, hyphens and dots, no leading or trailing
// hyphen/dot, at most 253 characters.
func ValidHost(host string) bool {
	if host == "" || len(host) > maxHostLen {
		return false
	}
	if !isAlnum(host[0]) || !isAlnum(host[len(host)-1]) {
		return false
	}
	for i := 1; i < len(host)-1; i++ {
		c := host[i]
		if !isAlnum(c) && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// StripPort removes a :port suffix from a Host header value, if present.
func StripPort(host string) string {
	if !strings.Contains(host, ":") {
		return host
	}
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

// RouteClass is the single routing decision the entry proxy produces for a
// request.
type RouteClass int

const (
	// ClassAnalytics passes analytics-ingest traffic straight through.
	ClassAnalytics RouteClass = iota
	// ClassWebhook dispatches to the vendor webhook mux.
	ClassWebhook
	// ClassDomain sends tenant/platform custom-domain traffic to the domain
	// middleware.
	ClassDomain
	// ClassApp applies the route-group guard before the page/API layer.
	ClassApp
	// ClassDefault passes through with security headers only.
	ClassDefault
)

// Classifier decides which pipeline a request enters based on its host and
// path.
type Classifier struct {
	// AppHost is the canonical application host (sessions, GP/LP surfaces).
	AppHost string
	// RootDomain is the bare platform domain; it is never a tenant domain.
	RootDomain string
	// WebhookHost receives vendor webhooks.
	WebhookHost string
	// InfraSuffixes are hosting-platform suffixes (preview deploys, local
	// dev) that must never be treated as tenant domains.
	InfraSuffixes []string
}

// Exempt path prefixes that skip the app guard: tenant document views,
// magic-link verification, and email unsubscribe links.
var exemptPrefixes = []string{"/view/", "/verify", "/unsubscribe"}

const analyticsPrefix = "/ingest/"

// Classify produces exactly one routing decision. Precedence: analytics
// ingest, webhook host, custom domain, app guard, default passthrough.
func (c *Classifier) Classify(host, path string) RouteClass {
	if strings.HasPrefix(path, analyticsPrefix) {
		return ClassAnalytics
	}
	if host == c.WebhookHost {
		return ClassWebhook
	}
	if c.isCustomDomain(host) {
		return ClassDomain
	}
	for _, p := range exemptPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassDefault
		}
	}
	return ClassApp
}

// isCustomDomain reports whether the host is a tenant or platform custom
// domain: anything that is not the app's own host, not the bare root domain,
// and not a known infrastructure suffix.
func (c *Classifier) isCustomDomain(host string) bool {
	if host == "" || host == c.AppHost || host == c.RootDomain {
		return false
	}
	if host == "localhost" || host == "127.0.0.1" {
		return false
	}
	for _, suffix := range c.InfraSuffixes {
		if strings.HasSuffix(host, suffix) {
			return false
		}
	}
	return true
}
