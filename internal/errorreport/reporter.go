// Package errorreport delivers unexpected errors to an external monitoring
// collector. The HTTP layer only ever sees the Reporter interface, so the
// collector can be swapped (or disabled in tests) without touching call sites.
package errorreport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Reporter receives internal errors with request metadata. Implementations
// must never include secrets in what they forward.
type Reporter interface {
	Report(err error, meta map[string]string)
}

// LogReporter writes reports to the structured log. The default when no
// collector endpoint is configured.
type LogReporter struct {
	Logger *slog.Logger
}

func (r *LogReporter) Report(err error, meta map[string]string) {
	attrs := make([]any, 0, 2+2*len(meta))
	attrs = append(attrs, "error", err)
	for k, v := range meta {
		attrs = append(attrs, k, v)
	}
	r.Logger.Error("internal error", attrs...)
}

// HTTPReporter posts reports to a collector endpoint, best-effort. Failures
// are logged and swallowed; reporting must never take a request down.
type HTTPReporter struct {
	Endpoint string
	Logger   *slog.Logger
	Client   *http.Client
}

func NewHTTPReporter(endpoint string, logger *slog.Logger) *HTTPReporter {
	return &HTTPReporter{
		Endpoint: endpoint,
		Logger:   logger,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *HTTPReporter) Report(err error, meta map[string]string) {
	payload := map[string]any{
		"error": err.Error(),
		"meta":  meta,
		"at":    time.Now().UTC().Format(time.RFC3339),
	}
	body, mErr := json.Marshal(payload)
	if mErr != nil {
		return
	}
	resp, pErr := r.Client.Post(r.Endpoint, "application/json", bytes.NewReader(body))
	if pErr != nil {
		r.Logger.Warn("error report delivery failed", "error", pErr)
		return
	}
	resp.Body.Close()
}
