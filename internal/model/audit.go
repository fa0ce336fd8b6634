package model

import "time"

// Audit event kinds.
const (
	AuditRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	AuditAdminLogin        = "ADMIN_LOGIN"
	AuditMagicLinkDenied   = "MAGIC_LINK_DENIED"
	AuditPaymentEvent      = "PAYMENT_EVENT"
	AuditDocumentUploaded  = "DOCUMENT_UPLOADED"
	AuditDocumentSigned    = "DOCUMENT_SIGNED"
)

// Audit severities.
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
)

// AuditLog is an immutable record of a security-relevant event. Writes are
// best-effort: a failed audit insert never changes the outcome of the action
// being audited.
type AuditLog struct {
	ID        string
	OrgID     *int64
	Actor     string
	Kind      string
	Severity  string
	IP        string
	Detail    string
	CreatedAt time.Time
}
