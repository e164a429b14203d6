package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "VERBA_EVENTS"
)

// Subject constants.
const (
	SubjectAuditEvent = "verba.events.audit"
)

// Audit event types.
const (
	EventPlanGranted   = "plan_granted"
	EventQuotaExceeded = "quota_exceeded"
	EventUsageCommit   = "usage_committed"
	EventPaymentFailed = "payment_failed"
)

// AuditEvent is published for the compliance/audit trail: plan grants, quota
// rejections, committed usage, payment failures.
type AuditEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"` // info, warn, error
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Details      string    `json:"details"`
	Timestamp    time.Time `json:"timestamp"`
}
