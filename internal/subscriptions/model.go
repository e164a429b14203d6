package subscriptions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/plans"
)

// Subscription matches the subscriptions table schema. The table holds at
// most one row per user; grants overwrite, never append.
type Subscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PlanID    uuid.UUID `json:"plan_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired compares the expiry instant against now. Both sides are time
// instants; no string or locale-sensitive comparison is involved.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

const StatusActive = "active"

// DefaultDurationDays is applied when a grant does not name a duration.
const DefaultDurationDays = 30

// Entitlement is what the resolver hands the quota guard: the ceilings to
// enforce right now, plus enough plan state for status displays.
//
// When the subscription is missing or expired, Limits already holds the free
// fallback tier: expiry degrades quota, it never locks the user out.
type Entitlement struct {
	PlanName  string       `json:"plan"`
	Limits    plans.Limits `json:"limits"`
	Active    bool         `json:"active"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// GrantError reports a grant that could not be applied, e.g. a plan id or
// name that resolves to no known plan. Callers decide whether to fail the
// parent flow (signup) or lean on redelivery (payment webhooks).
type GrantError struct {
	UserID uuid.UUID
	Reason string
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("granting plan to user %s: %s", e.UserID, e.Reason)
}
