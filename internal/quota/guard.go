// Package quota decides whether a unit of billable work may run, and records
// it once it has.
//
// The flow is two-phase: Check admits or rejects before the external provider
// is called, Commit records one unit only after the provider call succeeded.
// A failed or cancelled provider call records nothing, so users are never
// charged for work that produced no result.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/events"
	"github.com/verba-platform/verba/internal/metrics"
	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/subscriptions"
	"github.com/verba-platform/verba/internal/usage"
)

// EntitlementResolver reports the ceilings currently in force for a user.
type EntitlementResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (*subscriptions.Entitlement, error)
}

// AuditPublisher receives quota violation events. Nil disables auditing.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, event events.AuditEvent) error
}

// Decision is the admitted outcome of a Check, with the numbers behind it.
// Remaining is -1 when the capability is unlimited.
type Decision struct {
	Capability plans.Capability `json:"capability"`
	Limit      int              `json:"limit"`
	Used       int              `json:"used"`
	Remaining  int              `json:"remaining"`
}

// Guard composes the entitlement resolver and the usage ledger into the
// admit/commit state machine.
//
// Two checks racing for the same user and capability may both read the same
// pre-commit usage and both admit, overshooting the ceiling by at most the
// number of racers. Commits themselves are atomic appends and are never lost;
// strict limiting would need a single server-side increment-and-check, which
// this system deliberately trades away for provider-failure fairness.
type Guard struct {
	entitlements EntitlementResolver
	ledger       usage.Ledger
	audit        AuditPublisher
}

func NewGuard(entitlements EntitlementResolver, ledger usage.Ledger, audit AuditPublisher) *Guard {
	return &Guard{entitlements: entitlements, ledger: ledger, audit: audit}
}

// Check decides whether the user may consume one unit of capability now.
//
// Returns a Decision on admission. On rejection the error is *ExceededError;
// on an unknown capability it is *plans.ErrUnknownCapability; when a backing
// store is unreachable it is *DependencyError. A dependency failure is never
// converted into an admission.
func (g *Guard) Check(ctx context.Context, userID uuid.UUID, capability plans.Capability) (*Decision, error) {
	if _, err := plans.ParseCapability(string(capability)); err != nil {
		return nil, err
	}

	ent, err := g.entitlements.Resolve(ctx, userID)
	if err != nil {
		metrics.QuotaChecksTotal.WithLabelValues(string(capability), "error").Inc()
		return nil, &DependencyError{Op: "resolving entitlement", Err: err}
	}

	limit := ent.Limits.For(capability)
	if limit == plans.Unlimited {
		metrics.QuotaChecksTotal.WithLabelValues(string(capability), "admitted").Inc()
		return &Decision{Capability: capability, Limit: plans.Unlimited, Remaining: plans.Unlimited}, nil
	}

	used, err := g.ledger.InWindow(ctx, userID, capability)
	if err != nil {
		metrics.QuotaChecksTotal.WithLabelValues(string(capability), "error").Inc()
		return nil, &DependencyError{Op: "reading usage", Err: err}
	}

	if used+1 > limit {
		metrics.QuotaChecksTotal.WithLabelValues(string(capability), "rejected").Inc()
		slog.Warn("quota exceeded", "user_id", userID, "capability", capability, "used", used, "limit", limit)
		g.publishViolation(ctx, userID, capability, used, limit)
		return nil, &ExceededError{Capability: capability, Limit: limit, Used: used}
	}

	metrics.QuotaChecksTotal.WithLabelValues(string(capability), "admitted").Inc()
	return &Decision{
		Capability: capability,
		Limit:      limit,
		Used:       used,
		Remaining:  limit - used - 1,
	}, nil
}

// Commit durably records one unit of consumption. Call only after the gated
// provider call succeeded.
func (g *Guard) Commit(ctx context.Context, userID uuid.UUID, capability plans.Capability) error {
	if _, err := plans.ParseCapability(string(capability)); err != nil {
		return err
	}

	if err := g.ledger.Record(ctx, userID, capability, 1); err != nil {
		return &DependencyError{Op: "recording usage", Err: err}
	}

	metrics.UsageCommittedTotal.WithLabelValues(string(capability)).Inc()
	return nil
}

// CapabilityStatus is one row of the usage status report.
type CapabilityStatus struct {
	Capability plans.Capability `json:"capability"`
	Used       int              `json:"used"`
	Limit      int              `json:"limit"`
	Remaining  int              `json:"remaining"`
}

// Status reports plan state and per-capability consumption for display.
func (g *Guard) Status(ctx context.Context, userID uuid.UUID) (*subscriptions.Entitlement, []CapabilityStatus, error) {
	ent, err := g.entitlements.Resolve(ctx, userID)
	if err != nil {
		return nil, nil, &DependencyError{Op: "resolving entitlement", Err: err}
	}

	statuses := make([]CapabilityStatus, 0, len(plans.Capabilities))
	for _, c := range plans.Capabilities {
		used, err := g.ledger.InWindow(ctx, userID, c)
		if err != nil {
			return nil, nil, &DependencyError{Op: "reading usage", Err: err}
		}

		limit := ent.Limits.For(c)
		remaining := plans.Unlimited
		if limit != plans.Unlimited {
			remaining = limit - used
			if remaining < 0 {
				remaining = 0
			}
		}
		statuses = append(statuses, CapabilityStatus{Capability: c, Used: used, Limit: limit, Remaining: remaining})
	}

	return ent, statuses, nil
}

func (g *Guard) publishViolation(ctx context.Context, userID uuid.UUID, capability plans.Capability, used, limit int) {
	if g.audit == nil {
		return
	}
	event := events.AuditEvent{
		UserID:       userID,
		EventType:    events.EventQuotaExceeded,
		Severity:     "warn",
		ResourceType: "capability",
		ResourceID:   string(capability),
		Details:      fmt.Sprintf("%d/%d units used in window", used, limit),
		Timestamp:    time.Now().UTC(),
	}
	if err := g.audit.PublishAuditEvent(ctx, event); err != nil {
		slog.Warn("publishing quota violation audit event", "error", err)
	}
}
