package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/events"
	"github.com/verba-platform/verba/internal/plans"
)

// AuditPublisher receives subscription lifecycle events. A nil publisher
// disables auditing without disabling grants.
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, event events.AuditEvent) error
}

// Service resolves entitlements and applies plan grants. It is the only
// writer of subscription rows; signup and payment webhooks both go through
// GrantPlan.
type Service struct {
	repo  Repository
	plans plans.Repository
	audit AuditPublisher
}

func NewService(repo Repository, planRepo plans.Repository, audit AuditPublisher) *Service {
	return &Service{repo: repo, plans: planRepo, audit: audit}
}

// Resolve determines the ceilings currently in force for a user.
//
// No subscription means the free tier, active: new users are usable before
// any async provisioning lands. An expired subscription also resolves to the
// free tier, flagged inactive, so a lapsed paid plan degrades instead of
// locking the user out. A storage failure propagates; it is never converted
// into an entitlement.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (*Entitlement, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub == nil {
		return &Entitlement{PlanName: plans.FreeTierName, Limits: plans.FreeTier(), Active: true}, nil
	}

	if sub.Expired(time.Now()) {
		slog.Info("subscription expired, degrading to free tier",
			"user_id", userID, "expires_at", sub.ExpiresAt)
		return &Entitlement{
			PlanName:  plans.FreeTierName,
			Limits:    plans.FreeTier(),
			Active:    false,
			ExpiresAt: &sub.ExpiresAt,
		}, nil
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		slog.Warn("subscription references unknown plan, degrading to free tier",
			"user_id", userID, "plan_id", sub.PlanID)
		return &Entitlement{
			PlanName:  plans.FreeTierName,
			Limits:    plans.FreeTier(),
			Active:    true,
			ExpiresAt: &sub.ExpiresAt,
		}, nil
	}

	return &Entitlement{
		PlanName:  plan.Name,
		Limits:    plan.Limits,
		Active:    true,
		ExpiresAt: &sub.ExpiresAt,
	}, nil
}

// GrantPlan grants or renews planID for the user. The expiry is computed from
// now plus durationDays (30 when zero) and the write is one atomic upsert.
func (s *Service) GrantPlan(ctx context.Context, userID, planID uuid.UUID, durationDays int) (*Subscription, error) {
	if durationDays <= 0 {
		durationDays = DefaultDurationDays
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, &GrantError{UserID: userID, Reason: fmt.Sprintf("plan %s does not exist", planID)}
	}

	return s.grant(ctx, userID, plan, durationDays)
}

// GrantPlanByName grants the plan carrying the given name. Payment metadata
// carries plan names, not ids.
func (s *Service) GrantPlanByName(ctx context.Context, userID uuid.UUID, planName string, durationDays int) (*Subscription, error) {
	if durationDays <= 0 {
		durationDays = DefaultDurationDays
	}

	plan, err := s.plans.GetByName(ctx, planName)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, &GrantError{UserID: userID, Reason: fmt.Sprintf("no plan named %q", planName)}
	}

	return s.grant(ctx, userID, plan, durationDays)
}

// GrantDefault puts a fresh user on the free plan. Called from signup.
func (s *Service) GrantDefault(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.GrantPlanByName(ctx, userID, plans.FreeTierName, DefaultDurationDays)
}

func (s *Service) grant(ctx context.Context, userID uuid.UUID, plan *plans.Plan, durationDays int) (*Subscription, error) {
	expiresAt := time.Now().Add(time.Duration(durationDays) * 24 * time.Hour)

	sub, err := s.repo.Upsert(ctx, userID, plan.ID, expiresAt)
	if err != nil {
		return nil, err
	}

	slog.Info("plan granted", "user_id", userID, "plan", plan.Name, "expires_at", expiresAt)

	if s.audit != nil {
		event := events.AuditEvent{
			UserID:       userID,
			EventType:    events.EventPlanGranted,
			Severity:     "info",
			ResourceType: "subscription",
			ResourceID:   sub.ID.String(),
			Details:      fmt.Sprintf("plan %s granted for %d days", plan.Name, durationDays),
			Timestamp:    time.Now().UTC(),
		}
		if err := s.audit.PublishAuditEvent(ctx, event); err != nil {
			slog.Warn("publishing plan grant audit event", "error", err)
		}
	}

	return sub, nil
}
