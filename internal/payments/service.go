// Package payments turns successful checkouts into plan grants. Two entry
// points feed the same grant path: Paystack checkout verified server-side,
// and Flutterwave webhooks delivered with a shared verification hash.
package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/metrics"
	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/subscriptions"
)

// planPrices maps purchasable plan names to their price in the currency
// subunit (kobo). The free tier is granted, never bought; enterprise goes
// through sales, not checkout.
var planPrices = map[string]int{
	"basic": 500_000,
	"pro":   1_500_000,
}

// ErrPlanNotPurchasable rejects checkout attempts for plans without a price.
type ErrPlanNotPurchasable struct {
	Plan string
}

func (e *ErrPlanNotPurchasable) Error() string {
	return fmt.Sprintf("plan %q cannot be purchased", e.Plan)
}

// Granter is the slice of the subscription service the payment flows need.
type Granter interface {
	GrantPlan(ctx context.Context, userID, planID uuid.UUID, durationDays int) (*subscriptions.Subscription, error)
}

type Service struct {
	paystack     *PaystackClient
	plansRepo    plans.Repository
	granter      Granter
	durationDays int
}

func NewService(paystack *PaystackClient, plansRepo plans.Repository, granter Granter, durationDays int) *Service {
	return &Service{
		paystack:     paystack,
		plansRepo:    plansRepo,
		granter:      granter,
		durationDays: durationDays,
	}
}

// Checkout carries the redirect the client needs to complete payment.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// InitializeCheckout resolves the plan by name and starts a Paystack
// transaction with the grant parameters in its metadata.
func (s *Service) InitializeCheckout(ctx context.Context, userID uuid.UUID, email, planName string) (*Checkout, error) {
	amount, ok := planPrices[planName]
	if !ok {
		return nil, &ErrPlanNotPurchasable{Plan: planName}
	}

	plan, err := s.plansRepo.GetByName(ctx, planName)
	if err != nil {
		return nil, fmt.Errorf("resolving plan %q: %w", planName, err)
	}
	if plan == nil {
		return nil, &subscriptions.GrantError{UserID: userID, Reason: fmt.Sprintf("unknown plan %q", planName)}
	}

	resp, err := s.paystack.Initialize(ctx, email, amount, TransactionMetadata{
		UserID:       userID.String(),
		PlanID:       plan.ID.String(),
		DurationDays: s.durationDays,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing checkout: %w", err)
	}

	slog.Info("checkout initialized", "user_id", userID, "plan", planName, "reference", resp.Reference)
	return &Checkout{
		AuthorizationURL: resp.AuthorizationURL,
		Reference:        resp.Reference,
	}, nil
}

// VerifyAndGrant confirms a Paystack transaction succeeded and applies the
// grant carried in its metadata.
func (s *Service) VerifyAndGrant(ctx context.Context, reference string) (*subscriptions.Subscription, error) {
	resp, err := s.paystack.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verifying transaction %s: %w", reference, err)
	}

	if resp.Status != "success" {
		return nil, fmt.Errorf("transaction %s not successful: %s", reference, resp.Status)
	}

	sub, err := s.applyGrant(ctx, resp.Metadata)
	if err != nil {
		return nil, err
	}

	metrics.PlanGrantsTotal.WithLabelValues("paystack").Inc()
	return sub, nil
}

func (s *Service) applyGrant(ctx context.Context, meta TransactionMetadata) (*subscriptions.Subscription, error) {
	userID, err := uuid.Parse(meta.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id in metadata: %w", err)
	}
	planID, err := uuid.Parse(meta.PlanID)
	if err != nil {
		return nil, fmt.Errorf("invalid plan_id in metadata: %w", err)
	}

	duration := meta.DurationDays
	if duration <= 0 {
		duration = s.durationDays
	}

	sub, err := s.granter.GrantPlan(ctx, userID, planID, duration)
	if err != nil {
		return nil, fmt.Errorf("applying grant: %w", err)
	}
	return sub, nil
}
