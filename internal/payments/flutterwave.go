package payments

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/verba-platform/verba/internal/metrics"
)

// FlutterwaveEvent is the webhook body for charge notifications. Only the
// fields the grant path needs are decoded.
type FlutterwaveEvent struct {
	Event string              `json:"event"`
	Data  FlutterwaveCharge   `json:"data"`
}

type FlutterwaveCharge struct {
	Status string              `json:"status"`
	TxRef  string              `json:"tx_ref"`
	Meta   TransactionMetadata `json:"meta"`
}

// VerifyFlutterwaveHash compares the webhook's verif-hash header against the
// configured secret in constant time.
func VerifyFlutterwaveHash(configured, received string) bool {
	if configured == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(received)) == 1
}

// HandleFlutterwaveEvent applies the grant carried by a verified webhook. A
// returned error means the caller should respond non-2xx so Flutterwave
// redelivers.
func (s *Service) HandleFlutterwaveEvent(ctx context.Context, event FlutterwaveEvent) error {
	if event.Event != "charge.completed" {
		slog.Debug("ignoring flutterwave event", "event", event.Event)
		return nil
	}
	if event.Data.Status != "successful" {
		slog.Info("ignoring unsuccessful charge", "tx_ref", event.Data.TxRef, "status", event.Data.Status)
		return nil
	}

	if _, err := s.applyGrant(ctx, event.Data.Meta); err != nil {
		return fmt.Errorf("flutterwave charge %s: %w", event.Data.TxRef, err)
	}

	metrics.PlanGrantsTotal.WithLabelValues("flutterwave").Inc()
	slog.Info("flutterwave grant applied", "tx_ref", event.Data.TxRef, "user_id", event.Data.Meta.UserID)
	return nil
}
