// Package usage is the durable ledger of capability consumption.
//
// Consumption is modeled as an append-only stream of usage events; "current
// usage" is the sum of events inside the trailing window ending now. Nothing
// resets on a calendar boundary, so quota cannot be gamed by requests that
// straddle a fixed reset instant.
package usage

import (
	"context"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/plans"
)

// Ledger records and aggregates capability consumption per user.
//
// Record must be safe under concurrent callers for the same user and
// capability: implementations append (or atomically increment) at the storage
// layer, never read-modify-write in the application. A Record that has
// returned is visible to subsequent InWindow reads.
type Ledger interface {
	// InWindow returns the units consumed in the trailing window ending now.
	// Zero prior usage yields 0, not an error.
	InWindow(ctx context.Context, userID uuid.UUID, capability plans.Capability) (int, error)

	// Record appends units of consumption timestamped at the moment of
	// recording.
	Record(ctx context.Context, userID uuid.UUID, capability plans.Capability, units int) error
}

// validateCapability rejects identifiers outside the closed enum before any
// storage access.
func validateCapability(c plans.Capability) error {
	_, err := plans.ParseCapability(string(c))
	return err
}
