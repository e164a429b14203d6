package quota

import (
	"fmt"

	"github.com/verba-platform/verba/internal/plans"
)

// ExceededError is the normal rejection outcome of a quota check: the user is
// at their ceiling for this capability within the current rolling window. It
// carries enough detail for the client to show the user their limit.
type ExceededError struct {
	Capability plans.Capability
	Limit      int
	Used       int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d used in the current window", e.Capability, e.Used, e.Limit)
}

// DependencyError marks a quota decision that could not be made because a
// backing store was unreachable. It is retryable and must never be treated as
// an admission: paid capabilities fail closed.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("quota dependency unavailable during %s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
