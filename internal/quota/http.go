package quota

import (
	"errors"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/plans"
)

// AsAppError maps quota engine errors onto HTTP responses: exceeded → 429,
// unknown capability → 400, dependency failure → 503. Anything else maps
// to a generic 500.
func AsAppError(err error) *api.AppError {
	var exceeded *ExceededError
	if errors.As(err, &exceeded) {
		return api.NewQuotaExceededError(exceeded.Error())
	}

	var unknown *plans.ErrUnknownCapability
	if errors.As(err, &unknown) {
		return api.NewBadRequestError(unknown.Error())
	}

	var dep *DependencyError
	if errors.As(err, &dep) {
		return api.ErrDependencyUnavailable
	}

	return api.ErrInternalServer
}
