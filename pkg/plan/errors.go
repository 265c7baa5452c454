package plan

import "errors"

var (
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrUnknownPriceID    = errors.New("unknown price ID")
	ErrMissingPriceID    = errors.New("plan has no price ID configured")
	ErrInvalidCatalog    = errors.New("invalid plan catalog configuration")
	ErrFailedToLoadPlans = errors.New("failed to load plans")
	ErrDuplicatePlan     = errors.New("duplicate plan in catalog")
	ErrNegativeLimit     = errors.New("limit value must not be negative")
)
