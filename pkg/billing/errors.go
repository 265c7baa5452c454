package billing

import "errors"

var (
	ErrNotAnUpgrade           = errors.New("target plan is not an upgrade")
	ErrNotADowngrade          = errors.New("target plan is not a downgrade")
	ErrNoProviderSubscription = errors.New("no provider subscription on record")
	ErrNoPendingChange        = errors.New("no pending plan change")
	ErrInvalidPeriodEnd       = errors.New("provider period end is not in the future")
	ErrProviderFailure        = errors.New("provider request failed")

	// ErrUpgradeIncomplete means the old subscription was cancelled but the
	// replacement could not be created. The tenant is left without a provider
	// subscription and the caller must surface this for manual follow-up.
	ErrUpgradeIncomplete = errors.New("upgrade incomplete: old subscription cancelled, new one not created")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)
