package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/access"
	"github.com/socialecho/echokit/pkg/plan"
)

// Denial classifies why a quota operation was rejected. Callers branch on it
// to pick the right upsell or error surface; the kinds never overlap.
type Denial string

const (
	// DenialAccess means the tenant failed the subscription access check
	// before any quota was consulted. The AccessReason field carries the
	// specific rule that fired.
	DenialAccess Denial = "access_denied"

	// DenialUsageLimit means the monthly generation allowance is exhausted.
	DenialUsageLimit Denial = "usage_limit_reached"

	// DenialCustomisations means this artifact's per-artifact customisation
	// quota is exhausted. Independent of the monthly allowance.
	DenialCustomisations Denial = "customisations_exhausted"
)

// ConsumeResult reports the outcome of a generation attempt. Used reflects
// the ledger count after the operation: unchanged on denial, incremented on
// success. Remaining is -1 for unlimited plans.
type ConsumeResult struct {
	Allowed      bool
	Denial       Denial
	AccessReason access.Reason
	Message      string
	Used         int64
	Limit        plan.Limit
	Remaining    int64
	CycleEnd     time.Time
}

// CustomiseResult reports a per-artifact customisation check or consumption.
type CustomiseResult struct {
	Allowed      bool
	Denial       Denial
	AccessReason access.Reason
	Message      string
	Used         int64
	Limit        plan.Limit
	Remaining    int64
}

// Snapshot is the read-only usage view rendered on dashboards. It never
// consumes quota.
type Snapshot struct {
	Plan       plan.ID
	Used       int64
	Limit      plan.Limit
	Remaining  int64
	CycleStart time.Time
	CycleEnd   time.Time
}

// CycleKey addresses one ledger row: one tenant in one billing cycle. The
// zero period (free trial, no cycle boundaries) maps to a single lifetime
// bucket, which is exactly the lifetime-allowance semantics trials need.
type CycleKey struct {
	TenantID   uuid.UUID
	CycleStart time.Time
	CycleEnd   time.Time
}

// Artifact is a generated piece of content tracked for per-artifact quotas.
// FirstGeneratedAt is stamped once, on the first successful generation, and
// never moves afterwards. CustomisationsUsed counts regenerations of this
// artifact only.
type Artifact struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	FirstGeneratedAt   *time.Time
	CustomisationsUsed int64
	CreatedAt          time.Time
}

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	c := *a
	if a.FirstGeneratedAt != nil {
		t := *a.FirstGeneratedAt
		c.FirstGeneratedAt = &t
	}
	return &c
}
