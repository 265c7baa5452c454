package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a subscription plan. The set is closed: every component of
// the engine consumes one of these values, never a raw plan string.
type ID string

const (
	None     ID = "none"
	Starter  ID = "starter"
	Pro      ID = "pro"
	Ultimate ID = "ultimate"
	Agency   ID = "agency"
)

// Valid reports whether the plan ID is one of the known values.
func (id ID) Valid() bool {
	switch id {
	case None, Starter, Pro, Ultimate, Agency:
		return true
	}
	return false
}

// Tier returns the plan's position in the linear upgrade order.
// Higher tier means a more expensive plan.
func (id ID) Tier() int {
	switch id {
	case Starter:
		return 1
	case Pro:
		return 2
	case Ultimate:
		return 3
	case Agency:
		return 4
	default:
		return 0
	}
}

// DisplayName returns the human-readable plan name.
func (id ID) DisplayName() string {
	switch id {
	case Starter:
		return "Starter"
	case Pro:
		return "Pro"
	case Ultimate:
		return "Ultimate"
	case Agency:
		return "Agency"
	case None:
		return "No Plan"
	default:
		return "Unknown"
	}
}

// Parse normalizes an external plan string to a canonical ID.
// Legacy product names like "SocialEcho_Starter" or "AgencyGrowth" map onto
// the closed enum; anything unrecognized returns ErrUnknownPlan so that the
// caller decides how to degrade instead of silently defaulting.
func Parse(s string) (ID, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == string(None):
		return None, nil
	case strings.Contains(v, "starter") && !strings.Contains(v, "agency"):
		return Starter, nil
	case strings.Contains(v, "ultimate"):
		return Ultimate, nil
	case strings.Contains(v, "agency") || strings.Contains(v, "reseller"):
		return Agency, nil
	case strings.Contains(v, "pro"):
		return Pro, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownPlan, s)
}

// Limit is a tagged usage bound: either capped at a value or unlimited.
// The zero value is capped at zero, which denies everything.
type Limit struct {
	unlimited bool
	value     int64
}

// Capped returns a limit bounded at n.
func Capped(n int64) Limit {
	return Limit{value: n}
}

// Unlimited returns a limit that allows any usage.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// IsUnlimited reports whether the limit allows unbounded usage.
func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value returns the cap for a capped limit and 0 for unlimited ones.
// Check IsUnlimited before doing arithmetic with it.
func (l Limit) Value() int64 {
	if l.unlimited {
		return 0
	}
	return l.value
}

// Allows reports whether one more unit may be consumed given current usage.
func (l Limit) Allows(used int64) bool {
	if l.unlimited {
		return true
	}
	return used < l.value
}

// Remaining returns how many units are left, clamped at zero.
// Returns -1 for unlimited limits.
func (l Limit) Remaining(used int64) int64 {
	if l.unlimited {
		return -1
	}
	return max(0, l.value-used)
}

// String renders the limit for display: the cap or "unlimited".
func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(l.value, 10)
}
