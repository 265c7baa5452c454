package plan

import (
	"context"
	"slices"
)

// Source defines how plans are loaded into a catalog.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

type staticSource struct {
	plans []Plan
}

// NewStaticSource returns a Source over a fixed plan set.
// Panics if no plans are provided so that a misconfigured service fails at
// startup rather than at the first entitlement check.
func NewStaticSource(plans ...Plan) Source {
	if len(plans) == 0 {
		panic("plan: at least one plan is required")
	}
	return &staticSource{plans: slices.Clone(plans)}
}

// Load returns a copy of the configured plans.
func (s *staticSource) Load(_ context.Context) ([]Plan, error) {
	return slices.Clone(s.plans), nil
}
