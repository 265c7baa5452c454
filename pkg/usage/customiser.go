package usage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/access"
	"github.com/socialecho/echokit/pkg/plan"
)

// Customiser enforces the per-artifact customisation quota. The quota is
// resolved from the tenant's current plan at call time, so an upgrade
// mid-stream immediately widens (or removes) the cap on every artifact,
// including ones generated under the old plan.
type Customiser struct {
	gate      *access.Gate
	catalog   *plan.Catalog
	artifacts ArtifactStore
	log       *slog.Logger
}

// CustomiserOption configures optional Customiser behavior.
type CustomiserOption func(*Customiser)

// WithCustomiserLogger sets the logger.
func WithCustomiserLogger(log *slog.Logger) CustomiserOption {
	return func(c *Customiser) { c.log = log }
}

// NewCustomiser creates a Customiser. All dependencies are required; panics
// on nil.
func NewCustomiser(gate *access.Gate, catalog *plan.Catalog, artifacts ArtifactStore, opts ...CustomiserOption) *Customiser {
	if gate == nil {
		panic("usage: access gate is required")
	}
	if catalog == nil {
		panic("usage: plan catalog is required")
	}
	if artifacts == nil {
		panic("usage: artifact store is required")
	}
	c := &Customiser{
		gate:      gate,
		catalog:   catalog,
		artifacts: artifacts,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryCustomise is the read-only pre-flight check: may this tenant customise
// this artifact right now. It never mutates the counter, so callers can
// render the result without committing the tenant to anything.
func (c *Customiser) TryCustomise(ctx context.Context, tenantID, artifactID uuid.UUID) (*CustomiseResult, error) {
	limit, a, res, err := c.resolve(ctx, tenantID, artifactID)
	if err != nil || res != nil {
		return res, err
	}
	if limit.Allows(a.CustomisationsUsed) {
		return &CustomiseResult{
			Allowed:   true,
			Used:      a.CustomisationsUsed,
			Limit:     limit,
			Remaining: limit.Remaining(a.CustomisationsUsed),
		}, nil
	}
	return c.exhausted(a.CustomisationsUsed, limit), nil
}

// TrackCustomisation consumes one customisation slot on the artifact. The
// increment is conditional and atomic: on denial the stored counter is
// unchanged.
func (c *Customiser) TrackCustomisation(ctx context.Context, tenantID, artifactID uuid.UUID) (*CustomiseResult, error) {
	limit, _, res, err := c.resolve(ctx, tenantID, artifactID)
	if err != nil || res != nil {
		return res, err
	}
	if limit.IsUnlimited() {
		used, err := c.artifacts.IncrementCustomisations(ctx, artifactID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToTrack, err)
		}
		return &CustomiseResult{Allowed: true, Used: used, Limit: limit, Remaining: -1}, nil
	}
	used, ok, err := c.artifacts.IncrementCustomisationsUnder(ctx, artifactID, limit.Value())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToTrack, err)
	}
	if !ok {
		c.log.InfoContext(ctx, "customisation quota exhausted",
			slog.String("tenant_id", tenantID.String()),
			slog.String("artifact_id", artifactID.String()),
			slog.Int64("used", used))
		return c.exhausted(used, limit), nil
	}
	return &CustomiseResult{Allowed: true, Used: used, Limit: limit, Remaining: limit.Remaining(used)}, nil
}

// resolve runs the shared access, ownership and entitlement steps. A non-nil
// result means the caller should return it as-is (access denial).
func (c *Customiser) resolve(ctx context.Context, tenantID, artifactID uuid.UUID) (plan.Limit, *Artifact, *CustomiseResult, error) {
	dec, err := c.gate.CheckAccess(ctx, tenantID)
	if err != nil {
		return plan.Limit{}, nil, nil, fmt.Errorf("%w: %w", ErrFailedToTrack, err)
	}
	if !dec.Allowed {
		return plan.Limit{}, nil, &CustomiseResult{
			Denial:       DenialAccess,
			AccessReason: dec.Reason,
			Message:      dec.Message,
		}, nil
	}
	a, err := c.artifacts.Get(ctx, artifactID)
	if err != nil {
		return plan.Limit{}, nil, nil, err
	}
	if a.TenantID != tenantID {
		return plan.Limit{}, nil, nil, ErrArtifactNotFound
	}
	ent, err := c.catalog.Entitlements(dec.Subscription.Plan)
	if err != nil {
		return plan.Limit{}, nil, nil, fmt.Errorf("%w: %w", ErrFailedToTrack, err)
	}
	return ent.CustomisationsPerArtifact, a, nil, nil
}

func (c *Customiser) exhausted(used int64, limit plan.Limit) *CustomiseResult {
	return &CustomiseResult{
		Denial:    DenialCustomisations,
		Message:   fmt.Sprintf("You have used all %d customisations for this post.", limit.Value()),
		Used:      used,
		Limit:     limit,
		Remaining: 0,
	}
}
