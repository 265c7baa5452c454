package plan

import (
	"context"
	"errors"
	"fmt"
)

// Catalog is the single resolver from plan IDs to entitlements and provider
// price identifiers. It is immutable after construction and therefore safe
// for concurrent use.
type Catalog struct {
	plans   map[ID]Plan
	byPrice map[string]ID
}

// NewCatalog builds a catalog from the given plans.
// Every known plan ID must be present exactly once so that resolution can
// never fall through to a default at runtime.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	byID := make(map[ID]Plan, len(plans))
	byPrice := make(map[string]ID, len(plans))

	for _, p := range plans {
		if !p.ID.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, p.ID)
		}
		if _, ok := byID[p.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePlan, p.ID)
		}
		if p.ID != None && p.PriceID == "" {
			return nil, fmt.Errorf("%w: %q", ErrMissingPriceID, p.ID)
		}
		byID[p.ID] = p
		if p.PriceID != "" {
			byPrice[p.PriceID] = p.ID
		}
	}

	for _, id := range []ID{None, Starter, Pro, Ultimate, Agency} {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: missing plan %q", ErrInvalidCatalog, id)
		}
	}

	return &Catalog{plans: byID, byPrice: byPrice}, nil
}

// NewCatalogFromSource loads plans from a Source and builds a catalog.
func NewCatalogFromSource(ctx context.Context, src Source) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans...)
}

// Resolve returns the full plan definition for an ID.
func (c *Catalog) Resolve(id ID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

// Entitlements returns the effective limits for a plan.
func (c *Catalog) Entitlements(id ID) (Entitlements, error) {
	p, err := c.Resolve(id)
	if err != nil {
		return Entitlements{}, err
	}
	return p.Entitlements, nil
}

// PriceID returns the billing provider price identifier for a paid plan.
func (c *Catalog) PriceID(id ID) (string, error) {
	p, err := c.Resolve(id)
	if err != nil {
		return "", err
	}
	if p.PriceID == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingPriceID, id)
	}
	return p.PriceID, nil
}

// ByPriceID maps a provider price identifier back to a plan ID.
// This is the authoritative way to derive a plan from provider data.
func (c *Catalog) ByPriceID(priceID string) (ID, error) {
	id, ok := c.byPrice[priceID]
	if !ok {
		return None, fmt.Errorf("%w: %q", ErrUnknownPriceID, priceID)
	}
	return id, nil
}
