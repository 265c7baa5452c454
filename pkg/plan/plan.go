package plan

// Entitlements are the effective limits a plan grants.
type Entitlements struct {
	// Posts bounds how many billable generations a tenant may perform per
	// billing cycle (lifetime for free-trial subscriptions).
	Posts Limit
	// CustomisationsPerArtifact bounds refinements of a single artifact.
	// This is an independent axis from Posts.
	CustomisationsPerArtifact Limit
}

// Plan describes a subscription plan: its identity, the billing provider
// price it maps to, and the entitlements it grants.
type Plan struct {
	ID           ID
	Name         string
	PriceID      string // billing provider price identifier, empty for None
	Entitlements Entitlements
}

// PriceConfig carries the provider price identifiers for the paid plans.
// Price IDs live in the environment because they differ between the
// provider's live and sandbox modes.
type PriceConfig struct {
	StarterPriceID  string `env:"BILLING_STARTER_PRICE_ID,required"`
	ProPriceID      string `env:"BILLING_PRO_PRICE_ID,required"`
	UltimatePriceID string `env:"BILLING_ULTIMATE_PRICE_ID,required"`
	AgencyPriceID   string `env:"BILLING_AGENCY_PRICE_ID,required"`
}

// DefaultPlans returns the product's plan set wired to the configured
// provider prices: Starter 30 posts, Pro 100 posts, Ultimate and Agency
// unlimited. Customisations are capped at 2 per artifact on capped plans.
func DefaultPlans(cfg PriceConfig) []Plan {
	return []Plan{
		{
			ID:   None,
			Name: None.DisplayName(),
			Entitlements: Entitlements{
				Posts:                     Capped(0),
				CustomisationsPerArtifact: Capped(0),
			},
		},
		{
			ID:      Starter,
			Name:    Starter.DisplayName(),
			PriceID: cfg.StarterPriceID,
			Entitlements: Entitlements{
				Posts:                     Capped(30),
				CustomisationsPerArtifact: Capped(2),
			},
		},
		{
			ID:      Pro,
			Name:    Pro.DisplayName(),
			PriceID: cfg.ProPriceID,
			Entitlements: Entitlements{
				Posts:                     Capped(100),
				CustomisationsPerArtifact: Capped(2),
			},
		},
		{
			ID:      Ultimate,
			Name:    Ultimate.DisplayName(),
			PriceID: cfg.UltimatePriceID,
			Entitlements: Entitlements{
				Posts:                     Unlimited(),
				CustomisationsPerArtifact: Unlimited(),
			},
		},
		{
			ID:      Agency,
			Name:    Agency.DisplayName(),
			PriceID: cfg.AgencyPriceID,
			Entitlements: Entitlements{
				Posts:                     Unlimited(),
				CustomisationsPerArtifact: Unlimited(),
			},
		},
	}
}
