// Package plan defines the plan catalog and entitlement resolution for the
// usage engine.
//
// Every other component consumes resolved entitlements through a Catalog
// keyed by a closed plan enum; raw plan strings from external systems are
// normalized exactly once at the boundary via Parse or Catalog.ByPriceID.
// Limits are a tagged value (capped or unlimited) so that arithmetic never
// has to special-case a nullable integer or compare against a sentinel.
//
// Example:
//
//	catalog, err := plan.NewCatalogFromSource(ctx, plan.NewStaticSource(plan.DefaultPlans(cfg)...))
//	if err != nil {
//		// handle error
//	}
//
//	ent, err := catalog.Entitlements(plan.Pro)
//	if ent.Posts.Allows(used) {
//		// permit the action
//	}
package plan
