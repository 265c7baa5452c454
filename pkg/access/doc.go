// Package access evaluates whether a tenant's subscription currently permits
// using the product at all, independent of remaining quota.
//
// The gate runs before every quota check. It never checks quota itself:
// "allowed but out of quota" and "not allowed at all" stay distinguishable
// error kinds for the caller. Denials are structured results with a
// machine-readable reason code, not errors; errors are reserved for
// infrastructure failures.
package access
