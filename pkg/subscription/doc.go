// Package subscription holds the per-tenant subscription record and its
// persistence interface.
//
// The subscription row is the single point of truth for a tenant's
// entitlement state. Callers always read it fresh immediately before a
// mutating decision; nothing in this package caches records across requests.
// Mutations that must be atomic under concurrent access (status transitions,
// cycle rollover, the denormalized usage counter) are store operations rather
// than read-modify-write on the struct.
package subscription
