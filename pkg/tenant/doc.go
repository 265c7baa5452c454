// Package tenant holds the account record the billing engine needs about a
// tenant: contact email, verification state, and the billing provider's
// customer id. The full user profile lives in the host application; this
// package carries only what admission checks and notification dispatch read.
package tenant
