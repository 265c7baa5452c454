// Package usage enforces the two independent quota axes of the product:
// billable generations per billing cycle and customisations per generated
// artifact.
//
// Consumption is an atomic "increment if still under the limit" against the
// durable store; a plain read-then-write would let two concurrent requests
// both observe the last free slot. Unlimited plans short-circuit on the
// limit's tagged flag and never compare against a numeric cap.
//
// Two counters record the same billable event: the cycle-keyed ledger row
// (authoritative, immutable key per cycle) and the denormalized fast counter
// on the subscription row (display reads). A cycle reset therefore creates a
// new ledger key instead of mutating an old one.
package usage
