// Package billing drives paid plan transitions through the payment provider
// and keeps the local subscription record in sync with provider webhooks.
//
// The two transition directions are deliberately asymmetric. An upgrade takes
// effect immediately: the current provider subscription is cancelled without
// proration and a new one is created at the higher price, with an idempotency
// key so a retried request cannot double-bill. A downgrade is deferred: a
// two-phase subscription schedule keeps the current price until the period
// ends and switches to the lower price afterwards, so the tenant keeps what
// they paid for.
//
// Local state is updated only after the provider call succeeds. The provider
// remains the source of truth for subscription state; webhook sync reconciles
// whatever the provider reports.
package billing
