// Package notify turns verified billing events into customer emails without
// ever trusting the event payload for addressing.
//
// The recipient is resolved exclusively from the provider customer ID
// through the tenant directory; an email address appearing inside a webhook
// payload is never used. Each (event, type, customer) triple is claimed in a
// durable dispatch log before the send, so a replayed webhook produces at
// most one email. Every outcome, including the skips, is recorded in the
// log and the audit trail.
package notify
