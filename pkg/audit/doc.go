// Package audit records billing lifecycle events in a durable trail.
//
// Every plan transition, cycle reset and notification outcome is written as
// an immutable Event. The trail exists to answer "what happened to this
// tenant's subscription and when" during billing disputes, so writes favor
// completeness over latency and failures are reported to the caller instead
// of being swallowed.
package audit
