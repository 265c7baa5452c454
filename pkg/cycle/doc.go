// Package cycle rolls billing-period boundaries forward and zeroes the
// usage counter exactly once per rollover.
//
// The reset is lazy: every quota-consuming request calls EnsureFresh before
// checking limits, so correctness never depends on a scheduled job. The
// Sweeper exists purely as a redundancy net for tenants that stop making
// requests; it is guarded by a distributed lock so only one instance runs it.
package cycle
