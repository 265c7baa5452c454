// Package email sends transactional billing emails through a
// provider-agnostic Sender interface.
//
// Postmark is the production backend; DevSender writes outgoing mail to disk
// for local development so no real address can ever be hit from a laptop.
// All implementations validate parameters before sending and surface
// provider failures through sentinel errors.
package email
