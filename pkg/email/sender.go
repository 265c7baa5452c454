package email

import (
	"context"
	"fmt"
	"regexp"
)

// addressRegex accepts the practical subset of RFC 5322 addresses.
var addressRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether addr looks like a deliverable email address.
func ValidAddress(addr string) bool {
	return addressRegex.MatchString(addr)
}

// Sender sends one email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams carries one outbound message. Tag groups messages by kind
// in the provider's activity view.
type SendEmailParams struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks the params are sendable.
func (p SendEmailParams) Validate() error {
	if !ValidAddress(p.To) {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, p.To)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}
