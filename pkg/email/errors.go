package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrInvalidParams     = errors.New("invalid email parameters")
	ErrInvalidConfig     = errors.New("invalid email config")
)
