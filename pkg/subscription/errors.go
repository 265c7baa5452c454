package subscription

import "errors"

var (
	ErrNotFound      = errors.New("subscription not found")
	ErrAlreadyExists = errors.New("subscription already exists")
	ErrInvalidPeriod = errors.New("subscription period start must precede period end")
)
