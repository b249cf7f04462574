package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrJobNotFound     = errors.New("bulk job not found")
	ErrJobNotRunnable  = errors.New("bulk job already started")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrFieldTooLong    = errors.New("field too long")
	ErrBatchUnreadable = errors.New("batch source cannot be read")
)
