package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAnimation = errors.New("invalid animation state")
	ErrNoIllustration   = errors.New("step has no stored illustration to animate")
	ErrProviderFailure  = errors.New("provider failure")
)
