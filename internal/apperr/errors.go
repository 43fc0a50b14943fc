// Package apperr defines the sentinel error kinds shared across dagaz.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidRule marks a malformed or ambiguous recurrence rule.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrInvalidRange marks an unusable custom view window.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidInterval marks a relative interval expression with no
	// components or a zero total duration.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrMalformedExpression marks structurally broken filter syntax.
	ErrMalformedExpression = errors.New("malformed expression")
)
