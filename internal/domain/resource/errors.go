package resource

import "errors"

var (
	// ErrUnauthorized indicates the caller tenant doesn't own the resource,
	// or the resource doesn't exist. The two cases are deliberately
	// indistinguishable to callers.
	ErrUnauthorized = errors.New("unauthorized")
)
