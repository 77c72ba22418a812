package digest

import "errors"

var (
	// ErrDigestNotFound indicates the digest doesn't exist for the resource.
	ErrDigestNotFound = errors.New("digest not found")
)
