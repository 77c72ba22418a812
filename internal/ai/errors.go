package ai

import "fmt"

// ProviderError is a non-2xx response from the provider. The status code
// drives transient/fatal classification.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider http %d: %s", e.StatusCode, e.Body)
}
