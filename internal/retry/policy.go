// Package retry classifies generation failures and applies the pipeline's
// single-retry rule: one opportunistic retry after a fixed delay on a
// transient failure, nothing more. The external task queue layers its own
// backoff on top; anything beyond one retry here risks cascading delay
// inside a bounded execution budget.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/chronicle-dev/chronicle/internal/ai"
)

// Class is the failure classification.
type Class int

const (
	// Fatal failures don't benefit from retrying: validation errors,
	// malformed responses, auth rejections.
	Fatal Class = iota
	// Transient failures may clear on retry: rate limits, timeouts,
	// network failures, provider 5xx.
	Transient
)

// Classify maps an error to its retry class.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	var provErr *ai.ProviderError
	if errors.As(err, &provErr) {
		if provErr.StatusCode == 429 || provErr.StatusCode >= 500 {
			return Transient
		}
		return Fatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}

	return Fatal
}

// Policy applies the one-retry rule with a fixed delay.
type Policy struct {
	delay  time.Duration
	logger *slog.Logger
}

// NewPolicy creates a retry policy.
func NewPolicy(delay time.Duration, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{delay: delay, logger: logger}
}

// Do runs op, retrying exactly once after the fixed delay when the first
// failure classifies as transient. Fatal failures and second failures are
// returned to the caller.
func (p *Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	if Classify(err) != Transient {
		return err
	}

	p.logger.Warn("transient failure, retrying once", "op", name, "error", err)

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	return op(ctx)
}
