package summary

import "errors"

var (
	// ErrSummaryNotFound indicates no summary exists for the period.
	ErrSummaryNotFound = errors.New("summary not found")
	// ErrSummarySettled indicates a write was attempted after settlement.
	ErrSummarySettled = errors.New("summary already settled")
	// ErrInvalidGranularity indicates an unknown granularity value.
	ErrInvalidGranularity = errors.New("invalid granularity")
)
