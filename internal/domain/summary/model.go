package summary

import (
	"time"

	"github.com/chronicle-dev/chronicle/internal/domain/digest"
)

// Granularity is the period size a summary rolls up.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Granularities lists all granularities in ascending period size.
var Granularities = []Granularity{GranularityDaily, GranularityWeekly, GranularityMonthly}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// State tracks the summary write lifecycle. Partial writes are only
// permitted while streaming; settling is a one-way transition.
type State string

const (
	StateStreaming State = "streaming"
	StateSettled   State = "settled"
)

// BreakdownEntry is the per-category slice of the work-breakdown histogram.
type BreakdownEntry struct {
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// Summary is an immutable-per-period rollup of many digests into an
// executive narrative. (resource, granularity, period start) is unique.
type Summary struct {
	ID              string                             `json:"id"`
	ResourceID      string                             `json:"resource_id"`
	Granularity     Granularity                        `json:"granularity"`
	PeriodStart     time.Time                          `json:"period_start"`
	Headline        string                             `json:"headline"`
	Accomplishments []string                           `json:"accomplishments,omitempty"`
	KeyFeatures     []string                           `json:"key_features,omitempty"`
	Breakdown       map[digest.Category]BreakdownEntry `json:"breakdown,omitempty"`
	TotalItems      int                                `json:"total_items"`
	DigestIDs       []string                           `json:"digest_ids,omitempty"`
	State           State                              `json:"state"`
	UpdatedAt       time.Time                          `json:"updated_at"`
}

// ComputeBreakdown rebuilds the work-breakdown histogram from the complete
// set of included digests. It is always recomputed from scratch, never as a
// running delta, so rounding error can't compound. Percentages are rounded
// and may not sum to exactly 100.
func ComputeBreakdown(digests []digest.Digest) (map[digest.Category]BreakdownEntry, int) {
	total := len(digests)
	if total == 0 {
		return map[digest.Category]BreakdownEntry{}, 0
	}

	counts := make(map[digest.Category]int)
	for _, d := range digests {
		counts[d.Category]++
	}

	breakdown := make(map[digest.Category]BreakdownEntry, len(counts))
	for cat, count := range counts {
		pct := int(float64(count)/float64(total)*100 + 0.5)
		breakdown[cat] = BreakdownEntry{Count: count, Percentage: pct}
	}
	return breakdown, total
}
