package digest

import "time"

// Category classifies the kind of work a digest describes.
type Category string

const (
	CategoryFeature  Category = "feature"
	CategoryBugfix   Category = "bugfix"
	CategoryRefactor Category = "refactor"
	CategoryDocs     Category = "docs"
	CategoryChore    Category = "chore"
	CategorySecurity Category = "security"
)

// Categories lists all valid categories in a stable order.
var Categories = []Category{
	CategoryFeature,
	CategoryBugfix,
	CategoryRefactor,
	CategoryDocs,
	CategoryChore,
	CategorySecurity,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Impact is an optional best-effort assessment of a change's blast radius.
type Impact struct {
	Severity  string   `json:"severity"`
	Statement string   `json:"statement"`
	Areas     []string `json:"areas,omitempty"`
}

// Perspective is one ranked stakeholder viewpoint on a change.
type Perspective struct {
	Role      string `json:"role"`
	Viewpoint string `json:"viewpoint"`
	Rank      int    `json:"rank"`
}

// Draft is the synthesized content of a digest before persistence. Both the
// provider call and the deterministic fallback produce this shape; it is
// also what the generation cache stores.
type Draft struct {
	Title        string        `json:"title"`
	Narrative    string        `json:"narrative"`
	Category     Category      `json:"category"`
	Rationale    string        `json:"rationale"`
	Contributors []string      `json:"contributors,omitempty"`
	Impact       *Impact       `json:"impact,omitempty"`
	Perspectives []Perspective `json:"perspectives,omitempty"`
}

// Digest is one synthesized narrative for a single source event. At most one
// digest exists per event.
type Digest struct {
	ID           string        `json:"id"`
	ResourceID   string        `json:"resource_id"`
	EventID      string        `json:"event_id"`
	Title        string        `json:"title"`
	Narrative    string        `json:"narrative"`
	Category     Category      `json:"category"`
	Rationale    string        `json:"rationale"`
	Contributors []string      `json:"contributors,omitempty"`
	Impact       *Impact       `json:"impact,omitempty"`
	Perspectives []Perspective `json:"perspectives,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
