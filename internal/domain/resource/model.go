package resource

import "time"

// ModelTier selects the provider model class used for a resource.
type ModelTier string

const (
	TierFast    ModelTier = "fast"
	TierQuality ModelTier = "quality"
)

// Resource is the repository/project scope every tenant owns. All
// authorization and cache partitioning is keyed on its ID.
type Resource struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	ExternalRef string    `json:"external_ref"`
	ModelTier   ModelTier `json:"model_tier"`
	CreatedAt   time.Time `json:"created_at"`
}
