package models

import "time"

// Project scopes tracked events and funnels. Surface is the product surface
// or environment the project covers (e.g. Home Feed, Search, Boards).
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Surface   string    `json:"surface,omitempty"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaskedAPIKey returns the API key truncated for display. Full keys are only
// shown once, at creation time.
func (p *Project) MaskedAPIKey() string {
	if len(p.APIKey) <= 13 {
		return p.APIKey
	}
	return p.APIKey[:10] + "***"
}

type CreateProjectRequest struct {
	Name    string `json:"name" binding:"required"`
	Surface string `json:"surface"`
}
