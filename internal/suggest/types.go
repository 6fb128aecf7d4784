// Package suggest implements product suggestion ranking: a full-text
// primary backend with a relational fallback, fused with the profile's own
// purchase history. History entries always outrank global catalog matches.
package suggest

import "context"

// Source tells the client where a suggestion came from.
type Source string

const (
	SourceHistory Source = "history"
	SourceCatalog Source = "catalog"
)

// Candidate is one ranked product from a catalog backend, before fusion
// with history.
type Candidate struct {
	Name        string
	Category    string
	DefaultUnit string
	UsageCount  int64
	Score       float64
}

// Suggestion is one fused suggestion returned to the client. The history
// fields are only populated for history-sourced entries.
type Suggestion struct {
	Name        string  `json:"name"`
	Source      Source  `json:"source"`
	Category    string  `json:"category,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	UsageCount  int64   `json:"usageCount,omitempty"`
	Score       float64 `json:"score,omitempty"`
	TimesBought int64   `json:"timesBought,omitempty"`
	AvgQuantity float64 `json:"avgQuantity,omitempty"`
}

// Provider is a ranked product search backend.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string
	// Search returns up to limit candidates for q, best first.
	Search(ctx context.Context, q string, limit int) ([]Candidate, error)
}
