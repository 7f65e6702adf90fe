package model

import "time"

// ScopeAll marks a history entry produced by an all-sources search.
const ScopeAll = "all"

// SearchRecord is one entry of the search history kept by the API layer.
type SearchRecord struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Scope      string    `json:"scope"` // "all" or a source id
	Total      int       `json:"total"`
	Errors     []string  `json:"errors,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
