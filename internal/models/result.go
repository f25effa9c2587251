package models

// SearchResult is a single nearest-neighbour hit.
type SearchResult struct {
	ID       string   `json:"id"`
	Content  string   `json:"page_content"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// TieredResults holds one independent result list per permission tier. Lists are never merged.
type TieredResults struct {
	Tiers   []Permission
	Results map[Permission][]SearchResult
}

// Tier returns the results for p, or an empty (non-nil) slice.
func (t *TieredResults) Tier(p Permission) []SearchResult {
	if t == nil || t.Results[p] == nil {
		return []SearchResult{}
	}
	return t.Results[p]
}
