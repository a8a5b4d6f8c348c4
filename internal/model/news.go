package model

import "time"

// NewsRetentionWindow is the rolling span within which news rows are kept.
// A refresh purges rows older than this before inserting a fresh batch;
// news accumulates within the window rather than fully resetting.
const NewsRetentionWindow = 30 * 24 * time.Hour

// DefaultRelevanceScore is assigned to news items whose source supplies
// no score of its own.
const DefaultRelevanceScore = 1.0

// NewsUpdate is a dated news item, optionally scoped to a state.
type NewsUpdate struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	SourceURL      string    `json:"source_url"`
	SourceName     string    `json:"source_name"`
	State          string    `json:"state,omitempty"`
	Category       string    `json:"category"`
	PublishedAt    time.Time `json:"published_at"`
	CreatedAt      time.Time `json:"created_at"`
	RelevanceScore float64   `json:"relevance_score"`
}

// IsStale reports whether the item has aged out of the retention window.
func (n NewsUpdate) IsStale(now time.Time) bool {
	return n.PublishedAt.Before(now.Add(-NewsRetentionWindow))
}

// SourceNews is the intermediate news record emitted by the generative
// adapter before normalization. The publish date arrives as YYYY-MM-DD
// text and is parsed during normalization. RelevanceScore is a pointer so
// an explicit zero from the source survives normalization; only an absent
// score gets the default.
type SourceNews struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	SourceURL      string   `json:"sourceUrl"`
	SourceName     string   `json:"sourceName"`
	Category       string   `json:"category"`
	PublishedAt    string   `json:"publishedAt"`
	RelevanceScore *float64 `json:"relevanceScore,omitempty"`
}
