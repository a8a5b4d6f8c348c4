package model

import "time"

// Law is a jurisdiction-scoped legal or regulatory statement. Laws follow
// the same bulk-replace-per-state lifecycle as facilities.
type Law struct {
	ID            string     `json:"id"`
	State         string     `json:"state"`
	Category      string     `json:"category"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Source        string     `json:"source"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	LastUpdated   time.Time  `json:"last_updated"`
}
