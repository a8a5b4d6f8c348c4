// Package normalize maps intermediate source records into canonical rows.
// All functions are pure: incomplete records are filtered, not errors, and
// absent optional fields get deterministic defaults.
package normalize

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/haven-collective/careatlas/internal/model"
)

// DefaultFacilityType is applied when a source supplies no category.
const DefaultFacilityType = "Healthcare Center"

var (
	defaultServices  = []string{"General Healthcare"}
	defaultLanguages = []string{"English"}
	defaultAmenities = []string{
		"Wheelchair Accessible",
		"Public Transit Access",
		"Parking Available",
	}

	titleCaser = cases.Title(language.AmericanEnglish)
)

// Facility maps an intermediate record into a canonical Facility for the
// given state. Records missing a name or street address are dropped
// (ok=false): incomplete source data is expected and filtered silently.
func Facility(rec model.SourceFacility, state string) (model.Facility, bool) {
	name := strings.TrimSpace(rec.Name)
	address := strings.TrimSpace(rec.Address)
	if name == "" || address == "" {
		return model.Facility{}, false
	}

	now := time.Now().UTC()
	f := model.Facility{
		Name:                       name,
		Type:                       facilityType(rec.Type),
		FacilityType:               strings.TrimSpace(rec.FacilityType),
		Address:                    address,
		City:                       strings.TrimSpace(rec.City),
		State:                      strings.ToUpper(strings.TrimSpace(state)),
		ZipCode:                    strings.TrimSpace(rec.ZipCode),
		Latitude:                   rec.Latitude,
		Longitude:                  rec.Longitude,
		Phone:                      strings.TrimSpace(rec.Phone),
		Website:                    strings.TrimSpace(rec.Website),
		AcceptsInsurance:           rec.AcceptsInsurance,
		IsVerified:                 rec.IsVerified,
		EmergencyServices:          rec.EmergencyServices,
		Telehealth:                 rec.Telehealth,
		Services:                   orDefault(rec.Services, defaultServices),
		Languages:                  orDefault(rec.Languages, defaultLanguages),
		OperatingHours:             rec.OperatingHours,
		AcceptedInsuranceProviders: orDefault(rec.AcceptedInsuranceProviders, []string{}),
		Amenities:                  orDefault(rec.Amenities, defaultAmenities),
		FinancialAssistance:        orDefault(rec.FinancialAssistance, []string{}),
		WaitTime:                   strings.TrimSpace(rec.WaitTime),
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	if f.OperatingHours == nil {
		f.OperatingHours = map[string]string{}
	}
	return f, true
}

// FacilityBatch filters and normalizes a whole slice.
func FacilityBatch(recs []model.SourceFacility, state string) []model.Facility {
	out := make([]model.Facility, 0, len(recs))
	for _, rec := range recs {
		if f, ok := Facility(rec, state); ok {
			out = append(out, f)
		}
	}
	return out
}

// Law validates a law record. State, category, title, and content are
// required; incomplete records are dropped.
func Law(rec model.Law) (model.Law, bool) {
	if strings.TrimSpace(rec.State) == "" ||
		strings.TrimSpace(rec.Category) == "" ||
		strings.TrimSpace(rec.Title) == "" ||
		strings.TrimSpace(rec.Content) == "" {
		return model.Law{}, false
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}
	rec.State = strings.ToUpper(strings.TrimSpace(rec.State))
	return rec, true
}

// LawBatch filters a whole slice.
func LawBatch(recs []model.Law) []model.Law {
	out := make([]model.Law, 0, len(recs))
	for _, rec := range recs {
		if l, ok := Law(rec); ok {
			out = append(out, l)
		}
	}
	return out
}

// News maps an intermediate news record for the given state. Title and
// content are required. An unparseable or absent publish date defaults to
// now; an absent relevance score defaults to model.DefaultRelevanceScore,
// while an explicit zero is kept.
func News(rec model.SourceNews, state string) (model.NewsUpdate, bool) {
	title := strings.TrimSpace(rec.Title)
	content := strings.TrimSpace(rec.Content)
	if title == "" || content == "" {
		return model.NewsUpdate{}, false
	}

	now := time.Now().UTC()
	published := now
	if ts, err := time.Parse("2006-01-02", strings.TrimSpace(rec.PublishedAt)); err == nil {
		published = ts
	}

	score := model.DefaultRelevanceScore
	if rec.RelevanceScore != nil {
		score = *rec.RelevanceScore
	}

	return model.NewsUpdate{
		Title:          title,
		Content:        content,
		SourceURL:      strings.TrimSpace(rec.SourceURL),
		SourceName:     strings.TrimSpace(rec.SourceName),
		State:          strings.ToUpper(strings.TrimSpace(state)),
		Category:       strings.TrimSpace(rec.Category),
		PublishedAt:    published,
		CreatedAt:      now,
		RelevanceScore: score,
	}, true
}

// NewsBatch filters and normalizes a whole slice.
func NewsBatch(recs []model.SourceNews, state string) []model.NewsUpdate {
	out := make([]model.NewsUpdate, 0, len(recs))
	for _, rec := range recs {
		if n, ok := News(rec, state); ok {
			out = append(out, n)
		}
	}
	return out
}

func facilityType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return DefaultFacilityType
	}
	return titleCaser.String(t)
}

func orDefault(vals, fallback []string) []string {
	if len(vals) == 0 {
		return fallback
	}
	return vals
}
