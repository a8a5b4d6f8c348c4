package model

import (
	"strings"
	"time"
)

// DataKind identifies one of the three refreshable row collections.
type DataKind string

const (
	KindFacilities DataKind = "facilities"
	KindLaws       DataKind = "laws"
	KindNews       DataKind = "news"
)

// Facility represents a healthcare location persisted for one state.
// Rows are produced in bulk by a refresh cycle and superseded wholesale by
// the next successful cycle for the same state; they are never updated
// field-by-field.
type Facility struct {
	ID                         string            `json:"id"`
	Name                       string            `json:"name"`
	Type                       string            `json:"type"`
	FacilityType               string            `json:"facility_type,omitempty"`
	Address                    string            `json:"address"`
	City                       string            `json:"city"`
	State                      string            `json:"state"`
	ZipCode                    string            `json:"zip_code"`
	Latitude                   float64           `json:"latitude"`
	Longitude                  float64           `json:"longitude"`
	Phone                      string            `json:"phone"`
	Website                    string            `json:"website,omitempty"`
	AcceptsInsurance           bool              `json:"accepts_insurance"`
	IsVerified                 bool              `json:"is_verified"`
	EmergencyServices          bool              `json:"emergency_services"`
	Telehealth                 bool              `json:"telehealth"`
	Services                   []string          `json:"services"`
	Languages                  []string          `json:"languages"`
	OperatingHours             map[string]string `json:"operating_hours"`
	AcceptedInsuranceProviders []string          `json:"accepted_insurance_providers"`
	Amenities                  []string          `json:"amenities"`
	FinancialAssistance        []string          `json:"financial_assistance"`
	WaitTime                   string            `json:"wait_time,omitempty"`
	CreatedAt                  time.Time         `json:"created_at"`
	UpdatedAt                  time.Time         `json:"updated_at"`
}

// FullAddress joins the postal fields into a single geocodable string.
func (f Facility) FullAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{f.Address, f.City, f.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// HasCoordinates reports whether the facility already carries a resolved
// location. The zero/zero sentinel counts as unresolved.
func (f Facility) HasCoordinates() bool {
	return f.Latitude != 0 || f.Longitude != 0
}

// SourceFacility is the intermediate record emitted by source adapters
// before normalization. Every field is optional; the shape assumptions of
// each external payload are owned by the adapter that produced it.
type SourceFacility struct {
	Name                       string            `json:"name"`
	Type                       string            `json:"type,omitempty"`
	FacilityType               string            `json:"facility_type,omitempty"`
	Address                    string            `json:"address,omitempty"`
	City                       string            `json:"city,omitempty"`
	State                      string            `json:"state,omitempty"`
	ZipCode                    string            `json:"zip_code,omitempty"`
	Phone                      string            `json:"phone,omitempty"`
	Website                    string            `json:"website,omitempty"`
	Latitude                   float64           `json:"latitude,omitempty"`
	Longitude                  float64           `json:"longitude,omitempty"`
	Services                   []string          `json:"services,omitempty"`
	Languages                  []string          `json:"languages,omitempty"`
	OperatingHours             map[string]string `json:"operating_hours,omitempty"`
	AcceptedInsuranceProviders []string          `json:"accepted_insurance_providers,omitempty"`
	Amenities                  []string          `json:"amenities,omitempty"`
	FinancialAssistance        []string          `json:"financial_assistance,omitempty"`
	WaitTime                   string            `json:"wait_time,omitempty"`
	AcceptsInsurance           bool              `json:"accepts_insurance,omitempty"`
	IsVerified                 bool              `json:"is_verified,omitempty"`
	EmergencyServices          bool              `json:"emergency_services,omitempty"`
	Telehealth                 bool              `json:"telehealth,omitempty"`
}
