package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/haven-collective/careatlas/internal/fetcher"
	"github.com/haven-collective/careatlas/internal/model"
)

// DefaultDirectoryBaseURL is the HRSA health-center widget API root.
const DefaultDirectoryBaseURL = "https://findahealthcenter.hrsa.gov"

var (
	directoryServices = []string{
		"Primary Care",
		"Reproductive Health",
		"Family Planning",
		"STI Testing",
		"Preventive Care",
	}
	directoryHours = map[string]string{
		"monday":    "8:00 AM - 6:00 PM",
		"tuesday":   "8:00 AM - 6:00 PM",
		"wednesday": "8:00 AM - 6:00 PM",
		"thursday":  "8:00 AM - 6:00 PM",
		"friday":    "8:00 AM - 5:00 PM",
		"saturday":  "9:00 AM - 1:00 PM",
		"sunday":    "Closed",
	}
	directoryInsurers  = []string{"Medicare", "Medicaid", "Private Insurance"}
	directoryAmenities = []string{
		"Wheelchair Accessible",
		"Public Transit Access",
		"Parking Available",
	}
)

// DirectorySource pulls the HRSA health-center directory API.
type DirectorySource struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewDirectorySource creates a DirectorySource. An empty baseURL uses the
// HRSA widget API.
func NewDirectorySource(f fetcher.Fetcher, baseURL string) *DirectorySource {
	if baseURL == "" {
		baseURL = DefaultDirectoryBaseURL
	}
	return &DirectorySource{fetcher: f, baseURL: baseURL}
}

func (s *DirectorySource) Name() string { return "hrsa-directory" }

// directoryPayload mirrors the widget API response shape. Coordinates may
// arrive as numbers or strings depending on the endpoint version.
type directoryPayload struct {
	Centers []directoryCenter `json:"centers"`
}

type directoryCenter struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Address   string            `json:"address"`
	City      string            `json:"city"`
	State     string            `json:"state"`
	Zip       string            `json:"zip"`
	Phone     string            `json:"phone"`
	Website   string            `json:"website"`
	Latitude  flexCoord         `json:"latitude"`
	Longitude flexCoord         `json:"longitude"`
	Services  []string          `json:"services"`
	Languages []string          `json:"languages"`
	Hours     map[string]string `json:"hours"`
}

// Facilities fetches and maps the directory payload. Malformed JSON is
// reported as an error so the adapter contributes zero records without
// crashing the cycle.
func (s *DirectorySource) Facilities(ctx context.Context, state string) ([]model.SourceFacility, error) {
	url := fmt.Sprintf("%s/widget/api/state=%s", s.baseURL, state)
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: fetch %s", url)
	}

	var payload directoryPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "directory: malformed response")
	}

	records := make([]model.SourceFacility, 0, len(payload.Centers))
	for _, c := range payload.Centers {
		rec := model.SourceFacility{
			Name:                       c.Name,
			Type:                       orString(c.Type, "Health Center"),
			Address:                    c.Address,
			City:                       c.City,
			State:                      c.State,
			ZipCode:                    c.Zip,
			Phone:                      c.Phone,
			Website:                    c.Website,
			Latitude:                   float64(c.Latitude),
			Longitude:                  float64(c.Longitude),
			Services:                   orSlice(c.Services, directoryServices),
			Languages:                  orSlice(c.Languages, []string{"English", "Spanish"}),
			OperatingHours:             orMap(c.Hours, directoryHours),
			AcceptedInsuranceProviders: directoryInsurers,
			Amenities:                  directoryAmenities,
			AcceptsInsurance:           true,
			IsVerified:                 true,
		}
		records = append(records, rec)
	}
	return records, nil
}

// flexCoord accepts a coordinate published as either a JSON number or a
// quoted string. Values that parse as neither decode to zero, which the
// geocoder later treats as missing.
type flexCoord float64

func (c *flexCoord) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = flexCoord(v)
	return nil
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orSlice(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}

func orMap(v, fallback map[string]string) map[string]string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
