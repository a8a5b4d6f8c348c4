package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/model"
	"github.com/haven-collective/careatlas/pkg/llm"
)

const facilitySystemPrompt = "You are a JSON generator for healthcare facility data. " +
	"Return only valid JSON arrays with realistic, diverse facility information. " +
	"Use real addresses and locations. No additional text or comments."

const newsSystemPrompt = "You are a reproductive healthcare policy expert focused on " +
	"providing accurate, up-to-date information about healthcare access and policies."

// GenerativeFacilitySource produces facility batches from a generative
// text service. This path is user-triggered rather than periodic, so a
// response that is not ultimately an array fails loudly instead of being
// swallowed.
type GenerativeFacilitySource struct {
	client llm.Client
	model  string
}

// NewGenerativeFacilitySource creates a GenerativeFacilitySource.
func NewGenerativeFacilitySource(client llm.Client, modelID string) *GenerativeFacilitySource {
	return &GenerativeFacilitySource{client: client, model: modelID}
}

func (s *GenerativeFacilitySource) Name() string { return "generative-facilities" }

// generatedFacility mirrors the documented response shape the prompt asks
// for. Keys are camelCase per the prompt contract.
type generatedFacility struct {
	Name                       string            `json:"name"`
	FacilityType               string            `json:"facilityType"`
	Address                    string            `json:"address"`
	City                       string            `json:"city"`
	State                      string            `json:"state"`
	ZipCode                    string            `json:"zipCode"`
	Phone                      string            `json:"phone"`
	Website                    string            `json:"website"`
	Services                   []string          `json:"services"`
	AcceptsInsurance           bool              `json:"acceptsInsurance"`
	IsVerified                 bool              `json:"isVerified"`
	OperatingHours             map[string]string `json:"operatingHours"`
	Languages                  []string          `json:"languages"`
	AcceptedInsuranceProviders []string          `json:"acceptedInsuranceProviders"`
	Amenities                  []string          `json:"amenities"`
	WaitTime                   string            `json:"waitTime"`
	EmergencyServices          bool              `json:"emergencyServices"`
	Telehealth                 bool              `json:"telehealth"`
	FinancialAssistance        []string          `json:"financialAssistance"`
}

// Facilities prompts for a JSON array of facilities in the state. The
// response may arrive as a bare array, as a {"facilities": [...]}
// container, or as a single object; the container is unwrapped and a
// single object is wrapped into a one-element batch.
func (s *GenerativeFacilitySource) Facilities(ctx context.Context, state string) ([]model.SourceFacility, error) {
	temp := 0.7
	resp, err := s.client.Complete(ctx, llm.Request{
		Model:       s.model,
		MaxTokens:   4096,
		System:      facilitySystemPrompt,
		Prompt:      facilityPrompt(state),
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "generative: facility completion")
	}

	items, err := decodeArray(resp.Text, "facilities")
	if err != nil {
		return nil, eris.Wrap(err, "generative: facility response")
	}

	records := make([]model.SourceFacility, 0, len(items))
	for _, raw := range items {
		var gf generatedFacility
		if err := json.Unmarshal(raw, &gf); err != nil {
			zap.L().Warn("generative: skipping malformed facility item", zap.Error(err))
			continue
		}
		records = append(records, model.SourceFacility{
			Name:                       gf.Name,
			FacilityType:               gf.FacilityType,
			Type:                       gf.FacilityType,
			Address:                    gf.Address,
			City:                       gf.City,
			State:                      gf.State,
			ZipCode:                    gf.ZipCode,
			Phone:                      gf.Phone,
			Website:                    gf.Website,
			Services:                   gf.Services,
			AcceptsInsurance:           gf.AcceptsInsurance,
			IsVerified:                 gf.IsVerified,
			OperatingHours:             gf.OperatingHours,
			Languages:                  gf.Languages,
			AcceptedInsuranceProviders: gf.AcceptedInsuranceProviders,
			Amenities:                  gf.Amenities,
			WaitTime:                   gf.WaitTime,
			EmergencyServices:          gf.EmergencyServices,
			Telehealth:                 gf.Telehealth,
			FinancialAssistance:        gf.FinancialAssistance,
		})
	}

	zap.L().Info("generative: parsed facility batch",
		zap.String("state", state),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// GenerativeNewsSource produces dated news items from the generative
// service for the periodic cycle.
type GenerativeNewsSource struct {
	client llm.Client
	model  string
}

// NewGenerativeNewsSource creates a GenerativeNewsSource.
func NewGenerativeNewsSource(client llm.Client, modelID string) *GenerativeNewsSource {
	return &GenerativeNewsSource{client: client, model: modelID}
}

func (s *GenerativeNewsSource) Name() string { return "generative-news" }

// News prompts for a {"updates": [...]} object and returns the parsed
// items. A malformed response is an error the periodic cycle logs and
// treats as zero records.
func (s *GenerativeNewsSource) News(ctx context.Context, state string) ([]model.SourceNews, error) {
	temp := 0.5
	resp, err := s.client.Complete(ctx, llm.Request{
		Model:       s.model,
		MaxTokens:   2048,
		System:      newsSystemPrompt,
		Prompt:      newsPrompt(state),
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "generative: news completion")
	}

	items, err := decodeArray(resp.Text, "updates")
	if err != nil {
		return nil, eris.Wrap(err, "generative: news response")
	}

	updates := make([]model.SourceNews, 0, len(items))
	for _, raw := range items {
		var n model.SourceNews
		if err := json.Unmarshal(raw, &n); err != nil {
			zap.L().Warn("generative: skipping malformed news item", zap.Error(err))
			continue
		}
		updates = append(updates, n)
	}
	return updates, nil
}

// decodeArray parses untrusted completion text as a JSON array. An object
// carrying the named container field is unwrapped; any other single
// object is wrapped into a one-element array. A result that is still not
// an array is an explicit parse error.
func decodeArray(text, containerField string) ([]json.RawMessage, error) {
	cleaned := cleanJSON(text)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &items); err == nil {
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, eris.Wrap(err, "not valid JSON")
	}

	if inner, ok := obj[containerField]; ok {
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, eris.Wrapf(err, "field %q is not an array", containerField)
		}
		return items, nil
	}

	// A single bare object becomes a one-element batch.
	return []json.RawMessage{json.RawMessage(cleaned)}, nil
}

// cleanJSON strips markdown fences and surrounding prose from completion
// text, keeping the outermost JSON value.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	text = strings.TrimSpace(text)

	// Keep from the first bracket of either kind through its matching end.
	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		if end := strings.LastIndex(text, "]"); end > arrStart {
			text = text[arrStart : end+1]
		}
	case objStart >= 0:
		if end := strings.LastIndex(text, "}"); end > objStart {
			text = text[objStart : end+1]
		}
	}

	return strings.TrimSpace(text)
}

func facilityPrompt(state string) string {
	return fmt.Sprintf(`Generate a detailed JSON array of 40 women's health facilities in %[1]s with realistic information. Include major cities and suburban areas. Each facility should have:

1. Real addresses in %[1]s (use actual street names and cities)
2. Realistic phone numbers with correct area codes for %[1]s
3. Diverse types of facilities:
   - Women's Health Centers
   - OB/GYN Clinics
   - Family Planning Centers
   - Reproductive Health Clinics
   - Community Health Centers

Each facility should follow this exact format:
{
  "name": "Facility Name",
  "facilityType": "Type",
  "address": "Full street address",
  "city": "City name",
  "state": "%[1]s",
  "zipCode": "ZIP code",
  "phone": "Phone number",
  "website": "Website URL",
  "services": ["List of services"],
  "acceptsInsurance": true/false,
  "isVerified": true/false,
  "operatingHours": {
    "monday": "Hours",
    "tuesday": "Hours",
    "wednesday": "Hours",
    "thursday": "Hours",
    "friday": "Hours",
    "saturday": "Hours",
    "sunday": "Hours"
  },
  "languages": ["Languages offered"],
  "acceptedInsuranceProviders": ["Insurance providers"],
  "amenities": ["Available amenities"],
  "waitTime": "Typical wait time",
  "emergencyServices": true/false,
  "telehealth": true/false,
  "financialAssistance": ["Financial assistance options"]
}`, state)
}

func newsPrompt(state string) string {
	return fmt.Sprintf(`As a reproductive healthcare policy expert, analyze and summarize the most recent reproductive healthcare news, laws, and policy updates for %[1]s state. Format your response as JSON with the following structure for each update:
{
  "updates": [
    {
      "title": "Brief, informative title",
      "content": "Detailed summary of the update (2-3 sentences)",
      "sourceUrl": "URL of a reliable source covering this update",
      "sourceName": "Name of the source organization",
      "category": "One of: Policy, Access, Legal, Healthcare, Education",
      "publishedAt": "YYYY-MM-DD format date"
    }
  ]
}

Focus on factual, verified information from reliable sources like state health departments, major news outlets, and healthcare organizations.`, state)
}
