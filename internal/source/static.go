package source

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/haven-collective/careatlas/internal/model"
)

//go:embed seed.yaml
var seedYAML []byte

// seedFile is the embedded seed dataset layout.
type seedFile struct {
	Facilities map[string][]seedFacility `yaml:"facilities"`
}

type seedFacility struct {
	Name             string            `yaml:"name"`
	Address          string            `yaml:"address"`
	City             string            `yaml:"city"`
	State            string            `yaml:"state"`
	ZipCode          string            `yaml:"zip_code"`
	Latitude         float64           `yaml:"latitude"`
	Longitude        float64           `yaml:"longitude"`
	Type             string            `yaml:"type"`
	Phone            string            `yaml:"phone"`
	Website          string            `yaml:"website"`
	AcceptsInsurance bool              `yaml:"accepts_insurance"`
	IsVerified       bool              `yaml:"is_verified"`
	Services         []string          `yaml:"services"`
	OperatingHours   map[string]string `yaml:"operating_hours"`
}

// StaticSource serves the hand-curated seed dataset. It is consulted only
// when every live adapter for a state yields zero records.
type StaticSource struct {
	once sync.Once
	seed seedFile
	err  error
}

// NewStaticSource creates a StaticSource backed by the embedded seed file.
func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

func (s *StaticSource) Name() string { return "static-seed" }

func (s *StaticSource) load() error {
	s.once.Do(func() {
		if err := yaml.Unmarshal(seedYAML, &s.seed); err != nil {
			s.err = eris.Wrap(err, "static: decode seed data")
		}
	})
	return s.err
}

// Facilities returns the seed records for a state, or an empty batch for
// states without seed data.
func (s *StaticSource) Facilities(_ context.Context, state string) ([]model.SourceFacility, error) {
	if err := s.load(); err != nil {
		return nil, err
	}

	seeds := s.seed.Facilities[state]
	records := make([]model.SourceFacility, 0, len(seeds))
	for _, f := range seeds {
		records = append(records, model.SourceFacility{
			Name:             f.Name,
			Type:             f.Type,
			Address:          f.Address,
			City:             f.City,
			State:            f.State,
			ZipCode:          f.ZipCode,
			Latitude:         f.Latitude,
			Longitude:        f.Longitude,
			Phone:            f.Phone,
			Website:          f.Website,
			AcceptsInsurance: f.AcceptsInsurance,
			IsVerified:       f.IsVerified,
			Services:         f.Services,
			OperatingHours:   f.OperatingHours,
		})
	}
	return records, nil
}

// DefaultLaws returns the curated baseline law records for any state.
// Laws have no reliable machine-readable source, so every cycle persists
// this set with fresh dates.
func DefaultLaws(state string) []model.Law {
	now := time.Now().UTC()
	effective := now
	return []model.Law{
		{
			State:    state,
			Category: "General",
			Title:    "Women's Healthcare Rights Overview",
			Content: fmt.Sprintf("As of %s, women in %s have various healthcare rights and protections. "+
				"The National Women's Law Center (nwlc.org) provides comprehensive information about healthcare rights and protections. "+
				"For detailed state-specific information, visit your state's health department website.",
				now.Format("1/2/2006"), state),
			Source:        "National Women's Law Center - nwlc.org/healthcare",
			EffectiveDate: &effective,
			LastUpdated:   now,
		},
		{
			State:    state,
			Category: "Maternal Health",
			Title:    "Maternal Health Coverage",
			Content: fmt.Sprintf("%s provides various maternal health services and protections. "+
				"The American College of Obstetricians and Gynecologists (acog.org) provides evidence-based guidelines for maternal care. "+
				"Kaiser Family Foundation (kff.org) offers detailed state-level analysis of maternal health policies and coverage options.",
				state),
			Source:        "ACOG - acog.org/clinical/clinical-guidance, KFF - kff.org/womens-health-policy",
			EffectiveDate: &effective,
			LastUpdated:   now,
		},
		{
			State:    state,
			Category: "Preventive Care",
			Title:    "Preventive Care Access",
			Content: fmt.Sprintf("Women in %s have access to various preventive care services. "+
				"The Guttmacher Institute provides comprehensive analysis of state policies affecting reproductive healthcare access. "+
				"For detailed information about preventive services coverage, visit healthcare.gov/preventive-care-women/.",
				state),
			Source:        "Guttmacher Institute - guttmacher.org/state-policy",
			EffectiveDate: &effective,
			LastUpdated:   now,
		},
		{
			State:    state,
			Category: "Workplace Rights",
			Title:    "Workplace Rights and Accommodations",
			Content: fmt.Sprintf("%s has specific laws protecting women's rights in the workplace. "+
				"The National Partnership for Women & Families (nationalpartnership.org) provides detailed resources about workplace rights, "+
				"including pregnancy accommodations and protection against discrimination.",
				state),
			Source:        "National Partnership for Women & Families - nationalpartnership.org/our-work/workplace",
			EffectiveDate: &effective,
			LastUpdated:   now,
		},
	}
}
