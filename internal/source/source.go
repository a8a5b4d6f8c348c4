// Package source holds the per-source adapters that turn one external
// payload shape into intermediate records. Each adapter owns its own
// defensive parsing; shape assumptions never leak past the adapter
// boundary.
package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/model"
)

// FacilitySource produces intermediate facility records for a state.
type FacilitySource interface {
	// Name identifies the source in logs.
	Name() string

	// Facilities returns zero or more intermediate records, or an error
	// meaning "no data from this source". Callers proceed on error
	// rather than aborting the cycle.
	Facilities(ctx context.Context, state string) ([]model.SourceFacility, error)
}

// NewsSource produces intermediate news records for a state.
type NewsSource interface {
	Name() string
	News(ctx context.Context, state string) ([]model.SourceNews, error)
}

// Collect tries the live sources in their fixed priority order and
// concatenates their outputs without deduplication. A failed source
// contributes zero records. If the concatenation is empty the static
// fallback's records are used for this cycle.
func Collect(ctx context.Context, state string, live []FacilitySource, fallback *StaticSource) []model.SourceFacility {
	var records []model.SourceFacility
	for _, src := range live {
		recs, err := src.Facilities(ctx, state)
		if err != nil {
			zap.L().Warn("source yielded no data",
				zap.String("source", src.Name()),
				zap.String("state", state),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("source produced records",
			zap.String("source", src.Name()),
			zap.String("state", state),
			zap.Int("count", len(recs)),
		)
		records = append(records, recs...)
	}

	if len(records) == 0 && fallback != nil {
		zap.L().Info("all live sources empty, using static seed data",
			zap.String("state", state),
		)
		recs, _ := fallback.Facilities(ctx, state)
		return recs
	}

	return records
}
