package refresh

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/normalize"
	"github.com/haven-collective/careatlas/internal/source"
	"github.com/haven-collective/careatlas/internal/store"
	"github.com/haven-collective/careatlas/pkg/geocode"
)

// Generator runs the user-triggered generative path: prompt for a
// facility batch, normalize, geocode, and replace the state's rows.
// Unlike the periodic cycle it fails loudly, so callers can surface the
// error to whoever pressed the button.
type Generator struct {
	source   source.FacilitySource
	geocoder geocode.Client
	store    store.Store
}

// NewGenerator creates a Generator.
func NewGenerator(src source.FacilitySource, gc geocode.Client, st store.Store) *Generator {
	return &Generator{source: src, geocoder: gc, store: st}
}

// Generate produces and persists a fresh facility batch for the state,
// returning the number of rows written.
func (g *Generator) Generate(ctx context.Context, state string) (int, error) {
	records, err := g.source.Facilities(ctx, state)
	if err != nil {
		return 0, eris.Wrapf(err, "generate: source for %s", state)
	}

	facilities := normalize.FacilityBatch(records, state)
	if len(facilities) == 0 {
		return 0, eris.Errorf("generate: no usable facilities for %s", state)
	}
	facilities = Geocode(ctx, g.geocoder, facilities)

	if err := g.store.ReplaceFacilities(ctx, state, facilities); err != nil {
		return 0, eris.Wrapf(err, "generate: persist for %s", state)
	}

	zap.L().Info("generate: replaced facility batch",
		zap.String("state", state),
		zap.Int("count", len(facilities)),
	)
	return len(facilities), nil
}
