package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-collective/careatlas/internal/model"
)

// fakeFetcher returns a canned body keyed by URL, or a single body for
// any URL when only one entry is present.
type fakeFetcher struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

type stubFacilitySource struct {
	name string
	recs []model.SourceFacility
	err  error
}

func (s *stubFacilitySource) Name() string { return s.name }

func (s *stubFacilitySource) Facilities(context.Context, string) ([]model.SourceFacility, error) {
	return s.recs, s.err
}

func TestCollectConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	first := &stubFacilitySource{name: "a", recs: []model.SourceFacility{{Name: "Alpha", Address: "1 Main St"}}}
	second := &stubFacilitySource{name: "b", recs: []model.SourceFacility{{Name: "Beta", Address: "2 Main St"}}}

	got := Collect(context.Background(), "IN", []FacilitySource{first, second}, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "Alpha", got[0].Name)
	assert.Equal(t, "Beta", got[1].Name)
}

func TestCollectFailedSourceContributesNothing(t *testing.T) {
	t.Parallel()

	broken := &stubFacilitySource{name: "broken", err: errors.New("upstream down")}
	healthy := &stubFacilitySource{name: "healthy", recs: []model.SourceFacility{{Name: "Gamma", Address: "3 Main St"}}}

	got := Collect(context.Background(), "IL", []FacilitySource{broken, healthy}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "Gamma", got[0].Name)
}

func TestCollectFallsBackWhenAllLiveEmpty(t *testing.T) {
	t.Parallel()

	broken := &stubFacilitySource{name: "broken", err: errors.New("upstream down")}
	empty := &stubFacilitySource{name: "empty"}

	got := Collect(context.Background(), "IN", []FacilitySource{broken, empty}, NewStaticSource())

	require.NotEmpty(t, got)
	assert.Equal(t, "Planned Parenthood - Georgetown Health Center", got[0].Name)
}

func TestCollectSkipsFallbackWhenLiveProduced(t *testing.T) {
	t.Parallel()

	live := &stubFacilitySource{name: "live", recs: []model.SourceFacility{{Name: "Delta", Address: "4 Main St"}}}

	got := Collect(context.Background(), "IN", []FacilitySource{live}, NewStaticSource())

	require.Len(t, got, 1)
	assert.Equal(t, "Delta", got[0].Name)
}
