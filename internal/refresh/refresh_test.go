package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-collective/careatlas/internal/model"
	"github.com/haven-collective/careatlas/internal/source"
	"github.com/haven-collective/careatlas/internal/store"
	"github.com/haven-collective/careatlas/pkg/geocode"
)

// fakeStore records replace calls in memory.
type fakeStore struct {
	mu         sync.Mutex
	facilities map[string][]model.Facility
	laws       map[string][]model.Law
	news       map[string][]model.NewsUpdate
	failKind   model.DataKind
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		facilities: make(map[string][]model.Facility),
		laws:       make(map[string][]model.Law),
		news:       make(map[string][]model.NewsUpdate),
	}
}

func (f *fakeStore) ReplaceFacilities(_ context.Context, state string, facilities []model.Facility) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind == model.KindFacilities {
		return errors.New("facilities store down")
	}
	f.facilities[state] = facilities
	return nil
}

func (f *fakeStore) ReplaceLaws(_ context.Context, state string, laws []model.Law) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind == model.KindLaws {
		return errors.New("laws store down")
	}
	f.laws[state] = laws
	return nil
}

func (f *fakeStore) RefreshNews(_ context.Context, state string, updates []model.NewsUpdate, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKind == model.KindNews {
		return errors.New("news store down")
	}
	f.news[state] = append(f.news[state], updates...)
	return nil
}

func (f *fakeStore) FacilitiesByState(_ context.Context, state string) ([]model.Facility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.facilities[state], nil
}

func (f *fakeStore) LawsByState(_ context.Context, state string) ([]model.Law, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.laws[state], nil
}

func (f *fakeStore) RecentNews(_ context.Context, state string, _ int) ([]model.NewsUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.news[state], nil
}

func (f *fakeStore) CountsByState(context.Context, string) (store.Counts, error) {
	return store.Counts{}, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

type stubSource struct {
	recs []model.SourceFacility
	err  error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Facilities(context.Context, string) ([]model.SourceFacility, error) {
	return s.recs, s.err
}

type stubNews struct {
	recs []model.SourceNews
	err  error
}

func (s *stubNews) Name() string { return "stub-news" }

func (s *stubNews) News(context.Context, string) ([]model.SourceNews, error) {
	return s.recs, s.err
}

// fixedGeocoder resolves everything to one coordinate pair.
type fixedGeocoder struct {
	lat, lon float64
	calls    int
}

func (g *fixedGeocoder) Resolve(context.Context, string, string, string) (geocode.Result, error) {
	g.calls++
	return geocode.Result{Latitude: g.lat, Longitude: g.lon, Source: "test"}, nil
}

func fastOptions(states ...string) Options {
	return Options{
		States:     states,
		Period:     time.Hour,
		KindDelay:  time.Millisecond,
		StateDelay: time.Millisecond,
	}
}

func TestRunCycleReplacesAllKinds(t *testing.T) {
	st := newFakeStore()
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic A", Address: "1 Main St"}}}
	news := &stubNews{recs: []model.SourceNews{{Title: "Update", Content: "c", PublishedAt: "2026-08-01"}}}
	gc := &fixedGeocoder{lat: 39.7, lon: -86.1}

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, news, gc, fastOptions("IN"))
	require.NoError(t, sched.RunCycle(context.Background()))

	require.Len(t, st.facilities["IN"], 1)
	assert.InDelta(t, 39.7, st.facilities["IN"][0].Latitude, 1e-9)
	assert.Len(t, st.laws["IN"], 4)
	require.Len(t, st.news["IN"], 1)
	assert.Equal(t, "Update", st.news["IN"][0].Title)

	snap := sched.Metrics().Collect()
	assert.Equal(t, 1, snap.CyclesCompleted)
	assert.Equal(t, 1, snap.Kinds["IN"][model.KindFacilities].Records)
}

func TestRunCycleCoversEveryState(t *testing.T) {
	st := newFakeStore()
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic", Address: "1 Main St"}}}

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, nil, nil, fastOptions("IN", "IL"))
	require.NoError(t, sched.RunCycle(context.Background()))

	assert.Len(t, st.facilities["IN"], 1)
	assert.Len(t, st.facilities["IL"], 1)
	assert.Len(t, st.laws["IL"], 4)
}

func TestRunCycleKindFailureDoesNotAbort(t *testing.T) {
	st := newFakeStore()
	st.failKind = model.KindFacilities
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic", Address: "1 Main St"}}}

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, nil, nil, fastOptions("IN"))
	require.NoError(t, sched.RunCycle(context.Background()))

	// Facilities failed but laws were still replaced.
	assert.Empty(t, st.facilities["IN"])
	assert.Len(t, st.laws["IN"], 4)
	assert.Equal(t, 1, sched.Metrics().Collect().Kinds["IN"][model.KindFacilities].Errors)
}

func TestRunCycleNewsSourceFailureDoesNotAbort(t *testing.T) {
	st := newFakeStore()
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic", Address: "1 Main St"}}}
	news := &stubNews{err: errors.New("completion failed")}

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, news, nil, fastOptions("IN"))
	require.NoError(t, sched.RunCycle(context.Background()))

	assert.Len(t, st.facilities["IN"], 1)
	assert.Empty(t, st.news["IN"])
	assert.Equal(t, 1, sched.Metrics().Collect().Kinds["IN"][model.KindNews].Errors)
}

func TestRunCycleCanceledContextAborts(t *testing.T) {
	st := newFakeStore()
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic", Address: "1 Main St"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, nil, nil, fastOptions("IN", "IL"))
	err := sched.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunGuardedSkipsWhileRunning(t *testing.T) {
	st := newFakeStore()
	sched := NewScheduler(st, nil, nil, nil, nil, fastOptions("IN"))

	sched.running.Store(true)
	sched.runGuarded(context.Background())

	snap := sched.Metrics().Collect()
	assert.Equal(t, 0, snap.CyclesCompleted)
	assert.Equal(t, 1, snap.TicksSkipped)
}

func TestSchedulerStartRunsImmediatelyAndStops(t *testing.T) {
	st := newFakeStore()
	src := &stubSource{recs: []model.SourceFacility{{Name: "Clinic", Address: "1 Main St"}}}

	sched := NewScheduler(st, []source.FacilitySource{src}, nil, nil, nil, fastOptions("IN"))
	go sched.Start(context.Background())

	require.Eventually(t, func() bool {
		return sched.Metrics().Collect().CyclesCompleted >= 1
	}, 5*time.Second, 10*time.Millisecond)

	sched.Stop()
}

func TestGeocodeOnlyFillsMissingCoordinates(t *testing.T) {
	gc := &fixedGeocoder{lat: 40.0, lon: -85.0}
	facilities := []model.Facility{
		{Name: "Placed", Address: "1 St", Latitude: 41.5, Longitude: -87.3},
		{Name: "Unplaced", Address: "2 St"},
	}

	got := Geocode(context.Background(), gc, facilities)

	assert.Equal(t, 1, gc.calls)
	assert.InDelta(t, 41.5, got[0].Latitude, 1e-9)
	assert.InDelta(t, 40.0, got[1].Latitude, 1e-9)
	assert.InDelta(t, -85.0, got[1].Longitude, 1e-9)
}
