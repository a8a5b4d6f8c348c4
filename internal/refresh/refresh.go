// Package refresh orchestrates the periodic data-refresh cycle: pull from
// the source adapters, normalize, geocode, and hand the batches to the
// store's transactional replace operations.
package refresh

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/model"
	"github.com/haven-collective/careatlas/internal/normalize"
	"github.com/haven-collective/careatlas/internal/source"
	"github.com/haven-collective/careatlas/internal/store"
	"github.com/haven-collective/careatlas/pkg/geocode"
)

// Default cadence and pacing. The delays space out upstream traffic so a
// cycle never bursts against the same host.
const (
	DefaultPeriod     = 6 * time.Hour
	DefaultKindDelay  = 5 * time.Second
	DefaultStateDelay = 10 * time.Second
)

// DefaultStates is the coverage set refreshed when none is configured.
var DefaultStates = []string{"IN", "IL"}

// Options configures a Scheduler.
type Options struct {
	States     []string
	Period     time.Duration
	KindDelay  time.Duration
	StateDelay time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.States) == 0 {
		o.States = DefaultStates
	}
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}
	if o.KindDelay <= 0 {
		o.KindDelay = DefaultKindDelay
	}
	if o.StateDelay <= 0 {
		o.StateDelay = DefaultStateDelay
	}
	return o
}

// Scheduler drives refresh cycles: one immediately on Start, then one per
// period. Cycles never overlap; a tick that fires while a cycle is still
// running is skipped.
type Scheduler struct {
	store    store.Store
	sources  []source.FacilitySource
	fallback *source.StaticSource
	news     source.NewsSource
	geocoder geocode.Client
	opts     Options
	metrics  *Metrics

	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler creates a Scheduler. The news source may be nil when no
// generative backend is configured; news is then skipped each cycle.
func NewScheduler(st store.Store, sources []source.FacilitySource, fallback *source.StaticSource, news source.NewsSource, gc geocode.Client, opts Options) *Scheduler {
	return &Scheduler{
		store:    st,
		sources:  sources,
		fallback: fallback,
		news:     news,
		geocoder: gc,
		opts:     opts.withDefaults(),
		metrics:  NewMetrics(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Metrics returns the scheduler's cycle metrics.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// Start runs one cycle immediately, then one per period until Stop is
// called or the context is canceled. It blocks; run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	s.runGuarded(ctx)

	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.runGuarded(ctx)
		}
	}
}

// Stop signals the scheduler loop to exit and waits for it.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runGuarded(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		zap.L().Warn("refresh: previous cycle still running, skipping tick")
		s.metrics.RecordSkip()
		return
	}
	defer s.running.Store(false)

	if err := s.RunCycle(ctx); err != nil {
		zap.L().Error("refresh: cycle failed", zap.Error(err))
	}
}

// RunCycle refreshes every configured state sequentially. A failure in
// one data kind or one state is logged and does not stop the rest of the
// cycle; only context cancellation aborts it.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	started := time.Now()
	zap.L().Info("refresh: cycle starting", zap.Strings("states", s.opts.States))

	for i, state := range s.opts.States {
		if i > 0 {
			if err := sleep(ctx, s.opts.StateDelay); err != nil {
				return err
			}
		}
		if err := s.refreshState(ctx, state); err != nil {
			return err
		}
	}

	s.metrics.RecordCycle(time.Since(started))
	zap.L().Info("refresh: cycle complete", zap.Duration("took", time.Since(started)))
	return nil
}

// refreshState runs the three data kinds for one state in fixed order.
// Returns an error only when the context is done.
func (s *Scheduler) refreshState(ctx context.Context, state string) error {
	zap.L().Info("refresh: state starting", zap.String("state", state))

	if err := s.refreshFacilities(ctx, state); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Error("refresh: facilities failed", zap.String("state", state), zap.Error(err))
		s.metrics.RecordKindError(state, model.KindFacilities)
	}
	if err := sleep(ctx, s.opts.KindDelay); err != nil {
		return err
	}

	if err := s.refreshLaws(ctx, state); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Error("refresh: laws failed", zap.String("state", state), zap.Error(err))
		s.metrics.RecordKindError(state, model.KindLaws)
	}
	if err := sleep(ctx, s.opts.KindDelay); err != nil {
		return err
	}

	if err := s.refreshNews(ctx, state); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		zap.L().Error("refresh: news failed", zap.String("state", state), zap.Error(err))
		s.metrics.RecordKindError(state, model.KindNews)
	}

	return nil
}

func (s *Scheduler) refreshFacilities(ctx context.Context, state string) error {
	records := source.Collect(ctx, state, s.sources, s.fallback)
	facilities := normalize.FacilityBatch(records, state)
	facilities = Geocode(ctx, s.geocoder, facilities)

	if err := s.store.ReplaceFacilities(ctx, state, facilities); err != nil {
		return err
	}
	s.metrics.RecordKind(state, model.KindFacilities, len(facilities))
	return nil
}

func (s *Scheduler) refreshLaws(ctx context.Context, state string) error {
	laws := normalize.LawBatch(source.DefaultLaws(state))
	if err := s.store.ReplaceLaws(ctx, state, laws); err != nil {
		return err
	}
	s.metrics.RecordKind(state, model.KindLaws, len(laws))
	return nil
}

func (s *Scheduler) refreshNews(ctx context.Context, state string) error {
	if s.news == nil {
		zap.L().Info("refresh: no news source configured, skipping", zap.String("state", state))
		return nil
	}

	records, err := s.news.News(ctx, state)
	if err != nil {
		return err
	}
	updates := normalize.NewsBatch(records, state)
	cutoff := time.Now().UTC().Add(-model.NewsRetentionWindow)

	if err := s.store.RefreshNews(ctx, state, updates, cutoff); err != nil {
		return err
	}
	s.metrics.RecordKind(state, model.KindNews, len(updates))
	return nil
}

// Geocode resolves coordinates for facilities that lack them. Resolution
// never fails a batch: a facility the geocoder cannot place keeps the
// centroid or sentinel coordinates the client falls back to.
func Geocode(ctx context.Context, gc geocode.Client, facilities []model.Facility) []model.Facility {
	if gc == nil {
		return facilities
	}
	for i := range facilities {
		if facilities[i].HasCoordinates() {
			continue
		}
		res, err := gc.Resolve(ctx, facilities[i].Address, facilities[i].City, facilities[i].State)
		if err != nil {
			zap.L().Warn("refresh: geocode aborted",
				zap.String("facility", facilities[i].Name),
				zap.Error(err),
			)
			continue
		}
		facilities[i].Latitude = res.Latitude
		facilities[i].Longitude = res.Longitude
	}
	return facilities
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
