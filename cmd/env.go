package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/fetcher"
	"github.com/haven-collective/careatlas/internal/refresh"
	"github.com/haven-collective/careatlas/internal/source"
	"github.com/haven-collective/careatlas/internal/store"
	"github.com/haven-collective/careatlas/pkg/geocode"
	"github.com/haven-collective/careatlas/pkg/llm"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Store     store.Store
	Scheduler *refresh.Scheduler
	Generator *refresh.Generator
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// openStore connects the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	poolCfg := &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func buildGeocoder() geocode.Client {
	return geocode.NewClient(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithRateLimit(cfg.Geocode.RequestsPerS),
		geocode.WithEmptyRetries(cfg.Geocode.EmptyRetries),
	)
}

func buildFacilitySources() []source.FacilitySource {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RetryDelay:   time.Duration(cfg.Fetch.RetryDelaySecs) * time.Second,
		RequestsPerS: cfg.Fetch.RequestsPerS,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	})
	return []source.FacilitySource{
		source.NewMarkupSource(f, cfg.Sources.MarkupBaseURL),
		source.NewDirectorySource(f, cfg.Sources.DirectoryBaseURL),
	}
}

// buildNewsSource returns nil when no API key is configured; the
// scheduler then skips news each cycle.
func buildNewsSource() source.NewsSource {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("no anthropic key configured, news refresh disabled")
		return nil
	}
	return source.NewGenerativeNewsSource(llm.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
}

// initEnv wires the full refresh environment: store, sources, geocoder,
// scheduler, and the on-demand generator when a key is present.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	gc := buildGeocoder()
	sched := refresh.NewScheduler(
		st,
		buildFacilitySources(),
		source.NewStaticSource(),
		buildNewsSource(),
		gc,
		refresh.Options{
			States:     cfg.Refresh.States,
			Period:     cfg.Refresh.Period(),
			KindDelay:  cfg.Refresh.KindDelay(),
			StateDelay: cfg.Refresh.StateDelay(),
		},
	)

	e := &env{Store: st, Scheduler: sched}
	if cfg.Anthropic.Key != "" {
		gen := source.NewGenerativeFacilitySource(llm.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		e.Generator = refresh.NewGenerator(gen, gc, st)
	}
	return e, nil
}
