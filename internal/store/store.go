package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/haven-collective/careatlas/internal/model"
)

// Counts summarizes the persisted rows for one state.
type Counts struct {
	Facilities int `json:"facilities"`
	Laws       int `json:"laws"`
	News       int `json:"news"`
}

// Store defines the persistence interface for the refresh pipeline.
// Replace operations are transactional per state and per kind: readers
// observe either the previous batch or the new one, never a mixture.
type Store interface {
	// ReplaceFacilities atomically swaps the facility rows for a state.
	// An empty batch is a no-op; the previous batch stays visible.
	ReplaceFacilities(ctx context.Context, state string, facilities []model.Facility) error

	// ReplaceLaws atomically swaps the law rows for a state.
	ReplaceLaws(ctx context.Context, state string, laws []model.Law) error

	// RefreshNews inserts a news batch and purges rows published before
	// the cutoff in the same transaction. News accumulates within the
	// retention window rather than fully resetting. An empty batch skips
	// the transaction entirely, purge included.
	RefreshNews(ctx context.Context, state string, updates []model.NewsUpdate, cutoff time.Time) error

	FacilitiesByState(ctx context.Context, state string) ([]model.Facility, error)
	LawsByState(ctx context.Context, state string) ([]model.Law, error)
	RecentNews(ctx context.Context, state string, limit int) ([]model.NewsUpdate, error)
	CountsByState(ctx context.Context, state string) (Counts, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx":
		return NewPostgres(ctx, dsn, poolCfg)
	case "sqlite", "sqlite3":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
