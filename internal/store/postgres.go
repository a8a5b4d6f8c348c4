package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haven-collective/careatlas/internal/db"
	"github.com/haven-collective/careatlas/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the read paths the API serves on every request.
var preparedStatements = map[string]string{
	"facilities_by_state": selectFacilities + ` WHERE state = $1 ORDER BY name`,
	"laws_by_state":       selectLaws + ` WHERE state = $1 ORDER BY category, title`,
	"recent_news":         selectNews + ` WHERE state = $1 ORDER BY published_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id                           TEXT PRIMARY KEY,
	name                         TEXT NOT NULL,
	type                         TEXT NOT NULL,
	facility_type                TEXT,
	address                      TEXT NOT NULL,
	city                         TEXT,
	state                        TEXT NOT NULL,
	zip_code                     TEXT,
	latitude                     DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	phone                        TEXT,
	website                      TEXT,
	accepts_insurance            BOOLEAN NOT NULL DEFAULT false,
	is_verified                  BOOLEAN NOT NULL DEFAULT false,
	emergency_services           BOOLEAN NOT NULL DEFAULT false,
	telehealth                   BOOLEAN NOT NULL DEFAULT false,
	services                     JSONB NOT NULL DEFAULT '[]',
	languages                    JSONB NOT NULL DEFAULT '[]',
	operating_hours              JSONB NOT NULL DEFAULT '{}',
	accepted_insurance_providers JSONB NOT NULL DEFAULT '[]',
	amenities                    JSONB NOT NULL DEFAULT '[]',
	financial_assistance         JSONB NOT NULL DEFAULT '[]',
	wait_time                    TEXT,
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facilities_state ON facilities(state);
CREATE INDEX IF NOT EXISTS idx_facilities_state_name ON facilities(state, name);

CREATE TABLE IF NOT EXISTS laws (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	category       TEXT NOT NULL,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	source         TEXT,
	effective_date TIMESTAMPTZ,
	last_updated   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_laws_state ON laws(state);

CREATE TABLE IF NOT EXISTS news_updates (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	content         TEXT NOT NULL,
	source_url      TEXT,
	source_name     TEXT,
	state           TEXT,
	category        TEXT,
	published_at    TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	relevance_score DOUBLE PRECISION NOT NULL DEFAULT 1.0
);

CREATE INDEX IF NOT EXISTS idx_news_state ON news_updates(state);
CREATE INDEX IF NOT EXISTS idx_news_published_at ON news_updates(published_at DESC);
`

const (
	selectFacilities = `SELECT id, name, type, facility_type, address, city, state, zip_code,
	latitude, longitude, phone, website, accepts_insurance, is_verified,
	emergency_services, telehealth, services, languages, operating_hours,
	accepted_insurance_providers, amenities, financial_assistance, wait_time,
	created_at, updated_at FROM facilities`

	selectLaws = `SELECT id, state, category, title, content, source, effective_date, last_updated FROM laws`

	selectNews = `SELECT id, title, content, source_url, source_name, state, category,
	published_at, created_at, relevance_score FROM news_updates`
)

var facilityColumns = []string{
	"id", "name", "type", "facility_type", "address", "city", "state", "zip_code",
	"latitude", "longitude", "phone", "website", "accepts_insurance", "is_verified",
	"emergency_services", "telehealth", "services", "languages", "operating_hours",
	"accepted_insurance_providers", "amenities", "financial_assistance", "wait_time",
	"created_at", "updated_at",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ReplaceFacilities(ctx context.Context, state string, facilities []model.Facility) error {
	if len(facilities) == 0 {
		zap.L().Warn("postgres: empty facility batch, keeping previous data", zap.String("state", state))
		return nil
	}

	rows := make([][]any, 0, len(facilities))
	now := time.Now().UTC()
	for _, f := range facilities {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		services, err := json.Marshal(f.Services)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal services")
		}
		languages, err := json.Marshal(f.Languages)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal languages")
		}
		hours, err := json.Marshal(f.OperatingHours)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal operating hours")
		}
		insurers, err := json.Marshal(f.AcceptedInsuranceProviders)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal insurance providers")
		}
		amenities, err := json.Marshal(f.Amenities)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal amenities")
		}
		assistance, err := json.Marshal(f.FinancialAssistance)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal financial assistance")
		}
		rows = append(rows, []any{
			id, f.Name, f.Type, f.FacilityType, f.Address, f.City, state, f.ZipCode,
			f.Latitude, f.Longitude, f.Phone, f.Website, f.AcceptsInsurance, f.IsVerified,
			f.EmergencyServices, f.Telehealth, services, languages, hours,
			insurers, amenities, assistance, f.WaitTime,
			now, now,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin replace facilities %s", state)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM facilities WHERE state = $1`, state); err != nil {
		return eris.Wrapf(err, "postgres: delete facilities %s", state)
	}
	if _, err := db.CopyFrom(ctx, tx, "facilities", facilityColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert facilities %s", state)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit facilities %s", state)
	}

	zap.L().Info("postgres: replaced facilities",
		zap.String("state", state),
		zap.Int("count", len(facilities)),
	)
	return nil
}

func (s *PostgresStore) ReplaceLaws(ctx context.Context, state string, laws []model.Law) error {
	if len(laws) == 0 {
		zap.L().Warn("postgres: empty law batch, keeping previous data", zap.String("state", state))
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin replace laws %s", state)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM laws WHERE state = $1`, state); err != nil {
		return eris.Wrapf(err, "postgres: delete laws %s", state)
	}
	for _, l := range laws {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO laws (id, state, category, title, content, source, effective_date, last_updated)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, state, l.Category, l.Title, l.Content, l.Source, l.EffectiveDate, l.LastUpdated,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert law %s", l.Title)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit laws %s", state)
	}

	zap.L().Info("postgres: replaced laws",
		zap.String("state", state),
		zap.Int("count", len(laws)),
	)
	return nil
}

func (s *PostgresStore) RefreshNews(ctx context.Context, state string, updates []model.NewsUpdate, cutoff time.Time) error {
	if len(updates) == 0 {
		zap.L().Warn("postgres: empty news batch, skipping refresh", zap.String("state", state))
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin refresh news %s", state)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM news_updates WHERE state = $1 AND published_at < $2`,
		state, cutoff,
	); err != nil {
		return eris.Wrapf(err, "postgres: purge stale news %s", state)
	}
	for _, n := range updates {
		id := n.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := n.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO news_updates (id, title, content, source_url, source_name, state, category, published_at, created_at, relevance_score)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, n.Title, n.Content, n.SourceURL, n.SourceName, state, n.Category,
			n.PublishedAt, createdAt, n.RelevanceScore,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert news %s", n.Title)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit news %s", state)
	}

	zap.L().Info("postgres: refreshed news",
		zap.String("state", state),
		zap.Int("count", len(updates)),
	)
	return nil
}

func (s *PostgresStore) FacilitiesByState(ctx context.Context, state string) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx, selectFacilities+` WHERE state = $1 ORDER BY name`, state)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: facilities by state %s", state)
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "postgres: facilities iterate")
}

func scanFacility(rows pgx.Rows) (model.Facility, error) {
	var f model.Facility
	var services, languages, hours, insurers, amenities, assistance []byte

	err := rows.Scan(
		&f.ID, &f.Name, &f.Type, &f.FacilityType, &f.Address, &f.City, &f.State, &f.ZipCode,
		&f.Latitude, &f.Longitude, &f.Phone, &f.Website, &f.AcceptsInsurance, &f.IsVerified,
		&f.EmergencyServices, &f.Telehealth, &services, &languages, &hours,
		&insurers, &amenities, &assistance, &f.WaitTime,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return f, eris.Wrap(err, "postgres: scan facility")
	}

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{services, &f.Services},
		{languages, &f.Languages},
		{hours, &f.OperatingHours},
		{insurers, &f.AcceptedInsuranceProviders},
		{amenities, &f.Amenities},
		{assistance, &f.FinancialAssistance},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return f, eris.Wrap(err, "postgres: unmarshal facility collection")
		}
	}
	return f, nil
}

func (s *PostgresStore) LawsByState(ctx context.Context, state string) ([]model.Law, error) {
	rows, err := s.pool.Query(ctx, selectLaws+` WHERE state = $1 ORDER BY category, title`, state)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: laws by state %s", state)
	}
	defer rows.Close()

	var laws []model.Law
	for rows.Next() {
		var l model.Law
		if err := rows.Scan(&l.ID, &l.State, &l.Category, &l.Title, &l.Content, &l.Source, &l.EffectiveDate, &l.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan law")
		}
		laws = append(laws, l)
	}
	return laws, eris.Wrap(rows.Err(), "postgres: laws iterate")
}

func (s *PostgresStore) RecentNews(ctx context.Context, state string, limit int) ([]model.NewsUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, selectNews+` WHERE state = $1 ORDER BY published_at DESC LIMIT $2`, state, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: recent news %s", state)
	}
	defer rows.Close()

	var updates []model.NewsUpdate
	for rows.Next() {
		var n model.NewsUpdate
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.SourceURL, &n.SourceName, &n.State, &n.Category, &n.PublishedAt, &n.CreatedAt, &n.RelevanceScore); err != nil {
			return nil, eris.Wrap(err, "postgres: scan news")
		}
		updates = append(updates, n)
	}
	return updates, eris.Wrap(rows.Err(), "postgres: news iterate")
}

func (s *PostgresStore) CountsByState(ctx context.Context, state string) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT count(*) FROM facilities WHERE state = $1),
			(SELECT count(*) FROM laws WHERE state = $1),
			(SELECT count(*) FROM news_updates WHERE state = $1)`,
		state,
	).Scan(&c.Facilities, &c.Laws, &c.News)
	if err != nil {
		return c, eris.Wrapf(err, "postgres: counts by state %s", state)
	}
	return c, nil
}
