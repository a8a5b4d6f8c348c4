package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/haven-collective/careatlas/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Collections are
// stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id                           TEXT PRIMARY KEY,
	name                         TEXT NOT NULL,
	type                         TEXT NOT NULL,
	facility_type                TEXT,
	address                      TEXT NOT NULL,
	city                         TEXT,
	state                        TEXT NOT NULL,
	zip_code                     TEXT,
	latitude                     REAL NOT NULL DEFAULT 0,
	longitude                    REAL NOT NULL DEFAULT 0,
	phone                        TEXT,
	website                      TEXT,
	accepts_insurance            INTEGER NOT NULL DEFAULT 0,
	is_verified                  INTEGER NOT NULL DEFAULT 0,
	emergency_services           INTEGER NOT NULL DEFAULT 0,
	telehealth                   INTEGER NOT NULL DEFAULT 0,
	services                     TEXT NOT NULL DEFAULT '[]',
	languages                    TEXT NOT NULL DEFAULT '[]',
	operating_hours              TEXT NOT NULL DEFAULT '{}',
	accepted_insurance_providers TEXT NOT NULL DEFAULT '[]',
	amenities                    TEXT NOT NULL DEFAULT '[]',
	financial_assistance         TEXT NOT NULL DEFAULT '[]',
	wait_time                    TEXT,
	created_at                   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_facilities_state ON facilities(state);

CREATE TABLE IF NOT EXISTS laws (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	category       TEXT NOT NULL,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL,
	source         TEXT,
	effective_date DATETIME,
	last_updated   DATETIME NOT NULL DEFAULT (datetime('now'))
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
	published_at    DATETIME NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	relevance_score REAL NOT NULL DEFAULT 1.0
);

CREATE INDEX IF NOT EXISTS idx_news_state ON news_updates(state);
CREATE INDEX IF NOT EXISTS idx_news_published_at ON news_updates(published_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceFacilities(ctx context.Context, state string, facilities []model.Facility) error {
	if len(facilities) == 0 {
		zap.L().Warn("sqlite: empty facility batch, keeping previous data", zap.String("state", state))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin replace facilities %s", state)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM facilities WHERE state = ?`, state); err != nil {
		return eris.Wrapf(err, "sqlite: delete facilities %s", state)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facilities (id, name, type, facility_type, address, city, state, zip_code,
			latitude, longitude, phone, website, accepts_insurance, is_verified,
			emergency_services, telehealth, services, languages, operating_hours,
			accepted_insurance_providers, amenities, financial_assistance, wait_time,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare facility insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range facilities {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		services, err := jsonText(f.Services)
		if err != nil {
			return err
		}
		languages, err := jsonText(f.Languages)
		if err != nil {
			return err
		}
		hours, err := jsonText(f.OperatingHours)
		if err != nil {
			return err
		}
		insurers, err := jsonText(f.AcceptedInsuranceProviders)
		if err != nil {
			return err
		}
		amenities, err := jsonText(f.Amenities)
		if err != nil {
			return err
		}
		assistance, err := jsonText(f.FinancialAssistance)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			id, f.Name, f.Type, f.FacilityType, f.Address, f.City, state, f.ZipCode,
			f.Latitude, f.Longitude, f.Phone, f.Website, f.AcceptsInsurance, f.IsVerified,
			f.EmergencyServices, f.Telehealth, services, languages, hours,
			insurers, amenities, assistance, f.WaitTime,
			now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert facility %s", f.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: commit facilities %s", state)
	}

	zap.L().Info("sqlite: replaced facilities",
		zap.String("state", state),
		zap.Int("count", len(facilities)),
	)
	return nil
}

func (s *SQLiteStore) ReplaceLaws(ctx context.Context, state string, laws []model.Law) error {
	if len(laws) == 0 {
		zap.L().Warn("sqlite: empty law batch, keeping previous data", zap.String("state", state))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin replace laws %s", state)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM laws WHERE state = ?`, state); err != nil {
		return eris.Wrapf(err, "sqlite: delete laws %s", state)
	}
	for _, l := range laws {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO laws (id, state, category, title, content, source, effective_date, last_updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, state, l.Category, l.Title, l.Content, l.Source, l.EffectiveDate, l.LastUpdated,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert law %s", l.Title)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: commit laws %s", state)
	}

	zap.L().Info("sqlite: replaced laws",
		zap.String("state", state),
		zap.Int("count", len(laws)),
	)
	return nil
}

func (s *SQLiteStore) RefreshNews(ctx context.Context, state string, updates []model.NewsUpdate, cutoff time.Time) error {
	if len(updates) == 0 {
		zap.L().Warn("sqlite: empty news batch, skipping refresh", zap.String("state", state))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin refresh news %s", state)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM news_updates WHERE state = ? AND published_at < ?`,
		state, cutoff,
	); err != nil {
		return eris.Wrapf(err, "sqlite: purge stale news %s", state)
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO news_updates (id, title, content, source_url, source_name, state, category, published_at, created_at, relevance_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, n.Title, n.Content, n.SourceURL, n.SourceName, state, n.Category,
			n.PublishedAt, createdAt, n.RelevanceScore,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert news %s", n.Title)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "sqlite: commit news %s", state)
	}

	zap.L().Info("sqlite: refreshed news",
		zap.String("state", state),
		zap.Int("count", len(updates)),
	)
	return nil
}

func (s *SQLiteStore) FacilitiesByState(ctx context.Context, state string) ([]model.Facility, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, facility_type, address, city, state, zip_code,
			latitude, longitude, phone, website, accepts_insurance, is_verified,
			emergency_services, telehealth, services, languages, operating_hours,
			accepted_insurance_providers, amenities, financial_assistance, wait_time,
			created_at, updated_at
		 FROM facilities WHERE state = ? ORDER BY name`,
		state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: facilities by state %s", state)
	}
	defer rows.Close()

	var facilities []model.Facility
	for rows.Next() {
		var f model.Facility
		var services, languages, hours, insurers, amenities, assistance string
		if err := rows.Scan(
			&f.ID, &f.Name, &f.Type, &f.FacilityType, &f.Address, &f.City, &f.State, &f.ZipCode,
			&f.Latitude, &f.Longitude, &f.Phone, &f.Website, &f.AcceptsInsurance, &f.IsVerified,
			&f.EmergencyServices, &f.Telehealth, &services, &languages, &hours,
			&insurers, &amenities, &assistance, &f.WaitTime,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		for _, col := range []struct {
			raw  string
			dest any
		}{
			{services, &f.Services},
			{languages, &f.Languages},
			{hours, &f.OperatingHours},
			{insurers, &f.AcceptedInsuranceProviders},
			{amenities, &f.Amenities},
			{assistance, &f.FinancialAssistance},
		} {
			if col.raw == "" {
				continue
			}
			if err := json.Unmarshal([]byte(col.raw), col.dest); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal facility collection")
			}
		}
		facilities = append(facilities, f)
	}
	return facilities, eris.Wrap(rows.Err(), "sqlite: facilities iterate")
}

func (s *SQLiteStore) LawsByState(ctx context.Context, state string) ([]model.Law, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, category, title, content, source, effective_date, last_updated
		 FROM laws WHERE state = ? ORDER BY category, title`,
		state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: laws by state %s", state)
	}
	defer rows.Close()

	var laws []model.Law
	for rows.Next() {
		var l model.Law
		if err := rows.Scan(&l.ID, &l.State, &l.Category, &l.Title, &l.Content, &l.Source, &l.EffectiveDate, &l.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan law")
		}
		laws = append(laws, l)
	}
	return laws, eris.Wrap(rows.Err(), "sqlite: laws iterate")
}

func (s *SQLiteStore) RecentNews(ctx context.Context, state string, limit int) ([]model.NewsUpdate, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, source_url, source_name, state, category, published_at, created_at, relevance_score
		 FROM news_updates WHERE state = ? ORDER BY published_at DESC LIMIT ?`,
		state, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: recent news %s", state)
	}
	defer rows.Close()

	var updates []model.NewsUpdate
	for rows.Next() {
		var n model.NewsUpdate
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.SourceURL, &n.SourceName, &n.State, &n.Category, &n.PublishedAt, &n.CreatedAt, &n.RelevanceScore); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan news")
		}
		updates = append(updates, n)
	}
	return updates, eris.Wrap(rows.Err(), "sqlite: news iterate")
}

func (s *SQLiteStore) CountsByState(ctx context.Context, state string) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT count(*) FROM facilities WHERE state = ?1),
			(SELECT count(*) FROM laws WHERE state = ?1),
			(SELECT count(*) FROM news_updates WHERE state = ?1)`,
		state,
	).Scan(&c.Facilities, &c.Laws, &c.News)
	if err != nil {
		return c, eris.Wrapf(err, "sqlite: counts by state %s", state)
	}
	return c, nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal collection")
	}
	return string(b), nil
}
