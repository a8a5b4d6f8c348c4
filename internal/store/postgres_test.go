package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-collective/careatlas/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func testFacility(name string) model.Facility {
	return model.Facility{
		Name:     name,
		Type:     "Women's Health Center",
		Address:  "1 Main St",
		City:     "Indianapolis",
		State:    "IN",
		Services: []string{"Primary Care"},
	}
}

func TestPostgresStore_ReplaceFacilities_DeleteThenInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM facilities WHERE state = \$1`).
		WithArgs("IN").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"facilities"}, facilityColumns).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ReplaceFacilities(context.Background(), "IN", []model.Facility{testFacility("Clinic A")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceFacilities_RollbackOnInsertFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM facilities WHERE state = \$1`).
		WithArgs("IN").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"facilities"}, facilityColumns).
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	err := s.ReplaceFacilities(context.Background(), "IN", []model.Facility{testFacility("Clinic A")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert facilities")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceFacilities_EmptyBatchSkipsTransaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// No expectations: an empty batch must not touch the database.
	err := s.ReplaceFacilities(context.Background(), "IN", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceLaws_DeleteThenInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	laws := []model.Law{
		{State: "IN", Category: "General", Title: "Overview", Content: "...", LastUpdated: now},
		{State: "IN", Category: "Preventive Care", Title: "Access", Content: "...", LastUpdated: now},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM laws WHERE state = \$1`).
		WithArgs("IN").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec(`INSERT INTO laws`).
		WithArgs(pgxmock.AnyArg(), "IN", "General", "Overview", "...", "", laws[0].EffectiveDate, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO laws`).
		WithArgs(pgxmock.AnyArg(), "IN", "Preventive Care", "Access", "...", "", laws[1].EffectiveDate, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceLaws(context.Background(), "IN", laws)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefreshNews_PurgesBeforeInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	cutoff := now.Add(-model.NewsRetentionWindow)
	updates := []model.NewsUpdate{
		{Title: "Coverage Expanded", Content: "...", State: "IN", Category: "Policy", PublishedAt: now, RelevanceScore: 1.0},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM news_updates WHERE state = \$1 AND published_at < \$2`).
		WithArgs("IN", cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectExec(`INSERT INTO news_updates`).
		WithArgs(pgxmock.AnyArg(), "Coverage Expanded", "...", "", "", "IN", "Policy", now, pgxmock.AnyArg(), 1.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.RefreshNews(context.Background(), "IN", updates, cutoff)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefreshNews_EmptyBatchSkipsPurge(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	err := s.RefreshNews(context.Background(), "IN", nil, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LawsByState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "state", "category", "title", "content", "source", "effective_date", "last_updated"}).
		AddRow("l1", "IN", "General", "Overview", "body", "nwlc.org", &now, now)

	mock.ExpectQuery(`SELECT id, state, category, title, content, source, effective_date, last_updated FROM laws WHERE state = \$1`).
		WithArgs("IN").
		WillReturnRows(rows)

	laws, err := s.LawsByState(context.Background(), "IN")
	require.NoError(t, err)
	require.Len(t, laws, 1)
	assert.Equal(t, "Overview", laws[0].Title)
	require.NotNil(t, laws[0].EffectiveDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountsByState(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT`).
		WithArgs("IN").
		WillReturnRows(pgxmock.NewRows([]string{"f", "l", "n"}).AddRow(12, 4, 9))

	counts, err := s.CountsByState(context.Background(), "IN")
	require.NoError(t, err)
	assert.Equal(t, Counts{Facilities: 12, Laws: 4, News: 9}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
