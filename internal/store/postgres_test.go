package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescore/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresCreateBatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO batches").
		WithArgs("batch-1", BatchStatusPending, 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	b, err := s.CreateBatch(context.Background(), "batch-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", b.ID)
	assert.Equal(t, BatchStatusPending, b.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveResults(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE batches SET results").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), BatchStatusComplete, pgxmock.AnyArg(), "batch-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SaveResults(context.Background(), sampleBatchResult("batch-1"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveResults_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE batches SET results").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), BatchStatusComplete, pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveResults(context.Background(), sampleBatchResult("ghost"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBatch(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	results := []byte(`[{"parcel":{"id":"p-1","lat":30.3,"lon":-97.7,"county_fips":"48453","acreage":5,"track":"competitive","units":0,"unit_mix":null,"construction":"","analysis_year":0},"status":"ok","tier":"good","evaluated_at":"2025-01-01T00:00:00Z"}]`)
	summary := []byte(`{"total":1,"ok":1,"indeterminate":0,"errored":0,"by_tier":{"good":1},"by_verdict":{},"qct_only":0,"dda_only":0,"qct_and_dda":0,"ineligible":0,"ratio_p25":0,"ratio_p50":0,"ratio_p75":0,"ratio_p90":0}`)

	mock.ExpectQuery("SELECT id, status, parcels, results, summary").
		WithArgs("batch-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "parcels", "results", "summary", "created_at", "updated_at",
		}).AddRow("batch-1", BatchStatusComplete, 1, results, summary, now, now))

	b, err := s.GetBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, BatchStatusComplete, b.Status)
	require.Len(t, b.Results, 1)
	assert.Equal(t, "p-1", b.Results[0].Parcel.ID)
	assert.Equal(t, model.TierGood, b.Results[0].Tier)
	require.NotNil(t, b.Summary)
	assert.Equal(t, 1, b.Summary.OK)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBatch_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, status, parcels, results, summary").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "parcels", "results", "summary", "created_at", "updated_at",
		}))

	_, err := s.GetBatch(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveAwards(t *testing.T) {
	s, mock := newMockStore(t)

	award := model.Award{
		ID: "a-1", Lat: 30.31, Lon: -97.71, Year: 2024,
		Track: model.TrackCompetitive, CountyFIPS: "48453", Units: 120,
	}

	mock.ExpectExec("INSERT INTO awards").
		WithArgs("a-1", "", 30.31, -97.71, 2024, "competitive", "48453", false, false, 120).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := s.SaveAwards(context.Background(), []model.Award{award})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListAwards(t *testing.T) {
	s, mock := newMockStore(t)

	project := "Riverside Commons"
	mock.ExpectQuery("SELECT id, project, lat, lon, year, track").
		WithArgs("48453").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project", "lat", "lon", "year", "track",
			"county_fips", "new_construction", "family_dev", "units",
		}).AddRow("a-1", &project, 30.31, -97.71, 2024, "competitive", "48453", true, true, 120))

	awards, err := s.ListAwards(context.Background(), "48453")
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "Riverside Commons", awards[0].Project)
	assert.Equal(t, model.TrackCompetitive, awards[0].Track)
	assert.True(t, awards[0].NewConstruction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountAwards(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := s.CountAwards(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
