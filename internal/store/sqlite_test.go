package store

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleBatchResult(batchID string) *engine.BatchResult {
	return &engine.BatchResult{
		BatchID: batchID,
		Results: []model.ParcelResult{
			{
				Parcel: model.Parcel{
					ID:         "p-1",
					Lat:        30.30,
					Lon:        -97.70,
					CountyFIPS: "48453",
					Acreage:    5.0,
					Track:      model.TrackCompetitive,
				},
				Status: model.StatusOK,
				Tier:   model.TierGood,
			},
			{
				Parcel: model.Parcel{ID: "p-2"},
				Status: model.StatusIndeterminate,
			},
		},
		Summary: model.BatchSummary{
			Total:         2,
			OK:            1,
			Indeterminate: 1,
			ByTier:        map[string]int{"good": 1},
		},
	}
}

func TestBatchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateBatch(ctx, "batch-1", 2)
	require.NoError(t, err)
	assert.Equal(t, BatchStatusPending, created.Status)
	assert.Equal(t, 2, created.Parcels)

	// Summary is nil until results land.
	summary, err := s.GetBatchSummary(ctx, "batch-1")
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, s.SaveResults(ctx, sampleBatchResult("batch-1")))

	got, err := s.GetBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, BatchStatusComplete, got.Status)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "p-1", got.Results[0].Parcel.ID)
	assert.Equal(t, model.TierGood, got.Results[0].Tier)
	assert.Equal(t, model.StatusIndeterminate, got.Results[1].Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.Total)

	summary, err = s.GetBatchSummary(ctx, "batch-1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.OK)
	assert.Equal(t, 1, summary.ByTier["good"])
}

func TestGetBatch_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBatch(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSaveResults_UnknownBatch(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveResults(context.Background(), sampleBatchResult("ghost"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestListBatches_FilterByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateBatch(ctx, "batch-a", 1)
	require.NoError(t, err)
	_, err = s.CreateBatch(ctx, "batch-b", 2)
	require.NoError(t, err)
	require.NoError(t, s.SaveResults(ctx, sampleBatchResult("batch-b")))

	pending, err := s.ListBatches(ctx, BatchFilter{Status: BatchStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "batch-a", pending[0].ID)

	all, err := s.ListBatches(ctx, BatchFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.ListBatches(ctx, BatchFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAwardsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	awards := []model.Award{
		{
			ID:              "a-1",
			Project:         "Riverside Commons",
			Lat:             30.31,
			Lon:             -97.71,
			Year:            2024,
			Track:           model.TrackCompetitive,
			CountyFIPS:      "48453",
			NewConstruction: true,
			FamilyDev:       true,
			Units:           120,
		},
		{
			ID:         "a-2",
			Lat:        29.42,
			Lon:        -98.49,
			Year:       2023,
			Track:      model.TrackNonCompetitive,
			CountyFIPS: "48029",
		},
	}

	n, err := s.SaveAwards(ctx, awards)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.CountAwards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	travis, err := s.ListAwards(ctx, "48453")
	require.NoError(t, err)
	require.Len(t, travis, 1)
	assert.Equal(t, "a-1", travis[0].ID)
	assert.Equal(t, "Riverside Commons", travis[0].Project)
	assert.Equal(t, model.TrackCompetitive, travis[0].Track)
	assert.True(t, travis[0].NewConstruction)
	assert.Equal(t, 120, travis[0].Units)

	all, err := s.ListAwards(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// Newest year first.
	assert.Equal(t, 2024, all[0].Year)
}

func TestSaveAwards_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := model.Award{
		ID: "a-1", Lat: 30.31, Lon: -97.71, Year: 2024,
		Track: model.TrackCompetitive, CountyFIPS: "48453", Units: 100,
	}
	_, err := s.SaveAwards(ctx, []model.Award{base})
	require.NoError(t, err)

	base.Units = 150
	_, err = s.SaveAwards(ctx, []model.Award{base})
	require.NoError(t, err)

	count, err := s.CountAwards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.ListAwards(ctx, "48453")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 150, got[0].Units)
}

func TestSaveAwards_Empty(t *testing.T) {
	s := newTestStore(t)

	n, err := s.SaveAwards(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
