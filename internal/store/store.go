// Package store persists evaluation batches and award history in SQLite or
// PostgreSQL behind a common interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/model"
)

// ErrNotFound is returned when a requested batch does not exist.
var ErrNotFound = eris.New("store: not found")

// Batch is a persisted evaluation batch.
type Batch struct {
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	Parcels   int                  `json:"parcels"`
	Results   []model.ParcelResult `json:"results,omitempty"`
	Summary   *model.BatchSummary  `json:"summary,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Batch statuses.
const (
	BatchStatusPending  = "pending"
	BatchStatusComplete = "complete"
)

// BatchFilter specifies criteria for listing batches.
type BatchFilter struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for evaluation batches and the
// award history used by the competition rules.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, batchID string, parcels int) (*Batch, error)
	SaveResults(ctx context.Context, batch *engine.BatchResult) error
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	GetBatchSummary(ctx context.Context, batchID string) (*model.BatchSummary, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error)

	// Award history
	SaveAwards(ctx context.Context, awards []model.Award) (int, error)
	ListAwards(ctx context.Context, countyFIPS string) ([]model.Award, error)
	CountAwards(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
