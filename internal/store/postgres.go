package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. Satisfied by a real
// pool and by pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_batch": `INSERT INTO batches (id, status, parcels, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"save_results": `UPDATE batches SET results = $1, summary = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"get_batch":    `SELECT id, status, parcels, results, summary, created_at, updated_at FROM batches WHERE id = $1`,
	"get_summary":  `SELECT summary FROM batches WHERE id = $1`,
	"list_awards":  `SELECT id, project, lat, lon, year, track, county_fips, new_construction, family_dev, units FROM awards WHERE county_fips = $1 ORDER BY year DESC, id`,
	"count_awards": `SELECT COUNT(*) FROM awards`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	parcels    INTEGER NOT NULL DEFAULT 0,
	results    JSONB,
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS awards (
	id               TEXT PRIMARY KEY,
	project          TEXT,
	lat              DOUBLE PRECISION NOT NULL,
	lon              DOUBLE PRECISION NOT NULL,
	year             INTEGER NOT NULL,
	track            TEXT NOT NULL,
	county_fips      TEXT NOT NULL,
	new_construction BOOLEAN NOT NULL DEFAULT false,
	family_dev       BOOLEAN NOT NULL DEFAULT false,
	units            INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_awards_county ON awards(county_fips);
CREATE INDEX IF NOT EXISTS idx_awards_year ON awards(year);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batchID string, parcels int) (*Batch, error) {
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO batches (id, status, parcels, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		batchID, BatchStatusPending, parcels, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert batch %s", batchID)
	}

	return &Batch{
		ID:        batchID,
		Status:    BatchStatusPending,
		Parcels:   parcels,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) SaveResults(ctx context.Context, batch *engine.BatchResult) error {
	resultsJSON, err := json.Marshal(batch.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}
	summaryJSON, err := json.Marshal(batch.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batches SET results = $1, summary = $2, status = $3, updated_at = $4 WHERE id = $5`,
		resultsJSON, summaryJSON, BatchStatusComplete, time.Now().UTC(), batch.BatchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save results %s", batch.BatchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "batch %s", batch.BatchID)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	var b Batch
	var resultsJSON, summaryJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, parcels, results, summary, created_at, updated_at FROM batches WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.Status, &b.Parcels, &resultsJSON, &summaryJSON, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get batch %s", batchID)
	}

	if resultsJSON != nil {
		if err := json.Unmarshal(resultsJSON, &b.Results); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal results")
		}
	}
	if summaryJSON != nil {
		b.Summary = &model.BatchSummary{}
		if err := json.Unmarshal(summaryJSON, b.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &b, nil
}

func (s *PostgresStore) GetBatchSummary(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	var summaryJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT summary FROM batches WHERE id = $1`,
		batchID,
	).Scan(&summaryJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get batch summary %s", batchID)
	}
	if summaryJSON == nil {
		return nil, nil
	}

	var summary model.BatchSummary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal summary")
	}
	return &summary, nil
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	query := `SELECT id, status, parcels, results, summary, created_at, updated_at FROM batches WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var resultsJSON, summaryJSON []byte

		if err := rows.Scan(&b.ID, &b.Status, &b.Parcels, &resultsJSON, &summaryJSON, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		if resultsJSON != nil {
			if err := json.Unmarshal(resultsJSON, &b.Results); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal results")
			}
		}
		if summaryJSON != nil {
			b.Summary = &model.BatchSummary{}
			if err := json.Unmarshal(summaryJSON, b.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: list batches iterate")
}

func (s *PostgresStore) SaveAwards(ctx context.Context, awards []model.Award) (int, error) {
	if len(awards) == 0 {
		return 0, nil
	}

	for _, a := range awards {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO awards (id, project, lat, lon, year, track, county_fips, new_construction, family_dev, units)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			   project = EXCLUDED.project, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			   year = EXCLUDED.year, track = EXCLUDED.track, county_fips = EXCLUDED.county_fips,
			   new_construction = EXCLUDED.new_construction, family_dev = EXCLUDED.family_dev,
			   units = EXCLUDED.units`,
			a.ID, a.Project, a.Lat, a.Lon, a.Year, string(a.Track), a.CountyFIPS,
			a.NewConstruction, a.FamilyDev, a.Units,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert award %s", a.ID)
		}
	}
	return len(awards), nil
}

func (s *PostgresStore) ListAwards(ctx context.Context, countyFIPS string) ([]model.Award, error) {
	query := `SELECT id, project, lat, lon, year, track, county_fips, new_construction, family_dev, units FROM awards`
	args := []any{}
	if countyFIPS != "" {
		query += ` WHERE county_fips = $1`
		args = append(args, countyFIPS)
	}
	query += ` ORDER BY year DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list awards")
	}
	defer rows.Close()

	var awards []model.Award
	for rows.Next() {
		var a model.Award
		var project *string
		var track string
		if err := rows.Scan(&a.ID, &project, &a.Lat, &a.Lon, &a.Year, &track,
			&a.CountyFIPS, &a.NewConstruction, &a.FamilyDev, &a.Units); err != nil {
			return nil, eris.Wrap(err, "postgres: scan award")
		}
		if project != nil {
			a.Project = *project
		}
		a.Track = model.FinancingTrack(track)
		awards = append(awards, a)
	}
	return awards, eris.Wrap(rows.Err(), "postgres: list awards iterate")
}

func (s *PostgresStore) CountAwards(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM awards`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count awards")
}
