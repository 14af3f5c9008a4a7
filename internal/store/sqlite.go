package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A DSN of ":memory:" yields a throwaway in-process database.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	parcels    INTEGER NOT NULL DEFAULT 0,
	results    TEXT,
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS awards (
	id               TEXT PRIMARY KEY,
	project          TEXT,
	lat              REAL NOT NULL,
	lon              REAL NOT NULL,
	year             INTEGER NOT NULL,
	track            TEXT NOT NULL,
	county_fips      TEXT NOT NULL,
	new_construction INTEGER NOT NULL DEFAULT 0,
	family_dev       INTEGER NOT NULL DEFAULT 0,
	units            INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_awards_county ON awards(county_fips);
CREATE INDEX IF NOT EXISTS idx_awards_year ON awards(year);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, batchID string, parcels int) (*Batch, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, status, parcels, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		batchID, BatchStatusPending, parcels, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert batch %s", batchID)
	}

	return &Batch{
		ID:        batchID,
		Status:    BatchStatusPending,
		Parcels:   parcels,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) SaveResults(ctx context.Context, batch *engine.BatchResult) error {
	resultsJSON, err := json.Marshal(batch.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}
	summaryJSON, err := json.Marshal(batch.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET results = ?, summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultsJSON), string(summaryJSON), BatchStatusComplete, time.Now().UTC(), batch.BatchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save results %s", batch.BatchID)
	}
	return checkRowsAffected(res, batch.BatchID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, parcels, results, summary, created_at, updated_at FROM batches WHERE id = ?`,
		batchID,
	)
	return scanBatch(row)
}

func (s *SQLiteStore) GetBatchSummary(ctx context.Context, batchID string) (*model.BatchSummary, error) {
	var summaryJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM batches WHERE id = ?`,
		batchID,
	).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch summary %s", batchID)
	}
	if !summaryJSON.Valid {
		return nil, nil
	}

	var summary model.BatchSummary
	if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &summary, nil
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	query := `SELECT id, status, parcels, results, summary, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: list batches iterate")
}

func (s *SQLiteStore) SaveAwards(ctx context.Context, awards []model.Award) (int, error) {
	if len(awards) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO awards (id, project, lat, lon, year, track, county_fips, new_construction, family_dev, units)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   project = excluded.project, lat = excluded.lat, lon = excluded.lon,
		   year = excluded.year, track = excluded.track, county_fips = excluded.county_fips,
		   new_construction = excluded.new_construction, family_dev = excluded.family_dev,
		   units = excluded.units`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare award upsert")
	}
	defer stmt.Close()

	for _, a := range awards {
		if _, err := stmt.ExecContext(ctx,
			a.ID, a.Project, a.Lat, a.Lon, a.Year, string(a.Track), a.CountyFIPS,
			a.NewConstruction, a.FamilyDev, a.Units,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert award %s", a.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit awards")
	}
	return len(awards), nil
}

func (s *SQLiteStore) ListAwards(ctx context.Context, countyFIPS string) ([]model.Award, error) {
	query := `SELECT id, project, lat, lon, year, track, county_fips, new_construction, family_dev, units FROM awards`
	var args []any
	if countyFIPS != "" {
		query += ` WHERE county_fips = ?`
		args = append(args, countyFIPS)
	}
	query += ` ORDER BY year DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list awards")
	}
	defer rows.Close()

	var awards []model.Award
	for rows.Next() {
		var a model.Award
		var project sql.NullString
		var track string
		if err := rows.Scan(&a.ID, &project, &a.Lat, &a.Lon, &a.Year, &track,
			&a.CountyFIPS, &a.NewConstruction, &a.FamilyDev, &a.Units); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan award")
		}
		a.Project = project.String
		a.Track = model.FinancingTrack(track)
		awards = append(awards, a)
	}
	return awards, eris.Wrap(rows.Err(), "sqlite: list awards iterate")
}

func (s *SQLiteStore) CountAwards(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM awards`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count awards")
}

// helpers

func checkRowsAffected(res sql.Result, batchID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "batch %s", batchID)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*Batch, error) {
	var b Batch
	var resultsJSON, summaryJSON sql.NullString

	err := row.Scan(&b.ID, &b.Status, &b.Parcels, &resultsJSON, &summaryJSON, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan batch")
	}

	if resultsJSON.Valid {
		if err := json.Unmarshal([]byte(resultsJSON.String), &b.Results); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal results")
		}
	}
	if summaryJSON.Valid {
		b.Summary = &model.BatchSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), b.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &b, nil
}
