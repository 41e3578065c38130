/**
 * PostgreSQL results store
 *
 * Persists extraction runs and per-row outcomes:
 *
 *   extraction_runs    (run_id uuid PRIMARY KEY, source text,
 *                       total_rows int, status text,
 *                       started_at timestamptz, finished_at timestamptz)
 *   extraction_results (run_id uuid, row_index int, image_url text,
 *                       entity_name text, param_type text, outcome text,
 *                       prediction text, error_code text,
 *                       error_message text, duration_ms bigint,
 *                       created_at timestamptz,
 *                       PRIMARY KEY (run_id, row_index))
 *
 * The store is optional: without a database URL the pipeline runs with
 * persistence disabled.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ResultRecord is one persisted row outcome
type ResultRecord struct {
	RowIndex     int
	ImageURL     string
	Entity       string
	ParamType    string
	Outcome      string
	Prediction   string
	ErrorCode    string
	ErrorMessage string
	DurationMs   int64
}

// Run summarizes one extraction run
type Run struct {
	ID         string
	Source     string
	TotalRows  int
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero until the run finishes
}

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient connects to the database and verifies it is reachable
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Connection pool sized for a single worker process
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// BeginRun records the start of a run. Calling it again for the same run
// ID resets the run to running.
func (p *PostgresClient) BeginRun(ctx context.Context, runID, source string, totalRows int) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	query := `
		INSERT INTO extraction_runs (run_id, source, total_rows, status, started_at)
		VALUES ($1::uuid, $2, $3, 'running', NOW())
		ON CONFLICT (run_id) DO UPDATE SET
			source = EXCLUDED.source,
			total_rows = EXCLUDED.total_rows,
			status = 'running',
			finished_at = NULL
	`

	if _, err := p.db.ExecContext(ctx, query, runID, source, totalRows); err != nil {
		return fmt.Errorf("failed to begin run %s: %w", runID, err)
	}

	return nil
}

// FinishRun marks a run finished and records its final row count
func (p *PostgresClient) FinishRun(ctx context.Context, runID string, totalRows int) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}

	query := `
		UPDATE extraction_runs
		SET status = 'finished', total_rows = $2, finished_at = NOW()
		WHERE run_id = $1::uuid
	`

	res, err := p.db.ExecContext(ctx, query, runID, totalRows)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}

	return nil
}

// SaveResults upserts one chunk of row outcomes in a single transaction.
// Re-running a chunk overwrites its earlier outcomes.
func (p *PostgresClient) SaveResults(ctx context.Context, runID string, records []ResultRecord) error {
	if runID == "" {
		return fmt.Errorf("run ID is required")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO extraction_results (
			run_id, row_index, image_url, entity_name, param_type,
			outcome, prediction, error_code, error_message, duration_ms,
			created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5,
			$6, $7, NULLIF($8, ''), NULLIF($9, ''), $10,
			NOW()
		)
		ON CONFLICT (run_id, row_index) DO UPDATE SET
			image_url = EXCLUDED.image_url,
			entity_name = EXCLUDED.entity_name,
			param_type = EXCLUDED.param_type,
			outcome = EXCLUDED.outcome,
			prediction = EXCLUDED.prediction,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			duration_ms = EXCLUDED.duration_ms
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare result upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(
			ctx,
			runID,            // $1 - run_id
			rec.RowIndex,     // $2 - row_index
			rec.ImageURL,     // $3 - image_url
			rec.Entity,       // $4 - entity_name
			rec.ParamType,    // $5 - param_type
			rec.Outcome,      // $6 - outcome
			rec.Prediction,   // $7 - prediction
			rec.ErrorCode,    // $8 - error_code
			rec.ErrorMessage, // $9 - error_message
			rec.DurationMs,   // $10 - duration_ms
		)
		if err != nil {
			return fmt.Errorf("failed to upsert result (run=%s, row=%d): %w", runID, rec.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	return nil
}

// GetRun retrieves one run by ID
func (p *PostgresClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	query := `
		SELECT run_id, source, total_rows, status, started_at, finished_at
		FROM extraction_runs
		WHERE run_id = $1::uuid
	`

	var (
		run        Run
		source     sql.NullString
		finishedAt sql.NullTime
	)

	err := p.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &source, &run.TotalRows, &run.Status,
		&run.StartedAt, &finishedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	run.Source = source.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	return &run, nil
}

// GetResult retrieves one persisted row outcome
func (p *PostgresClient) GetResult(ctx context.Context, runID string, rowIndex int) (*ResultRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	query := `
		SELECT row_index, image_url, entity_name, param_type,
		       outcome, prediction, error_code, error_message, duration_ms
		FROM extraction_results
		WHERE run_id = $1::uuid AND row_index = $2
	`

	var (
		rec                     ResultRecord
		errorCode, errorMessage sql.NullString
	)

	err := p.db.QueryRowContext(ctx, query, runID, rowIndex).Scan(
		&rec.RowIndex, &rec.ImageURL, &rec.Entity, &rec.ParamType,
		&rec.Outcome, &rec.Prediction, &errorCode, &errorMessage, &rec.DurationMs,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result not found: run=%s row=%d", runID, rowIndex)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get result (run=%s, row=%d): %w", runID, rowIndex, err)
	}

	rec.ErrorCode = errorCode.String
	rec.ErrorMessage = errorMessage.String

	return &rec, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
