package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed journal_schema.sql
var journalSchemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on jobs.status
const currentJournalVersion = 1

// BuildStatus is the outcome of a build run.
type BuildStatus string

const (
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
	BuildAborted   BuildStatus = "aborted"
	BuildCancelled BuildStatus = "cancelled"
)

// JobStatus is the outcome of one partition job.
type JobStatus string

const (
	JobBuilt   JobStatus = "built"
	JobSkipped JobStatus = "skipped"
	JobFailed  JobStatus = "failed"
)

// BuildRecord is one row of the builds table.
type BuildRecord struct {
	ID           string      `json:"id"`
	Seq          int64       `json:"seq"`
	StartedAt    time.Time   `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	Status       BuildStatus `json:"status"`
	Workers      int         `json:"workers"`
	Force        bool        `json:"force"`
	ConfigDigest string      `json:"config_digest"`
}

// JobRecord is one row of the jobs table.
type JobRecord struct {
	BuildID     string        `json:"build_id"`
	IZ          int           `json:"iz"`
	SourceDepth float64       `json:"source_depth"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Records     int           `json:"records"`
	Seq         int64         `json:"seq"`
}

// Journal records build runs and job outcomes in SQLite.
type Journal struct {
	db    *sql.DB
	clock *SeqClock
}

// OpenJournal creates or opens the journal database at path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var last sql.NullInt64
	err = db.QueryRow(`
		SELECT MAX(seq) FROM (
			SELECT seq FROM builds
			UNION ALL
			SELECT seq FROM jobs
		)
	`).Scan(&last)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read journal position: %w", err)
	}

	return &Journal{db: db, clock: NewSeqClockAt(last.Int64)}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(journalSchemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentJournalVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index used by status queries over failed jobs.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// BeginBuild inserts a running build row and returns it with its seq.
// Uses ON CONFLICT(id) DO NOTHING, so re-recording a run id is a no-op.
func (j *Journal) BeginBuild(ctx context.Context, b BuildRecord) (BuildRecord, error) {
	b.Seq = j.clock.Next()
	b.Status = BuildRunning
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO builds
		(id, seq, started_at, status, workers, forced, config_digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		b.ID,
		b.Seq,
		b.StartedAt.UTC().Format(time.RFC3339Nano),
		string(b.Status),
		b.Workers,
		boolToInt(b.Force),
		b.ConfigDigest,
	)
	if err != nil {
		return b, fmt.Errorf("begin build: %w", err)
	}
	return b, nil
}

// FinishBuild records the final status of a build.
func (j *Journal) FinishBuild(ctx context.Context, id string, status BuildStatus, at time.Time) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE builds SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("finish build: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish build: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish build: unknown build %q", id)
	}
	return nil
}

// RecordJob inserts a job outcome. A second outcome for the same build and
// partition is silently ignored.
func (j *Journal) RecordJob(ctx context.Context, job JobRecord) (JobRecord, error) {
	job.Seq = j.clock.Next()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO jobs
		(build_id, iz, source_depth, status, error, duration_ms, records, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		job.BuildID,
		job.IZ,
		job.SourceDepth,
		string(job.Status),
		job.Error,
		job.Duration.Milliseconds(),
		job.Records,
		job.Seq,
	)
	if err != nil {
		return job, fmt.Errorf("record job: %w", err)
	}
	return job, nil
}

// Builds returns every build ordered by seq.
func (j *Journal) Builds(ctx context.Context) ([]BuildRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, started_at, finished_at, status, workers, forced, config_digest
		FROM builds
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []BuildRecord{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// LatestBuild returns the most recent build, or nil if the journal is empty.
func (j *Journal) LatestBuild(ctx context.Context) (*BuildRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, seq, started_at, finished_at, status, workers, forced, config_digest
		FROM builds
		ORDER BY seq DESC
		LIMIT 1
	`)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Jobs returns the job outcomes of a build ordered by seq.
func (j *Journal) Jobs(ctx context.Context, buildID string) ([]JobRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT build_id, iz, source_depth, status, error, duration_ms, records, seq
		FROM jobs
		WHERE build_id = ?
		ORDER BY seq ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []JobRecord{}
	for rows.Next() {
		var (
			job        JobRecord
			status     string
			durationMS int64
		)
		if err := rows.Scan(&job.BuildID, &job.IZ, &job.SourceDepth, &status, &job.Error, &durationMS, &job.Records, &job.Seq); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = JobStatus(status)
		job.Duration = time.Duration(durationMS) * time.Millisecond
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (BuildRecord, error) {
	var (
		b        BuildRecord
		started  string
		finished sql.NullString
		status   string
		forced   int
	)
	err := row.Scan(&b.ID, &b.Seq, &started, &finished, &status, &b.Workers, &forced, &b.ConfigDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return b, err
	}
	if err != nil {
		return b, fmt.Errorf("scan build: %w", err)
	}
	if b.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return b, fmt.Errorf("scan build: started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return b, fmt.Errorf("scan build: finished_at: %w", err)
		}
		b.FinishedAt = &t
	}
	b.Status = BuildStatus(status)
	b.Force = forced != 0
	return b, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
