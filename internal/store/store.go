// Package store handles SQLite persistence of annotation jobs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// Store wraps SQLite access for job data.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// JobSummary is one row of the job list.
type JobSummary struct {
	ID         string
	Name       string
	Sensor     model.SensorType
	SourcePath string
	Points     int
	Results    int
	LastError  string
	UpdatedAt  time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sensor TEXT NOT NULL,
			source_path TEXT NOT NULL,
			last_error TEXT NOT NULL,
			view_end TEXT NOT NULL,
			view_range_ms INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS named_points (
			job_id TEXT NOT NULL,
			label TEXT NOT NULL,
			ts TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (job_id, label)
		);`,
		`CREATE TABLE IF NOT EXISTS manual_results (
			job_id TEXT NOT NULL,
			id TEXT NOT NULL,
			channel INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			min REAL NOT NULL,
			max REAL NOT NULL,
			diff REAL NOT NULL,
			PRIMARY KEY (job_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS phases (
			job_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			PRIMARY KEY (job_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_source_path ON jobs(source_path);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveJob writes the job and replaces all of its points, results and phases
// in one transaction.
func (s *Store) SaveJob(ctx context.Context, job model.Job) (err error) {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (id, name, sensor, source_path, last_error, view_end, view_range_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sensor = excluded.sensor,
			source_path = excluded.source_path,
			last_error = excluded.last_error,
			view_end = excluded.view_end,
			view_range_ms = excluded.view_range_ms,
			updated_at = excluded.updated_at`,
		job.ID,
		job.Name,
		string(job.Sensor),
		job.SourcePath,
		job.LastError,
		formatTime(job.View.End),
		job.View.Range.Milliseconds(),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	); err != nil {
		return err
	}

	for _, table := range []string{"named_points", "manual_results", "phases"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", job.ID); err != nil {
			return err
		}
	}

	for _, p := range job.Points {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO named_points (job_id, label, ts, value) VALUES (?, ?, ?, ?)`,
			job.ID, p.Label, formatTime(p.Time), p.Value,
		); err != nil {
			return err
		}
	}
	for ch, results := range job.Results {
		for seq, r := range results {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO manual_results (job_id, id, channel, seq, start_at, end_at, min, max, diff)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				job.ID, r.ID, ch, seq, formatTime(r.Start), formatTime(r.End), r.Min, r.Max, r.Diff,
			); err != nil {
				return err
			}
		}
	}
	for seq, ph := range job.Phases {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO phases (job_id, seq, name, start_at, end_at) VALUES (?, ?, ?, ?, ?)`,
			job.ID, seq, ph.Name, formatTime(ph.Start), formatTime(ph.End),
		); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// LoadJob reads a job with all of its annotations.
func (s *Store) LoadJob(ctx context.Context, id string) (model.Job, error) {
	var (
		job                  model.Job
		sensor, viewEnd      string
		createdAt, updatedAt string
		viewRangeMs          int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, sensor, source_path, last_error, view_end, view_range_ms, created_at, updated_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Name, &sensor, &job.SourcePath, &job.LastError, &viewEnd, &viewRangeMs, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return model.Job{}, err
	}
	job.Sensor = model.SensorType(sensor)
	job.View.Range = time.Duration(viewRangeMs) * time.Millisecond
	if job.View.End, err = parseTime(viewEnd); err != nil {
		return model.Job{}, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Job{}, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Job{}, err
	}

	if job.Points, err = s.loadPoints(ctx, id); err != nil {
		return model.Job{}, err
	}
	if job.Results, err = s.loadResults(ctx, id); err != nil {
		return model.Job{}, err
	}
	if job.Phases, err = s.loadPhases(ctx, id); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func (s *Store) loadPoints(ctx context.Context, id string) (map[string]model.NamedPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, ts, value FROM named_points WHERE job_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	points := map[string]model.NamedPoint{}
	for rows.Next() {
		var p model.NamedPoint
		var ts string
		if err := rows.Scan(&p.Label, &ts, &p.Value); err != nil {
			return nil, err
		}
		if p.Time, err = parseTime(ts); err != nil {
			return nil, err
		}
		points[p.Label] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) loadResults(ctx context.Context, id string) (map[int][]model.ManualResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, start_at, end_at, min, max, diff
		 FROM manual_results WHERE job_id = ?
		 ORDER BY channel ASC, seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	results := map[int][]model.ManualResult{}
	for rows.Next() {
		var r model.ManualResult
		var start, end string
		if err := rows.Scan(&r.ID, &r.Channel, &start, &end, &r.Min, &r.Max, &r.Diff); err != nil {
			return nil, err
		}
		if r.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if r.End, err = parseTime(end); err != nil {
			return nil, err
		}
		results[r.Channel] = append(results[r.Channel], r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) loadPhases(ctx context.Context, id string) ([]model.Phase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, start_at, end_at FROM phases WHERE job_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var phases []model.Phase
	for rows.Next() {
		var ph model.Phase
		var start, end string
		if err := rows.Scan(&ph.Name, &start, &end); err != nil {
			return nil, err
		}
		if ph.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if ph.End, err = parseTime(end); err != nil {
			return nil, err
		}
		phases = append(phases, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return phases, nil
}

// FindJobBySource returns the most recently updated job for a source file.
func (s *Store) FindJobBySource(ctx context.Context, sourcePath string) (model.Job, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE source_path = ? ORDER BY updated_at DESC LIMIT 1`, sourcePath,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, sourcePath)
	}
	if err != nil {
		return model.Job{}, err
	}
	return s.LoadJob(ctx, id)
}

// ListJobs returns job summaries, most recently updated first.
func (s *Store) ListJobs(ctx context.Context) ([]JobSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT j.id, j.name, j.sensor, j.source_path, j.last_error, j.updated_at,
			(SELECT COUNT(*) FROM named_points p WHERE p.job_id = j.id),
			(SELECT COUNT(*) FROM manual_results r WHERE r.job_id = j.id)
		 FROM jobs j
		 ORDER BY j.updated_at DESC, j.id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var jobs []JobSummary
	for rows.Next() {
		var js JobSummary
		var sensor, updatedAt string
		if err := rows.Scan(&js.ID, &js.Name, &sensor, &js.SourcePath, &js.LastError, &updatedAt, &js.Points, &js.Results); err != nil {
			return nil, err
		}
		js.Sensor = model.SensorType(sensor)
		if js.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, js)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteJob removes a job and its annotations.
func (s *Store) DeleteJob(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrJobNotFound, id)
		return err
	}
	for _, table := range []string{"named_points", "manual_results", "phases"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = ?", id); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
