package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vigilhq/vigil/internal/health"
)

// ErrNoReports is returned when a query matches no persisted runs.
var ErrNoReports = errors.New("history: no reports")

// Store is the append-only SQLite persistence for composite reports.
// Reports are never updated or deleted individually; the only mutation
// besides insert is retention pruning. Writes are serialized behind a
// mutex so concurrent runs for different targets cannot interleave an
// append.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		id           TEXT PRIMARY KEY,
		target       TEXT NOT NULL,
		timestamp    TEXT NOT NULL,
		score        INTEGER NOT NULL,
		grade        TEXT NOT NULL,
		level        TEXT NOT NULL,
		partial      INTEGER NOT NULL,
		run_trigger  TEXT NOT NULL,
		results_json TEXT NOT NULL,
		actions_json TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_reports_target_ts ON reports(target, timestamp);`)
	if err != nil {
		return fmt.Errorf("history: init index: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append persists one report. The report itself is never mutated; a
// failed append leaves the caller's copy valid and unpersisted.
func (s *Store) Append(r *health.Report) error {
	resultsJSON, err := json.Marshal(r.Results)
	if err != nil {
		return fmt.Errorf("history: marshal results: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("history: marshal actions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO reports
		(id, target, timestamp, score, grade, level, partial, run_trigger, results_json, actions_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Target,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Score,
		r.Grade,
		string(r.Level),
		boolToInt(r.Partial),
		r.Trigger,
		string(resultsJSON),
		string(actionsJSON),
	)
	if err != nil {
		return fmt.Errorf("history: insert report: %w", err)
	}
	return nil
}

// Latest returns the most recent report for target.
func (s *Store) Latest(target string) (*health.Report, error) {
	row := s.db.QueryRow(`SELECT id, target, timestamp, score, grade, level, partial, run_trigger, results_json, actions_json
		FROM reports WHERE target = ? ORDER BY timestamp DESC LIMIT 1`, target)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoReports
	}
	return r, err
}

// Since returns all reports for target with a timestamp at or after since,
// oldest first.
func (s *Store) Since(target string, since time.Time) ([]health.Report, error) {
	rows, err := s.db.Query(`SELECT id, target, timestamp, score, grade, level, partial, run_trigger, results_json, actions_json
		FROM reports WHERE target = ? AND timestamp >= ? ORDER BY timestamp ASC`,
		target, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []health.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Trend summarises the score series for target since the given time.
type Trend struct {
	Runs     int     `json:"runs"`
	MinScore int     `json:"min_score"`
	AvgScore float64 `json:"avg_score"`
	MaxScore int     `json:"max_score"`

	// Below is the number of runs scoring under the threshold passed to
	// the query.
	Below int `json:"below"`
}

// Trend computes min/average/max score and the count of runs below the
// given score over the period starting at since.
func (s *Store) Trend(target string, since time.Time, below int) (*Trend, error) {
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(MIN(score), 0), COALESCE(AVG(score), 0), COALESCE(MAX(score), 0),
		COALESCE(SUM(CASE WHEN score < ? THEN 1 ELSE 0 END), 0)
		FROM reports WHERE target = ? AND timestamp >= ?`,
		below, target, since.UTC().Format(time.RFC3339Nano))

	t := &Trend{}
	if err := row.Scan(&t.Runs, &t.MinScore, &t.AvgScore, &t.MaxScore, &t.Below); err != nil {
		return nil, fmt.Errorf("history: trend: %w", err)
	}
	if t.Runs == 0 {
		return nil, ErrNoReports
	}
	return t, nil
}

// Prune deletes reports older than cutoff and returns how many were
// removed. Retention is the only deletion path.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM reports WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows for scanReport.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (*health.Report, error) {
	var (
		r            health.Report
		ts, level    string
		partial      int
		resultsJSON  string
		actionsJSON  string
	)
	if err := sc.Scan(&r.ID, &r.Target, &ts, &r.Score, &r.Grade, &level, &partial, &r.Trigger, &resultsJSON, &actionsJSON); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("history: parse timestamp: %w", err)
	}
	r.Timestamp = t
	r.Level = health.Level(level)
	r.Partial = partial == 1
	r.Persisted = true

	if err := json.Unmarshal([]byte(resultsJSON), &r.Results); err != nil {
		return nil, fmt.Errorf("history: unmarshal results: %w", err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &r.Actions); err != nil {
		return nil, fmt.Errorf("history: unmarshal actions: %w", err)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
