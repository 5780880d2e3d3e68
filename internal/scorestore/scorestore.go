// Package scorestore keeps the history of training runs in SQLite so model
// accuracy can be compared across retrains.
package scorestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/healthfusion/nutriwaste/internal/nutrient"
	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scores (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		nutrient    TEXT NOT NULL,
		algorithm   TEXT NOT NULL,
		train_mse   REAL NOT NULL,
		train_rmse  REAL NOT NULL,
		test_mse    REAL NOT NULL,
		test_rmse   REAL NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_scores_key ON scores(nutrient, algorithm, recorded_at);`,
	`CREATE INDEX IF NOT EXISTS idx_scores_run ON scores(run_id);`,
}

// Score is one recorded evaluation
type Score struct {
	RunID      string             `json:"run_id"`
	Nutrient   nutrient.Nutrient  `json:"nutrient"`
	Algorithm  nutrient.Algorithm `json:"algorithm"`
	TrainMSE   float64            `json:"train_mse"`
	TrainRMSE  float64            `json:"train_rmse"`
	TestMSE    float64            `json:"test_mse"`
	TestRMSE   float64            `json:"test_rmse"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// Store is a SQLite backed score history
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate history: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a score under runID
func (s *Store) Record(ctx context.Context, runID string, sc Score) error {
	recorded := sc.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores(run_id, nutrient, algorithm, train_mse, train_rmse, test_mse, test_rmse, recorded_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		runID, string(sc.Nutrient), string(sc.Algorithm),
		sc.TrainMSE, sc.TrainRMSE, sc.TestMSE, sc.TestRMSE, recorded,
	)
	if err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

// Latest returns the most recent score of each nutrient for an algorithm
func (s *Store) Latest(ctx context.Context, algo nutrient.Algorithm) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.run_id, s.nutrient, s.algorithm, s.train_mse, s.train_rmse, s.test_mse, s.test_rmse, s.recorded_at
		 FROM scores s
		 WHERE s.algorithm = ? AND s.id = (
			SELECT MAX(id) FROM scores WHERE algorithm = s.algorithm AND nutrient = s.nutrient
		 )
		 ORDER BY s.nutrient`, string(algo))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scores: %w", err)
	}
	return scan(rows)
}

// History returns up to limit scores for a key, newest first
func (s *Store) History(ctx context.Context, n nutrient.Nutrient, algo nutrient.Algorithm, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, nutrient, algorithm, train_mse, train_rmse, test_mse, test_rmse, recorded_at
		 FROM scores
		 WHERE nutrient = ? AND algorithm = ?
		 ORDER BY id DESC
		 LIMIT ?`, string(n), string(algo), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	return scan(rows)
}

func scan(rows *sql.Rows) ([]Score, error) {
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var sc Score
		var n, a string
		if err := rows.Scan(&sc.RunID, &n, &a, &sc.TrainMSE, &sc.TrainRMSE, &sc.TestMSE, &sc.TestRMSE, &sc.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		sc.Nutrient, sc.Algorithm = nutrient.Nutrient(n), nutrient.Algorithm(a)
		out = append(out, sc)
	}
	return out, rows.Err()
}
