package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/blackms/gradflow/internal/shared"
)

// SQLiteConfig holds configuration for the SQLite history store.
type SQLiteConfig struct {
	DatabasePath string `json:"databasePath"`
}

// DefaultSQLiteConfig returns sensible defaults for the SQLite store.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{DatabasePath: ".data/history.db"}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLiteStore creates a new SQLite history store.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = DefaultSQLiteConfig().DatabasePath
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %v", ErrStoreInitFailed, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStoreInitFailed, err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates the database schema.
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			iter_cnt INTEGER NOT NULL,
			loss REAL NOT NULL,
			extra TEXT,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_run ON history(run_id, epoch, iter_cnt);
		CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", ErrStoreInitFailed, err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if record.Timestamp == 0 {
		record.Timestamp = shared.Now()
	}

	var extra []byte
	if record.Extra != nil {
		data, err := json.Marshal(record.Extra)
		if err != nil {
			return fmt.Errorf("%w: failed to marshal extra: %v", ErrQueryFailed, err)
		}
		extra = data
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (run_id, epoch, iter_cnt, loss, extra, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.RunID, record.Epoch, record.IterCnt, record.Loss, extra, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", ErrQueryFailed, err)
	}
	return nil
}

// Records implements Store.
func (s *SQLiteStore) Records(ctx context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, epoch, iter_cnt, loss, extra, timestamp
		 FROM history WHERE run_id = ? ORDER BY epoch, iter_cnt`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: select failed: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRunNotFound
	}
	return records, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM history GROUP BY run_id ORDER BY MAX(timestamp) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: select failed: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", ErrQueryFailed, err)
		}
		runs = append(runs, runID)
	}
	return runs, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var record Record
		var extra []byte
		if err := rows.Scan(&record.RunID, &record.Epoch, &record.IterCnt, &record.Loss, &extra, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", ErrQueryFailed, err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &record.Extra); err != nil {
				return nil, fmt.Errorf("%w: failed to unmarshal extra: %v", ErrQueryFailed, err)
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
