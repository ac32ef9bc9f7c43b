package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/blackms/gradflow/internal/shared"
)

// PostgresConfig holds configuration for the PostgreSQL history store.
// Unset fields fall back to the standard PG* environment variables.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	Database string `json:"database"`
	SSL      bool   `json:"ssl"`
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewPostgresStore creates a new PostgreSQL history store and verifies the
// connection.
func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.Host == "" {
		config.Host = getEnvOrDefault("PGHOST", "localhost")
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.User == "" {
		config.User = getEnvOrDefault("PGUSER", "postgres")
	}
	if config.Password == "" {
		config.Password = os.Getenv("PGPASSWORD")
	}
	if config.Database == "" {
		config.Database = os.Getenv("PGDATABASE")
	}

	db, err := sql.Open("postgres", buildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open connection: %v", ErrStoreInitFailed, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping failed: %v", ErrStoreInitFailed, err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// buildConnectionString constructs a PostgreSQL connection string.
func buildConnectionString(config PostgresConfig) string {
	sslMode := "disable"
	if config.SSL {
		sslMode = "require"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Database, sslMode,
	)

	if config.Password != "" {
		connStr += fmt.Sprintf(" password=%s", config.Password)
	}

	return connStr
}

// initSchema creates the database schema.
func (p *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS training_history (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			iter_cnt INTEGER NOT NULL,
			loss DOUBLE PRECISION NOT NULL,
			extra JSONB,
			timestamp BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_training_history_run
			ON training_history(run_id, epoch, iter_cnt);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to create schema: %v", ErrStoreInitFailed, err)
	}
	return nil
}

// Append implements Store.
func (p *PostgresStore) Append(ctx context.Context, record Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
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

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO training_history (run_id, epoch, iter_cnt, loss, extra, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.RunID, record.Epoch, record.IterCnt, record.Loss, extra, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", ErrQueryFailed, err)
	}
	return nil
}

// Records implements Store.
func (p *PostgresStore) Records(ctx context.Context, runID string) ([]Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrStoreClosed
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT run_id, epoch, iter_cnt, loss, extra, timestamp
		 FROM training_history WHERE run_id = $1 ORDER BY epoch, iter_cnt`,
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
func (p *PostgresStore) Runs(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrStoreClosed
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT run_id FROM training_history GROUP BY run_id ORDER BY MAX(timestamp) DESC`,
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
func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
