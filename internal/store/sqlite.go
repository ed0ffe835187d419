package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/HydroNutri/Hardware/internal/models"
)

// SQLStore persists settings and the audit log in a SQL database. The
// production backend is SQLite; tests may inject any database/sql handle.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLStore wraps an already opened database handle.
func NewSQLStore(db *sql.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

// NewSQLiteStore opens or creates the SQLite database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id TEXT NOT NULL,
		type TEXT NOT NULL,
		ts_ms INTEGER NOT NULL,
		fields TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_logs_type ON logs(type);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return NewSQLStore(db, logger), nil
}

func (s *SQLStore) GetSettings(ctx context.Context) (models.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM settings WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to query settings: %w", err)
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

func (s *SQLStore) PutSettings(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO settings (id, data) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data",
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to store settings: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendLog(ctx context.Context, entry models.LogEntry) error {
	fields, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal log fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO logs (entry_id, type, ts_ms, fields) VALUES (?, ?, ?, ?)",
		entry.ID, entry.Type, entry.TimestampMs, string(fields),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	// Circular behavior: discard the oldest entries past the cap.
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM logs WHERE id NOT IN (SELECT id FROM logs ORDER BY id DESC LIMIT ?)",
		MaxLogEntries,
	)
	if err != nil {
		return fmt.Errorf("failed to trim log: %w", err)
	}
	return nil
}

func (s *SQLStore) GetLogs(ctx context.Context) ([]models.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT entry_id, type, ts_ms, fields FROM logs ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var fields sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.TimestampMs, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if fields.Valid && fields.String != "" && fields.String != "null" {
			if err := json.Unmarshal([]byte(fields.String), &entry.Fields); err != nil {
				s.logger.Warn("Skipping undecodable log fields",
					zap.String("entry_id", entry.ID),
					zap.Error(err),
				)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate logs: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
