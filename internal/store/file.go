package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/HydroNutri/Hardware/internal/models"
)

type fileData struct {
	Settings *models.Settings  `json:"settings,omitempty"`
	Logs     []models.LogEntry `json:"logs,omitempty"`
}

// FileStore persists settings and the audit log in a single JSON file,
// written atomically via a temp file and rename.
type FileStore struct {
	mu   sync.Mutex
	path string
	data fileData
}

// NewFileStore opens or creates the backing file. An unreadable file is
// treated as empty rather than an error.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = fileData{}
	}
	return s, nil
}

func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (s *FileStore) GetSettings(_ context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Settings == nil {
		return models.DefaultSettings(), nil
	}
	return *s.data.Settings, nil
}

func (s *FileStore) PutSettings(_ context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Settings = &settings
	return s.save()
}

func (s *FileStore) AppendLog(_ context.Context, entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Logs = append(s.data.Logs, entry)
	if n := len(s.data.Logs); n > MaxLogEntries {
		s.data.Logs = append(s.data.Logs[:0], s.data.Logs[n-MaxLogEntries:]...)
	}
	return s.save()
}

func (s *FileStore) GetLogs(_ context.Context) ([]models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LogEntry, len(s.data.Logs))
	copy(out, s.data.Logs)
	return out, nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
