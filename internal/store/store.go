package store

import (
	"context"

	"github.com/HydroNutri/Hardware/internal/models"
)

// MaxLogEntries caps the audit log; older entries are discarded first.
const MaxLogEntries = 2000

// Store is the settings/log persistence collaborator. All calls are
// synchronous; the controller treats failures as non-fatal and keeps
// operating on in-memory state.
type Store interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	PutSettings(ctx context.Context, s models.Settings) error
	AppendLog(ctx context.Context, entry models.LogEntry) error
	GetLogs(ctx context.Context) ([]models.LogEntry, error)
	Close() error
}
