package alarm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/store"
)

// Alarm codes used by the controller.
const (
	CodeLeak        = "E-LEAK"
	CodeNutrientLow = "E-NUTRI-LOW"
	CodeFeedEmpty   = "E-FEED-EMPTY"
	CodeBusLost     = "E-CAN-LOST"
	CodeServerLost  = "E-SRV-LOST"
)

// TransitionHook observes alarm raise (raised=true) and clear transitions.
type TransitionHook func(alarm models.Alarm, raised bool)

// Manager owns the set of active alarms. It deduplicates by code: raising an
// active code and clearing an absent code are both no-ops and emit no audit
// record. All mutation is serialized behind one mutex because every producer
// goroutine shares this structure.
type Manager struct {
	mu     sync.Mutex
	active map[string]models.Alarm
	store  store.Store
	logger *zap.Logger
	hooks  []TransitionHook

	now func() time.Time
}

func NewManager(st store.Store, logger *zap.Logger) *Manager {
	return &Manager{
		active: make(map[string]models.Alarm),
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// OnTransition registers a hook invoked after each raise/clear. Not safe to
// call once the controller goroutines are running.
func (m *Manager) OnTransition(hook TransitionHook) {
	m.hooks = append(m.hooks, hook)
}

// Raise activates code unless it is already active.
func (m *Manager) Raise(ctx context.Context, code, message string, sticky bool) {
	m.mu.Lock()
	if _, exists := m.active[code]; exists {
		m.mu.Unlock()
		return
	}
	a := models.Alarm{
		Code:     code,
		Message:  message,
		RaisedAt: m.now(),
		Sticky:   sticky,
	}
	m.active[code] = a
	m.appendAudit(ctx, models.LogTypeAlarm, a)
	m.mu.Unlock()

	m.logger.Warn("Alarm raised",
		zap.String("code", code),
		zap.String("message", message),
		zap.Bool("sticky", sticky),
	)
	for _, hook := range m.hooks {
		hook(a, true)
	}
}

// Clear deactivates code if it is active.
func (m *Manager) Clear(ctx context.Context, code string) {
	m.mu.Lock()
	a, exists := m.active[code]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.active, code)
	m.appendAudit(ctx, models.LogTypeAlarmClear, a)
	m.mu.Unlock()

	m.logger.Info("Alarm cleared", zap.String("code", code))
	for _, hook := range m.hooks {
		hook(a, false)
	}
}

// appendAudit is called with the mutex held so audit ordering matches
// transition ordering. Persistence failures are non-fatal.
func (m *Manager) appendAudit(ctx context.Context, logType string, a models.Alarm) {
	entry := models.LogEntry{
		ID:          uuid.New().String(),
		Type:        logType,
		TimestampMs: m.now().UnixMilli(),
		Fields: map[string]interface{}{
			"code":   a.Code,
			"msg":    a.Message,
			"sticky": a.Sticky,
		},
	}
	if err := m.store.AppendLog(ctx, entry); err != nil {
		m.logger.Warn("Failed to persist alarm audit record",
			zap.String("code", a.Code),
			zap.Error(err),
		)
	}
}

// AnyActive reports whether any alarm is currently active.
func (m *Manager) AnyActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) > 0
}

// IsActive reports whether the given code is active.
func (m *Manager) IsActive(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[code]
	return ok
}

// Active returns a copy of the active set, sorted by code for deterministic
// serialization.
func (m *Manager) Active() []models.Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Alarm, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
