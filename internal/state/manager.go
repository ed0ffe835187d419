package state

import (
	"sync"
	"time"

	"github.com/HydroNutri/Hardware/internal/models"
	"github.com/HydroNutri/Hardware/internal/protocol"
)

// KnownModules lists every peripheral the controller tracks. Health entries
// exist for all of them from startup and are never removed.
var KnownModules = []byte{
	protocol.ModuleTank,
	protocol.ModuleGrow,
	protocol.ModuleNutrient,
	protocol.ModuleFeed,
}

// Manager guards the shared system state: the snapshot, the per-module
// health map and the uplink link state. Every reader and writer goroutine
// goes through this mutex; snapshot slots are replaced, never mutated in
// place, so returned copies stay race-free.
type Manager struct {
	mu       sync.RWMutex
	snapshot models.SystemSnapshot
	health   map[byte]*models.ModuleHealth

	// linkConnected is the raw uplink link state, toggled by connectivity
	// events; snapshot.UplinkConnected is the derived indicator the
	// reporter maintains from it.
	linkConnected bool

	now func() time.Time
}

func NewManager() *Manager {
	m := &Manager{
		health: make(map[byte]*models.ModuleHealth),
		now:    time.Now,
	}
	for _, id := range KnownModules {
		m.health[id] = &models.ModuleHealth{ModuleID: id}
	}
	return m
}

// SetClock overrides the time source. Test hook.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// ApplyReading stamps the source module as seen now and replaces the
// matching snapshot slot.
func (m *Manager) ApplyReading(source byte, r models.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.health[source]; ok {
		h.LastSeen = m.now()
	}

	switch v := r.(type) {
	case models.TankReading:
		m.snapshot.Tank = &v
	case models.GrowReading:
		m.snapshot.Grow = &v
	case models.NutrientReading:
		m.snapshot.Nutrient = &v
	case models.FeedReading:
		m.snapshot.Feed = &v
	}
}

// MarkLiveness recomputes per-module liveness against the staleness
// threshold and updates the aggregate indicator. Returns the aggregate.
func (m *Manager) MarkLiveness(threshold time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	allOK := true
	for _, h := range m.health {
		h.OK = !h.LastSeen.IsZero() && now.Sub(h.LastSeen) < threshold
		if !h.OK {
			allOK = false
		}
	}
	m.snapshot.PeripheralsOK = allOK
	return allOK
}

// Health returns a copy of every module health entry.
func (m *Manager) Health() []models.ModuleHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ModuleHealth, 0, len(m.health))
	for _, id := range KnownModules {
		out = append(out, *m.health[id])
	}
	return out
}

// Snapshot returns the current system snapshot.
func (m *Manager) Snapshot() models.SystemSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// SetUplinkConnected toggles the raw uplink link state.
func (m *Manager) SetUplinkConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkConnected = connected
}

// UplinkConnected reads the raw uplink link state.
func (m *Manager) UplinkConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linkConnected
}

// SetUplinkIndicator records the reporter-derived uplink-ok indicator in
// the snapshot.
func (m *Manager) SetUplinkIndicator(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.UplinkConnected = ok
}

// DispenseFeed reduces the feeder slot by grams, clamped at zero. Operator
// and scheduler actions share this path.
func (m *Manager) DispenseFeed(grams int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.Feed == nil {
		m.snapshot.Feed = &models.FeedReading{}
	}
	updated := *m.snapshot.Feed
	if int(updated.RemainingGrams) > grams {
		updated.RemainingGrams -= uint16(grams)
	} else {
		updated.RemainingGrams = 0
	}
	m.snapshot.Feed = &updated
}

// SetGrowLED records the applied grow light brightness in the snapshot.
func (m *Manager) SetGrowLED(brightness int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.Grow == nil {
		m.snapshot.Grow = &models.GrowReading{}
	}
	updated := *m.snapshot.Grow
	updated.LEDBrightness = uint8(brightness)
	m.snapshot.Grow = &updated
}
