package scan

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/vinscan/vinscan/internal/metrics"
	"github.com/vinscan/vinscan/internal/recognition"
)

// ManagerConfig carries the shared wiring every device engine is built from.
type ManagerConfig struct {
	Flags     FeatureFlagSet
	MaxFrames int
	Text      recognition.TextRecognizer
	Barcode   recognition.BarcodeScanner
	Quality   recognition.QualityAnalyzer
	Metrics   metrics.Sink
	Archiver  Archiver
	Notifier  Notifier
	Log       *slog.Logger
}

// Manager owns one Engine per device, created lazily on first use. Engines
// are never evicted implicitly; a device that stops scanning keeps its
// frame window until Remove.
type Manager struct {
	cfg ManagerConfig
	log *slog.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

func NewManager(cfg ManagerConfig) *Manager {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		log:     log.With("component", "scan-manager"),
		engines: make(map[string]*Engine),
	}
}

// Engine returns the device's engine, creating it on first use.
func (m *Manager) Engine(deviceID string) *Engine {
	m.mu.RLock()
	eng, ok := m.engines[deviceID]
	m.mu.RUnlock()
	if ok {
		return eng
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if eng, ok := m.engines[deviceID]; ok {
		return eng
	}
	eng = NewEngine(EngineConfig{
		DeviceID:  deviceID,
		Flags:     m.cfg.Flags,
		MaxFrames: m.cfg.MaxFrames,
		Text:      m.cfg.Text,
		Barcode:   m.cfg.Barcode,
		Quality:   m.cfg.Quality,
		Metrics:   m.cfg.Metrics,
		Archiver:  m.cfg.Archiver,
		Notifier:  m.cfg.Notifier,
		Log:       m.cfg.Log,
	})
	m.engines[deviceID] = eng
	m.log.Debug("engine created", "device_id", deviceID)
	return eng
}

// Peek returns the engine without creating one.
func (m *Manager) Peek(deviceID string) (*Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[deviceID]
	return eng, ok
}

// Remove drops a device's engine and its frame window.
func (m *Manager) Remove(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, deviceID)
}

// Devices lists device IDs with live engines, sorted for stable output.
func (m *Manager) Devices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
