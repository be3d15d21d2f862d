package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/manaforge/manaforge-client-go/internal/api"
	"go.uber.org/zap"
)

// Settings is the server-published game settings document. Only the fields the
// SDK acts on are modeled; the rest stay in Raw for callers that need them.
type Settings struct {
	Version         string   `json:"version"`
	MaintenanceMode bool     `json:"maintenance_mode"`
	TestMode        bool     `json:"test_mode"`
	Prefix          string   `json:"prefix"`
	BattleOps       []string `json:"api_ops"`
	ElevatedAuthOps []string `json:"elevated_auth_ops"`
	Nodes           []string `json:"rpc_nodes"`

	Raw json.RawMessage `json:"-"`
}

// opPrefix is the base namespace every game operation id carries on the ledger.
const opPrefix = "mf_"

// Manager caches the settings document and refreshes it periodically.
type Manager struct {
	client *api.Client
	logger *zap.Logger

	mu      sync.RWMutex
	current Settings
	loaded  bool

	onVersionChange func(oldVersion, newVersion string)
}

// NewManager creates a settings manager backed by the given API client.
func NewManager(client *api.Client, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger,
	}
}

// OnVersionChange registers a hook invoked when the published settings version
// changes between refreshes.
func (m *Manager) OnVersionChange(fn func(oldVersion, newVersion string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onVersionChange = fn
}

// Refresh fetches the settings document and replaces the cached copy.
func (m *Manager) Refresh(ctx context.Context) error {
	raw, err := m.client.Settings(ctx)
	if err != nil {
		return err
	}

	var next Settings
	if err := json.Unmarshal(raw, &next); err != nil {
		return err
	}
	next.Raw = raw

	m.mu.Lock()
	prev := m.current
	wasLoaded := m.loaded
	m.current = next
	m.loaded = true
	hook := m.onVersionChange
	m.mu.Unlock()

	if wasLoaded && hook != nil && prev.Version != next.Version {
		m.logger.Info("settings version changed",
			zap.String("old_version", prev.Version),
			zap.String("new_version", next.Version),
		)
		hook(prev.Version, next.Version)
	}

	return nil
}

// Poll refreshes settings on the given interval until ctx is cancelled.
func (m *Manager) Poll(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.Warn("settings refresh failed", zap.Error(err))
			}
		}
	}
}

// Current returns the cached settings document.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set replaces the cached settings directly. Used by tests and by callers that
// obtained a settings document out of band.
func (m *Manager) Set(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	m.loaded = true
}

// OperationPrefix returns the namespace applied to operation ids. In test mode
// the configured environment prefix is prepended so test transactions never
// collide with production ones.
func (m *Manager) OperationPrefix() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.TestMode {
		return m.current.Prefix + opPrefix
	}
	return opPrefix
}

// IsBattleOp reports whether the operation belongs to the battle class that is
// routed through the low-latency server-side broadcast path.
func (m *Manager) IsBattleOp(op string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.current.BattleOps {
		if o == op {
			return true
		}
	}
	return false
}

// IsElevatedAuthOp reports whether the operation must be signed with the
// elevated authority level.
func (m *Manager) IsElevatedAuthOp(op string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.current.ElevatedAuthOps {
		if o == op {
			return true
		}
	}
	return false
}

// LedgerNodes returns the published ledger RPC node list.
func (m *Manager) LedgerNodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]string, len(m.current.Nodes))
	copy(nodes, m.current.Nodes)
	return nodes
}
