package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
)

// Manager implements interfaces.RegistryManager on top of the config file.
type Manager struct {
	configManager    interfaces.ConfigManager
	healthMonitor    *HealthMonitor
	order            []string
	backends         map[string]*interfaces.RegisteredBackend
	backendHealth    map[string]*interfaces.BackendHealth
	mutex            sync.RWMutex
	monitoringActive bool
	monitoringCancel context.CancelFunc
	monitoringDone   chan struct{}
	preferences      RegistryPreferences
	statistics       RegistryStatistics
	logger           *logging.Logger
}

// RegistryPreferences defines configuration options for registry behavior
type RegistryPreferences struct {
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	HealthCheckTimeout  time.Duration `json:"healthCheckTimeout"`
	ConcurrentChecks    int           `json:"concurrentChecks"`
	HistorySize         int           `json:"historySize"`
}

// DefaultPreferences are used when NewManager is given none.
func DefaultPreferences() RegistryPreferences {
	return RegistryPreferences{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		ConcurrentChecks:    5,
		HistorySize:         DefaultHistorySize,
	}
}

// RegistryStatistics tracks health check counts across all backends.
type RegistryStatistics struct {
	TotalBackends     int                       `json:"totalBackends"`
	ReadyBackends     int                       `json:"readyBackends"`
	OfflineBackends   int                       `json:"offlineBackends"`
	ErrorBackends     int                       `json:"errorBackends"`
	TotalHealthChecks int64                     `json:"totalHealthChecks"`
	SuccessfulChecks  int64                     `json:"successfulChecks"`
	FailedChecks      int64                     `json:"failedChecks"`
	LastUpdateTime    time.Time                 `json:"lastUpdateTime"`
	BackendMetrics    map[string]BackendMetrics `json:"backendMetrics"`
}

// BackendMetrics holds per-backend counters.
type BackendMetrics struct {
	TotalChecks         int64         `json:"totalChecks"`
	SuccessfulChecks    int64         `json:"successfulChecks"`
	FailedChecks        int64         `json:"failedChecks"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	LastOnlineTime      time.Time     `json:"lastOnlineTime"`
	LastOfflineTime     time.Time     `json:"lastOfflineTime"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
}

// NewManager loads the registered backends from configuration.
func NewManager(configManager interfaces.ConfigManager, preferences RegistryPreferences) (*Manager, error) {
	if configManager == nil {
		return nil, fmt.Errorf("configManager cannot be nil")
	}

	defaults := DefaultPreferences()
	if preferences.HealthCheckInterval <= 0 {
		preferences.HealthCheckInterval = defaults.HealthCheckInterval
	}
	if preferences.HealthCheckTimeout <= 0 {
		preferences.HealthCheckTimeout = defaults.HealthCheckTimeout
	}
	if preferences.ConcurrentChecks <= 0 {
		preferences.ConcurrentChecks = defaults.ConcurrentChecks
	}

	manager := &Manager{
		configManager: configManager,
		healthMonitor: NewHealthMonitor(preferences.HistorySize),
		backends:      make(map[string]*interfaces.RegisteredBackend),
		backendHealth: make(map[string]*interfaces.BackendHealth),
		preferences:   preferences,
		statistics: RegistryStatistics{
			BackendMetrics: make(map[string]BackendMetrics),
			LastUpdateTime: time.Now(),
		},
		logger: logging.GetRegistryLogger(),
	}

	if err := manager.loadRegisteredBackends(); err != nil {
		return nil, fmt.Errorf("failed to load registered backends: %w", err)
	}

	return manager, nil
}

// GetRegisteredBackends returns the backends in config order with their
// latest status.
func (m *Manager) GetRegisteredBackends() ([]interfaces.RegisteredBackend, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	backends := make([]interfaces.RegisteredBackend, 0, len(m.order))
	for _, name := range m.order {
		backend := *m.backends[name]
		backend.Status = StatusUnknown
		if health, exists := m.backendHealth[name]; exists {
			backend.Status = health.Status
		}
		backends = append(backends, backend)
	}
	return backends, nil
}

// RegisterBackend adds or replaces a backend and persists it.
func (m *Manager) RegisterBackend(backend interfaces.RegisteredBackend) error {
	if backend.Name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	if backend.Profile == "" {
		return fmt.Errorf("backend profile cannot be empty")
	}
	if _, err := m.configManager.LoadProfile(backend.Profile); err != nil {
		return fmt.Errorf("profile '%s' does not exist: %w", backend.Profile, err)
	}
	if err := m.configManager.RegisterBackend(backend); err != nil {
		return fmt.Errorf("failed to persist backend '%s': %w", backend.Name, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if existing, exists := m.backends[backend.Name]; exists {
		existing.Profile = backend.Profile
		return nil
	}
	m.addBackend(backend)
	return nil
}

// GetBackendHealth returns the last known health of a backend.
func (m *Manager) GetBackendHealth(name string) (*interfaces.BackendHealth, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, exists := m.backends[name]; !exists {
		return nil, fmt.Errorf("backend '%s' not found in registry", name)
	}
	health, exists := m.backendHealth[name]
	if !exists {
		return nil, fmt.Errorf("no health information available for backend '%s'", name)
	}
	healthCopy := *health
	return &healthCopy, nil
}

// CheckBackendHealth probes one backend now.
func (m *Manager) CheckBackendHealth(ctx context.Context, name string) (*interfaces.BackendHealth, error) {
	m.mutex.RLock()
	backend, exists := m.backends[name]
	m.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend '%s' not found in registry", name)
	}

	profile, err := m.configManager.LoadProfile(backend.Profile)
	if err != nil {
		health := &interfaces.BackendHealth{
			Name:        name,
			Status:      StatusError,
			LastChecked: time.Now(),
			Error:       err.Error(),
		}
		m.storeHealth(health)
		return health, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.preferences.HealthCheckTimeout)
	defer cancel()

	health := m.healthMonitor.CheckBackendHealth(checkCtx, name, profile)
	m.storeHealth(health)

	healthCopy := *health
	return &healthCopy, nil
}

// HealthHistory returns the recorded snapshots for a backend.
func (m *Manager) HealthHistory(name string, limit int) []HealthSnapshot {
	return m.healthMonitor.GetHealthHistory(name, limit)
}

// HealthTrends summarises a backend's recent health.
func (m *Manager) HealthTrends(name string, window time.Duration) (*HealthTrends, error) {
	return m.healthMonitor.GetHealthTrends(name, window)
}

// StartHealthMonitoring checks every backend immediately and then every
// interval until StopHealthMonitoring or ctx is cancelled. A zero interval
// uses the configured preference.
func (m *Manager) StartHealthMonitoring(ctx context.Context, interval time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.monitoringActive {
		return fmt.Errorf("health monitoring is already active")
	}
	if interval <= 0 {
		interval = m.preferences.HealthCheckInterval
	}

	monitoringCtx, cancel := context.WithCancel(ctx)
	m.monitoringCancel = cancel
	m.monitoringDone = make(chan struct{})
	m.monitoringActive = true

	m.logger.Info("Health monitoring started", "interval", interval, "backends", len(m.order))
	go m.runHealthMonitoring(monitoringCtx, interval, m.monitoringDone)
	return nil
}

// StopHealthMonitoring cancels the monitoring loop and waits for it to exit.
func (m *Manager) StopHealthMonitoring() error {
	m.mutex.Lock()
	if !m.monitoringActive {
		m.mutex.Unlock()
		return fmt.Errorf("health monitoring is not currently active")
	}
	cancel, done := m.monitoringCancel, m.monitoringDone
	m.monitoringCancel, m.monitoringDone = nil, nil
	m.monitoringActive = false
	m.mutex.Unlock()

	cancel()
	<-done
	m.logger.Info("Health monitoring stopped")
	return nil
}

// MonitoringActive reports whether the periodic loop is running.
func (m *Manager) MonitoringActive() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.monitoringActive
}

// GetRegistryStatistics returns a copy of the registry counters.
func (m *Manager) GetRegistryStatistics() RegistryStatistics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statsCopy := m.statistics
	statsCopy.BackendMetrics = make(map[string]BackendMetrics, len(m.statistics.BackendMetrics))
	for name, metrics := range m.statistics.BackendMetrics {
		statsCopy.BackendMetrics[name] = metrics
	}
	return statsCopy
}

func (m *Manager) loadRegisteredBackends() error {
	backends, err := m.configManager.GetRegisteredBackends()
	if err != nil {
		return err
	}
	for _, backend := range backends {
		m.addBackend(backend)
	}
	return nil
}

// addBackend must be called with the mutex held or before the manager is shared.
func (m *Manager) addBackend(backend interfaces.RegisteredBackend) {
	b := backend
	m.backends[b.Name] = &b
	m.order = append(m.order, b.Name)
	m.statistics.TotalBackends = len(m.order)
	m.statistics.BackendMetrics[b.Name] = BackendMetrics{}
}

func (m *Manager) runHealthMonitoring(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	m.performHealthCheckCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.performHealthCheckCycle(ctx)
		}
	}
}

// performHealthCheckCycle checks every backend with bounded concurrency and
// returns once all checks of the cycle have finished.
func (m *Manager) performHealthCheckCycle(ctx context.Context) {
	m.mutex.RLock()
	names := append([]string(nil), m.order...)
	m.mutex.RUnlock()

	semaphore := make(chan struct{}, m.preferences.ConcurrentChecks)
	var wg sync.WaitGroup

	for _, name := range names {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(backend string) {
				defer wg.Done()
				defer func() { <-semaphore }()
				if _, err := m.CheckBackendHealth(ctx, backend); err != nil {
					m.logger.Warn("Health check skipped", "backend", backend, "error", err)
				}
			}(name)
		}
	}
	wg.Wait()
}

func (m *Manager) storeHealth(health *interfaces.BackendHealth) {
	var checkErr error
	if health.Error != "" {
		checkErr = fmt.Errorf("%s", health.Error)
	}
	m.logger.LogHealthCheck(health.Name, health.Status, health.ResponseTime, checkErr)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	previous := StatusUnknown
	if existing, exists := m.backendHealth[health.Name]; exists {
		previous = existing.Status
	}
	stored := *health
	m.backendHealth[health.Name] = &stored
	m.updateStatistics(&stored)

	if previous != health.Status {
		m.logger.Info("Backend status changed", "backend", health.Name, "from", previous, "to", health.Status)
	}
}

// updateStatistics must be called with the mutex held.
func (m *Manager) updateStatistics(health *interfaces.BackendHealth) {
	m.statistics.TotalHealthChecks++
	m.statistics.LastUpdateTime = time.Now()

	metrics := m.statistics.BackendMetrics[health.Name]
	metrics.TotalChecks++

	if health.Status == StatusReady {
		m.statistics.SuccessfulChecks++
		metrics.SuccessfulChecks++
		metrics.LastOnlineTime = health.LastChecked
		metrics.ConsecutiveFailures = 0
	} else {
		m.statistics.FailedChecks++
		metrics.FailedChecks++
		metrics.LastOfflineTime = health.LastChecked
		metrics.ConsecutiveFailures++
	}
	metrics.UptimePercentage = float64(metrics.SuccessfulChecks) / float64(metrics.TotalChecks) * 100

	if health.ResponseTime > 0 {
		if metrics.AverageResponseTime == 0 {
			metrics.AverageResponseTime = health.ResponseTime
		} else {
			metrics.AverageResponseTime = (metrics.AverageResponseTime + health.ResponseTime) / 2
		}
	}
	m.statistics.BackendMetrics[health.Name] = metrics

	m.statistics.ReadyBackends, m.statistics.OfflineBackends, m.statistics.ErrorBackends = 0, 0, 0
	for _, h := range m.backendHealth {
		switch h.Status {
		case StatusReady:
			m.statistics.ReadyBackends++
		case StatusOffline:
			m.statistics.OfflineBackends++
		case StatusError:
			m.statistics.ErrorBackends++
		}
	}
}
