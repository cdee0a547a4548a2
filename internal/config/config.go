// Package config manages the chatvibe configuration file: backend profiles,
// themes and the list of backends shown in the menu. It also persists the
// session flag and encrypted credentials for each profile.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultProfileName is the profile created on first run.
const DefaultProfileName = "local"

// Environment overrides applied to every loaded profile.
const (
	EnvBaseURL   = "CHATVIBE_BASE_URL"
	EnvSocketURL = "CHATVIBE_SOCKET_URL"
)

// Config represents the complete configuration file structure
type Config struct {
	Profiles map[string]interfaces.Profile  `yaml:"profiles"`
	Themes   map[string]interfaces.Theme    `yaml:"themes"`
	Backends []interfaces.RegisteredBackend `yaml:"backends"`
}

// Manager implements interfaces.ConfigManager on top of a YAML file.
type Manager struct {
	mu           sync.Mutex
	configPath   string
	cachedConfig *Config
	logger       *logging.Logger
}

// NewManager creates a configuration manager at the XDG config location.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine configuration path: %w", err)
	}
	return NewManagerWithPath(configPath)
}

// NewManagerWithPath creates a configuration manager for an explicit file.
func NewManagerWithPath(configPath string) (*Manager, error) {
	manager := &Manager{
		configPath: configPath,
		logger:     logging.GetConfigLogger(),
	}

	if err := manager.ensureConfigDirectory(); err != nil {
		return nil, apperrors.NewConfigurationError("config").
			WithOperation("init").
			WithMessage("failed to create configuration directory").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	return manager, nil
}

// ConfigDir returns the chatvibe configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "chatvibe"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "chatvibe"), nil
}

func getConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.yaml"), nil
}

func (m *Manager) ensureConfigDirectory() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// loadConfig reads and parses the configuration file, creating defaults if
// necessary. Callers hold m.mu.
func (m *Manager) loadConfig() (*Config, error) {
	if m.cachedConfig != nil {
		return m.cachedConfig, nil
	}

	m.logger.LogConfigLoad(m.configPath, "")

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := m.saveConfig(config); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}
		m.logger.Info("Created default configuration", "path", m.configPath)
		m.cachedConfig = config
		return config, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, apperrors.NewConfigurationError("config").
			WithOperation("parse").
			WithMessage("failed to parse configuration file").
			WithUserMessage(fmt.Sprintf("%s is not valid YAML", m.configPath)).
			WithCause(err).
			Build()
	}

	if config.Profiles == nil {
		config.Profiles = make(map[string]interfaces.Profile)
	}
	if config.Themes == nil {
		config.Themes = DefaultConfig().Themes
	}

	m.cachedConfig = &config
	return &config, nil
}

// saveConfig writes the configuration with owner-only permissions.
func (m *Manager) saveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Profiles: map[string]interfaces.Profile{
			DefaultProfileName: {
				Name:           DefaultProfileName,
				BaseURL:        "http://localhost:8000/api",
				SocketURL:      "ws://localhost:8000/ws",
				CredentialMode: interfaces.CredentialsCookie,
				Theme:          "mocha",
			},
		},
		Themes: map[string]interfaces.Theme{
			"mocha": {
				Name:        "mocha",
				Accent:      "#7D56F4",
				Success:     "#A6E3A1",
				Error:       "#F38BA8",
				Warning:     "#FAB387",
				Info:        "#89B4FA",
				CodeStyle:   "dracula",
				SenderColor: "#CBA6F7",
			},
			"github": {
				Name:        "github",
				Accent:      "#0366d6",
				Success:     "#28a745",
				Error:       "#dc3545",
				Warning:     "#ffc107",
				Info:        "#17a2b8",
				CodeStyle:   "github",
				SenderColor: "#6f42c1",
			},
			"monokai": {
				Name:        "monokai",
				Accent:      "#ae81ff",
				Success:     "#a6e22e",
				Error:       "#f92672",
				Warning:     "#fd971f",
				Info:        "#66d9ef",
				CodeStyle:   "monokai",
				SenderColor: "#e6db74",
			},
		},
		Backends: []interfaces.RegisteredBackend{
			{Name: "Local development", Profile: DefaultProfileName},
		},
	}
}

// LoadProfile retrieves a profile by name and applies environment overrides.
func (m *Manager) LoadProfile(name string) (*interfaces.Profile, error) {
	m.mu.Lock()
	config, err := m.loadConfig()
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	profile, exists := config.Profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	profile.Name = name
	ApplyEnvOverrides(&profile)

	if err := m.ValidateProfile(&profile); err != nil {
		return nil, fmt.Errorf("profile '%s' is invalid: %w", name, err)
	}

	m.logger.LogConfigLoad(m.configPath, name)
	return &profile, nil
}

// ApplyEnvOverrides replaces profile URLs with CHATVIBE_* environment values.
func ApplyEnvOverrides(profile *interfaces.Profile) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		profile.BaseURL = v
	}
	if v := os.Getenv(EnvSocketURL); v != "" {
		profile.SocketURL = v
	}
}

// SaveProfile persists a profile to the configuration file
func (m *Manager) SaveProfile(profile *interfaces.Profile) error {
	if err := m.ValidateProfile(profile); err != nil {
		return fmt.Errorf("cannot save invalid profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Profiles[profile.Name] = *profile

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// ListProfiles returns all profile names in sorted order.
func (m *Manager) ListProfiles() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadTheme retrieves theme configuration by name
func (m *Manager) LoadTheme(name string) (*interfaces.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	theme, exists := config.Themes[name]
	if !exists {
		return nil, fmt.Errorf("theme '%s' not found", name)
	}
	theme.Name = name
	return &theme, nil
}

// GetRegisteredBackends returns the backends listed in the menu.
func (m *Manager) GetRegisteredBackends() ([]interfaces.RegisteredBackend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	backends := make([]interfaces.RegisteredBackend, len(config.Backends))
	copy(backends, config.Backends)
	return backends, nil
}

// RegisterBackend adds a backend to the menu, replacing one with the same name.
func (m *Manager) RegisterBackend(backend interfaces.RegisteredBackend) error {
	if strings.TrimSpace(backend.Name) == "" {
		return fmt.Errorf("backend name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, ok := config.Profiles[backend.Profile]; !ok {
		return fmt.Errorf("backend '%s' references unknown profile '%s'", backend.Name, backend.Profile)
	}

	replaced := false
	for i, existing := range config.Backends {
		if existing.Name == backend.Name {
			config.Backends[i] = backend
			replaced = true
			break
		}
	}
	if !replaced {
		config.Backends = append(config.Backends, backend)
	}

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	return nil
}

// ValidateProfile checks names, URL schemes and the credential mode. All
// problems are reported together.
func (m *Manager) ValidateProfile(profile *interfaces.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	chain := apperrors.NewErrorChain(m.logger)

	if strings.TrimSpace(profile.Name) == "" {
		chain.Add(fmt.Errorf("profile name cannot be empty"))
	}
	chain.Add(validateURL("base_url", profile.BaseURL, "http", "https"))
	chain.Add(validateURL("socket_url", profile.SocketURL, "ws", "wss"))

	switch profile.CredentialMode {
	case interfaces.CredentialsBearer, interfaces.CredentialsCookie:
	default:
		chain.Add(fmt.Errorf("unsupported credential mode %q (want bearer or cookie)", profile.CredentialMode))
	}

	return chain.Err()
}

func validateURL(field, raw string, schemes ...string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %s, got %q", field, strings.Join(schemes, "/"), u.Scheme)
}

// GetConfigPath returns the path to the configuration file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// InvalidateCache clears the cached configuration, forcing a reload on next access
func (m *Manager) InvalidateCache() {
	m.mu.Lock()
	m.cachedConfig = nil
	m.mu.Unlock()
}

// DeleteProfile removes a profile and any backends that point at it.
func (m *Manager) DeleteProfile(name string) error {
	if name == DefaultProfileName {
		return fmt.Errorf("cannot delete the default profile")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, exists := config.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' does not exist", name)
	}

	delete(config.Profiles, name)
	kept := config.Backends[:0]
	for _, b := range config.Backends {
		if b.Profile != name {
			kept = append(kept, b)
		}
	}
	config.Backends = kept

	return m.saveConfig(config)
}
