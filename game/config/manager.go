package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// EnvPrefix prefixes environment overrides, e.g. DRIVESIM_VEHICLE_MAX_SPEED_KMH
const EnvPrefix = "DRIVESIM"

// DefaultProfile is loaded as the default when present
const DefaultProfile = "standard"

// Manager handles tuning profile loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.Tuning
	configs       map[string]*engine.Tuning
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.Tuning),
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	return m, nil
}

// LoadConfig loads a profile by name. Missing keys fall back to the
// built-in defaults and DRIVESIM_* environment variables override both.
func (m *Manager) LoadConfig(name string) (*engine.Tuning, error) {
	name = strings.TrimSuffix(name, ".json")

	m.mu.RLock()
	if config, exists := m.configs[name]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[name]; exists {
		return config, nil
	}

	config, err := ReadProfile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		return nil, err
	}

	m.configs[name] = config
	return config, nil
}

// ReadProfile reads and validates a single JSON profile
func ReadProfile(path string) (*engine.Tuning, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := setDefaults(v, engine.DefaultTuning()); err != nil {
		return nil, fmt.Errorf("failed to register defaults: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config engine.Tuning
	if err := v.Unmarshal(&config, jsonTags); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := engine.ValidateTuning(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &config, nil
}

// jsonTags makes viper decode through the same tags the profiles are written with
func jsonTags(dc *mapstructure.DecoderConfig) {
	dc.TagName = "json"
}

// setDefaults registers every field of t as a viper default so partial
// profiles and environment overrides see the full key set
func setDefaults(v *viper.Viper, t *engine.Tuning) error {
	var values map[string]interface{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &values})
	if err != nil {
		return err
	}
	if err := dec.Decode(*t); err != nil {
		return err
	}
	setDefaultKeys(v, "", values)
	return nil
}

func setDefaultKeys(v *viper.Viper, prefix string, values map[string]interface{}) {
	for key, value := range values {
		if nested, ok := value.(map[string]interface{}); ok {
			setDefaultKeys(v, prefix+key+".", nested)
			continue
		}
		v.SetDefault(prefix+key, value)
	}
}

// ListConfigs returns information about all available profiles
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Remove .json extension for config name
		name := strings.TrimSuffix(entry.Name(), ".json")

		config, err := m.LoadConfig(name)
		if err != nil {
			log.WithError(err).WithField("config", name).Debug("skipping invalid profile")
			continue
		}

		configs = append(configs, Describe(entry.Name(), name, config))
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// Describe summarises a profile for listings
func Describe(filename, id string, t *engine.Tuning) *service.ConfigInfo {
	network := engine.BuildNetwork(t.Viewport, t.World)
	return &service.ConfigInfo{
		Filename:    filename,
		ConfigID:    id,
		Name:        t.Name,
		Description: t.Description,
		MaxSpeedKmh: t.Vehicle.MaxSpeedKmh,
		WorldWidth:  network.Width,
		WorldHeight: network.Height,
		Elements:    len(engine.PlaceElements(network, t.World)),
	}
}

// GetDefault returns the default profile
func (m *Manager) GetDefault() *engine.Tuning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default profile by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache drops cached profiles and reloads the default from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.Tuning)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig loads the default profile
func (m *Manager) loadDefaultConfig() error {
	config, err := m.LoadConfig(DefaultProfile)
	if err != nil {
		// Try to load the first available config
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			config = engine.DefaultTuning()
		} else if config, err = m.LoadConfig(configs[0].ConfigID); err != nil {
			config = engine.DefaultTuning()
		}
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
	return nil
}

// SaveConfig saves a profile to disk
func (m *Manager) SaveConfig(name string, config *engine.Tuning) error {
	if err := engine.ValidateTuning(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad profile name '%s'", ErrInvalidConfig, name)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, name+".json")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[name] = config
	m.mu.Unlock()

	return nil
}
