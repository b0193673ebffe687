package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/sootloop/game/engine"
	"github.com/wricardo/mcp-training/sootloop/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = engine.ErrInvalidConfig
)

//go:embed defaults.yaml
var defaultLevel []byte

//go:embed level.schema.json
var levelSchema string

// extensions lists the level file extensions in lookup order.
var extensions = []string{".yaml", ".yml", ".json"}

// Manager handles level configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.LevelConfig
	configs       map[string]*engine.LevelConfig
	schema        *jsonschema.Schema
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	schema, err := jsonschema.CompileString("level.schema.json", levelSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compile level schema: %w", err)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.LevelConfig),
		schema:    schema,
	}

	// Load default config
	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// LoadConfig loads a level by name. The name may carry an extension; without
// one the .yaml, .yml and .json files are tried in that order.
func (m *Manager) LoadConfig(name string) (*engine.LevelConfig, error) {
	id := configID(name)

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	// Load from file
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := m.parse(data, engine.FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("level '%s': %w", filepath.Base(path), err)
	}

	m.configs[id] = config
	return config, nil
}

// resolve finds the file backing a level name
func (m *Manager) resolve(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: invalid level name %q", ErrConfigNotFound, name)
	}

	candidates := []string{name}
	if engine.FormatForPath(name) == "" {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, filename := range candidates {
		path := filepath.Join(m.configDir, filename)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// parse decodes a level file, validates JSON documents against the level schema
// and runs the engine validation rules
func (m *Manager) parse(data []byte, format string) (*engine.LevelConfig, error) {
	if format == "json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if err := m.schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: schema: %v", ErrInvalidConfig, err)
		}
	}

	config, err := engine.ParseLevelConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := engine.ValidateLevelConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || engine.FormatForPath(entry.Name()) == "" {
			continue
		}

		id := configID(entry.Name())
		if seen[id] {
			continue
		}

		// Skip invalid configs
		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:     entry.Name(),
			ConfigID:     id, // This is the identifier to use for session creation
			Name:         config.Name,
			Description:  config.Description,
			Width:        config.Width,
			Height:       config.Height,
			Candies:      config.Candies,
			Fuel:         config.Fuel,
			StartingFuel: config.StartingFuel,
			ReplayPolicy: config.Policy(),
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.LevelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
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

// RefreshCache drops every cached level and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.LevelConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// loadDefaultConfig picks classic, then the first valid level on disk, then the
// embedded level
func (m *Manager) loadDefaultConfig() error {
	config, err := m.LoadConfig("classic")
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr == nil && len(configs) > 0 {
			config, err = m.LoadConfig(configs[0].Filename)
		}
	}
	if err != nil {
		config, err = m.parse(defaultLevel, "yaml")
		if err != nil {
			return fmt.Errorf("embedded level: %w", err)
		}
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
	return nil
}

// SaveConfig validates a level and writes it to disk. Names ending in .json are
// written as JSON, everything else as YAML.
func (m *Manager) SaveConfig(name string, config *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || name == "" {
		return fmt.Errorf("invalid level name %q", name)
	}

	filename := name
	if engine.FormatForPath(filename) == "" {
		filename = name + ".yaml"
	}

	var data []byte
	var err error
	if engine.FormatForPath(filename) == "json" {
		data, err = json.MarshalIndent(config, "", "  ")
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, filename)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.configs[configID(filename)] = config.Clone()
	m.mu.Unlock()

	return nil
}

// configID strips the level file extension
func configID(name string) string {
	if engine.FormatForPath(name) != "" {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
