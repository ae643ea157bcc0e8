package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/chunker"
	"github.com/H0NEYP0T-466/lettaXrag/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .lettarag/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys lists config keys in TOML section order.
var orderedKeys = []string{
	"data.folder",
	"data.append_log",
	"storage.dir",
	"chunking.size",
	"chunking.overlap",
	"sync.debounce_ms",
	"sync.workers",
	"sync.watch",
	"api.listen",
	"client.api_target",
	"vector_store.provider",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"events.provider",
	"events.brokers",
	"events.topic",
	"retrieval.top_k",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	var missed []string
	for k := range configKeys {
		if !slices.Contains(result, k) {
			missed = append(missed, k)
		}
	}
	slices.Sort(missed)

	return append(result, missed...)
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .lettarag/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always
// receive a fully-populated Config. Fields set in the file override the
// defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills fields explicitly set to empty values with defaults.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fillUint := func(v *uint, def uint) {
		if *v == 0 {
			*v = def
		}
	}

	fill(&cfg.Data.Folder, d.Data.Folder)
	fill(&cfg.Storage.Dir, d.Storage.Dir)
	fill(&cfg.API.Listen, d.API.Listen)
	fill(&cfg.Client.APITarget, d.Client.APITarget)
	fill(&cfg.VectorStore.Provider, d.VectorStore.Provider)
	fill(&cfg.Embedding.Provider, d.Embedding.Provider)
	fill(&cfg.Embedding.Target, d.Embedding.Target)
	fill(&cfg.Embedding.Model, d.Embedding.Model)
	fill(&cfg.Events.Provider, d.Events.Provider)
	fill(&cfg.Events.Topic, d.Events.Topic)

	fillUint(&cfg.Sync.DebounceMs, d.Sync.DebounceMs)
	fillUint(&cfg.Sync.Workers, d.Sync.Workers)
	fillUint(&cfg.Embedding.Dimensions, d.Embedding.Dimensions)
	fillUint(&cfg.Retrieval.TopK, d.Retrieval.TopK)

	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = d.Chunking.Size
	}
}

// SaveConfig persists the configuration to config.toml in the target .lettarag/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("no .lettarag directory found: run 'lettarag init' or pass --config-dir")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// Validate checks values that would otherwise fail deep inside a sync pass.
func (c *Config) Validate() error {
	if err := chunker.Validate(c.Chunking.Size, c.Chunking.Overlap); err != nil {
		return fmt.Errorf("chunking.size=%d chunking.overlap=%d: %w", c.Chunking.Size, c.Chunking.Overlap, err)
	}

	if !slices.Contains(ValidVectorProviders(), c.VectorStore.Provider) {
		return fmt.Errorf("unknown vector_store.provider %q (available: %s)",
			c.VectorStore.Provider, strings.Join(ValidVectorProviders(), ", "))
	}
	if c.VectorStore.Provider == "sqlite" && c.Embedding.Dimensions == 0 {
		return errors.New("vector_store.provider \"sqlite\" requires embedding.dimensions")
	}

	if !slices.Contains(ValidEventProviders(), c.Events.Provider) {
		return fmt.Errorf("unknown events.provider %q (available: %s)",
			c.Events.Provider, strings.Join(ValidEventProviders(), ", "))
	}
	if c.Events.Provider == "kafka" && len(c.Events.Brokers) == 0 {
		return errors.New("events.provider \"kafka\" requires events.brokers")
	}

	return nil
}

// ValidVectorProviders lists the vector_store.provider values.
func ValidVectorProviders() []string {
	return []string{"flat", "sqlite"}
}

// ValidEventProviders lists the events.provider values.
func ValidEventProviders() []string {
	return []string{"nop", "kafka"}
}

// PresetConfig returns a default Config tuned for the named embedding model
// preset. Supported presets: "minilm", "nomic", "mxbai".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "minilm":
		cfg.Embedding.Model = "all-minilm"
		cfg.Embedding.Dimensions = 384

	case "nomic":
		cfg.Embedding.Model = "nomic-embed-text"
		cfg.Embedding.Dimensions = 768

	case "mxbai":
		cfg.Embedding.Model = "mxbai-embed-large"
		cfg.Embedding.Dimensions = 1024

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"minilm", "nomic", "mxbai"}
}

// ParseConfigTOML parses raw TOML bytes into a Config. Fields absent from
// data keep their defaults. Returns an error if the version field is present
// and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// ResolveAppendLog returns the append-only log path, resolving relative
// paths against the data folder. An empty setting disables the log.
func (c *Config) ResolveAppendLog() string {
	if c.Data.AppendLog == "" {
		return ""
	}
	if filepath.IsAbs(c.Data.AppendLog) {
		return c.Data.AppendLog
	}
	return filepath.Join(c.Data.Folder, c.Data.AppendLog)
}
