package editwatch

import (
	"github.com/hazyhaar/storyedit/editwatch/internal/config"
)

// Config is the top-level editwatch configuration. Re-exported from internal.
type Config = config.Config

// KeysConfig names the store keys.
type KeysConfig = config.KeysConfig

// DebounceConfig controls edit coalescing.
type DebounceConfig = config.DebounceConfig

// OriginConfig controls server marks.
type OriginConfig = config.OriginConfig

// StoreConfig selects the store backend.
type StoreConfig = config.StoreConfig

// DocumentConfig selects the document source.
type DocumentConfig = config.DocumentConfig

// HTTPConfig controls the API listener.
type HTTPConfig = config.HTTPConfig

// ErrNoRegions is returned by Config.Validate when no region is monitored.
var ErrNoRegions = config.ErrNoRegions

// DefaultRegions are the story page's monitored regions.
var DefaultRegions = config.DefaultRegions

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
