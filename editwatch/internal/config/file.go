// Package config handles editwatch configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoRegions is returned by Validate when no region is monitored.
var ErrNoRegions = errors.New("config: no monitored regions")

// DefaultRegions are the story page's monitored regions: narrative
// history, mid-term memory and long-term memory.
var DefaultRegions = []string{"#story-history", ".mid-synopsis-area", ".long-synopsis-area"}

// Config is the top-level editwatch configuration.
type Config struct {
	Regions  []string       `yaml:"regions"`
	Keys     KeysConfig     `yaml:"keys"`
	Debounce DebounceConfig `yaml:"debounce"`
	Origin   OriginConfig   `yaml:"origin"`
	Store    StoreConfig    `yaml:"store"`
	Document DocumentConfig `yaml:"document"`
	HTTP     HTTPConfig     `yaml:"http"`
	StoryDB  string         `yaml:"story_db"`
}

// KeysConfig names the three store keys.
type KeysConfig struct {
	Server    string `yaml:"server"`
	User      string `yaml:"user"`
	Candidate string `yaml:"candidate"`
}

// DebounceConfig controls edit coalescing.
type DebounceConfig struct {
	Window time.Duration `yaml:"window"`
}

// OriginConfig controls server marks.
type OriginConfig struct {
	MarkerTTL time.Duration `yaml:"marker_ttl"`
}

// StoreConfig selects the persistent store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory | sqlite | badger
	Path    string `yaml:"path"`
	Quota   int    `yaml:"quota"` // memory backend only, bytes
}

// DocumentConfig selects where regions are read from: a static HTML file
// or a live page.
type DocumentConfig struct {
	File    string `yaml:"file"`
	URL     string `yaml:"url"`
	Remote  string `yaml:"remote"`
	Stealth bool   `yaml:"stealth"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if len(c.Regions) == 0 {
		c.Regions = append([]string(nil), DefaultRegions...)
	}
	if c.Keys.Server == "" {
		c.Keys.Server = "storySnapshots"
	}
	if c.Keys.User == "" {
		c.Keys.User = "userSnapshots"
	}
	if c.Keys.Candidate == "" {
		c.Keys.Candidate = "candidateSnapshot"
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 700 * time.Millisecond
	}
	if c.Origin.MarkerTTL <= 0 {
		c.Origin.MarkerTTL = 250 * time.Millisecond
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Path == "" && c.Store.Backend != "memory" {
		c.Store.Path = "./data/editwatch." + c.Store.Backend
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if len(c.Regions) == 0 {
		return ErrNoRegions
	}
	seen := make(map[string]bool, len(c.Regions))
	for _, r := range c.Regions {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("config: empty region selector")
		}
		if seen[r] {
			return fmt.Errorf("config: duplicate region %q", r)
		}
		seen[r] = true
	}
	k := c.Keys
	if k.Server == k.User || k.Server == k.Candidate || k.User == k.Candidate {
		return fmt.Errorf("config: store keys must be distinct (server=%q user=%q candidate=%q)", k.Server, k.User, k.Candidate)
	}
	switch c.Store.Backend {
	case "memory", "sqlite", "badger":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Document.File != "" && c.Document.URL != "" {
		return fmt.Errorf("config: document.file and document.url are mutually exclusive")
	}
	return nil
}
