// Package config provides configuration loading and structs for the birdsearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Ranking RankingConfig `yaml:"ranking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the record database and the search index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// SearchConfig holds search, snippet, and suggestion settings.
type SearchConfig struct {
	DefaultLimit         int `yaml:"default_limit"`
	MaxLimit             int `yaml:"max_limit"`
	TopKCandidates       int `yaml:"top_k_candidates"`
	SnippetLength        int `yaml:"snippet_length"`
	SuggestDefaultLimit  int `yaml:"suggest_default_limit"`
	SuggestMaxLimit      int `yaml:"suggest_max_limit"`
	SuggestCacheSize     int `yaml:"suggest_cache_size"`
	PopulateWorkers      int `yaml:"populate_workers"`
	MinQueryLength       int `yaml:"min_query_length"`
	StatsScanLimit       int `yaml:"stats_scan_limit"`
	RebuildBatchSize     int `yaml:"rebuild_batch_size"`
	FallbackScanLimit    int `yaml:"fallback_scan_limit"`
	SuggestDictScanLimit int `yaml:"suggest_dict_scan_limit"`
}

// RankingConfig holds the tunable ranking weights. The multipliers are
// empirical; keeping them in config lets operators adjust relevance without a
// redeploy (the config watcher hot-reloads them).
type RankingConfig struct {
	NameFieldWeight float64 `yaml:"name_field_weight"`
	ExactNameBoost  float64 `yaml:"exact_name_boost"`
	FavoriteBoost   float64 `yaml:"favorite_boost"`
	ImportanceScale float64 `yaml:"importance_scale"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
