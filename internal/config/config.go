package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete retrieval engine configuration.
// It mirrors the schema defined in SPEC_FULL.md Section 6.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Pinpoint   PinpointConfig   `yaml:"pinpoint" json:"pinpoint"`
	Quality    QualityConfig    `yaml:"quality" json:"quality"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StoreConfig configures the chunk store and lexical index locations.
type StoreConfig struct {
	// DBPath is the SQLite chunk store path (chunks, embeddings tables).
	DBPath string `yaml:"db_path" json:"db_path"`
	// FTSPath is the SQLite FTS5 lexical index path. Empty reuses DBPath.
	FTSPath string `yaml:"fts_path" json:"fts_path"`
	// CacheMB is the SQLite page cache size in MB applied to both handles.
	CacheMB int `yaml:"cache_mb" json:"cache_mb"`
}

// RetrievalConfig configures hybrid retrieval fusion parameters.
// Weights and the RRF constant are configurable via:
//  1. User config (~/.config/iso26262ret/config.yaml) - personal defaults
//  2. Project config (.iso26262ret.yaml) - per-corpus tuning
//  3. Env vars (ISO26262RET_BM25_WEIGHT, ISO26262RET_SEMANTIC_WEIGHT,
//     ISO26262RET_RRF_CONSTANT) - highest precedence
type RetrievalConfig struct {
	// BM25Weight is the weight for lexical (FTS5/BM25) matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`

	// SemanticWeight is the weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with BM25Weight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults is the default number of fused+hydrated results returned
	// per query when the caller does not specify a limit.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// EmbeddingsConfig configures the embedding backend used by the embedding
// pipeline and by query-time vectorization.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// MLX settings (opt-in on Apple Silicon via provider: mlx or ISO26262RET_EMBEDDER=mlx)
	MLXEndpoint string `yaml:"mlx_endpoint" json:"mlx_endpoint"`
	MLXModel    string `yaml:"mlx_model" json:"mlx_model"`

	// Ollama settings (default, cross-platform)
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	ModelDownloadTimeout time.Duration `yaml:"model_download_timeout" json:"model_download_timeout"`
}

// PinpointConfig configures sub-chunk localization.
type PinpointConfig struct {
	// MaxUnits bounds how many candidate units the pinpoint engine scores
	// and returns per hydrated result (default: pinpoint.PinpointUnitLimit).
	MaxUnits int `yaml:"max_units" json:"max_units"`
	// Enabled controls whether query results carry pinpoint localization
	// by default (callers may still override per-query).
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// QualityConfig selects which stage gate the quality validator evaluates
// against.
type QualityConfig struct {
	// Stage is "A" (bootstrap floor) or "B" (production bound).
	Stage string `yaml:"stage" json:"stage"`
	// BootstrapIterations is the resample count for the deterministic
	// bootstrap confidence interval.
	BootstrapIterations int `yaml:"bootstrap_iterations" json:"bootstrap_iterations"`
	// BootstrapSeed seeds the xorshift64 resampler so report runs are
	// reproducible.
	BootstrapSeed uint64 `yaml:"bootstrap_seed" json:"bootstrap_seed"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// FilePath is the rotating log file path. Empty logs to stderr only.
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			DBPath:  "iso26262.db",
			FTSPath: "",
			CacheMB: 64,
		},
		Retrieval: RetrievalConfig{
			BM25Weight:     0.5,
			SemanticWeight: 0.5,
			RRFConstant:    60,
			MaxResults:     10,
		},
		Embeddings: EmbeddingsConfig{
			Provider:             "", // Empty selects Ollama; there is no fallback to MLX or Static
			Model:                "qwen3-embedding:8b",
			Dimensions:           0, // Auto-detect from embedder
			BatchSize:            32,
			MLXEndpoint:          "", // Empty uses default http://localhost:9659
			MLXModel:             "", // Empty uses default "small"
			OllamaHost:           "", // Empty uses default http://localhost:11434
			ModelDownloadTimeout: 10 * time.Minute,
		},
		Pinpoint: PinpointConfig{
			MaxUnits: 0, // 0 uses pinpoint.PinpointUnitLimit
			Enabled:  true,
		},
		Quality: QualityConfig{
			Stage:               "A",
			BootstrapIterations: 2000,
			BootstrapSeed:       1,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/iso26262ret/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/iso26262ret/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "iso26262ret", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback - should rarely happen
		return filepath.Join(os.TempDir(), ".config", "iso26262ret", "config.yaml")
	}
	return filepath.Join(home, ".config", "iso26262ret", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil // No user config is fine
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/iso26262ret/config.yaml)
//  3. Project config (.iso26262ret.yaml in the corpus root)
//  4. Environment variables (ISO26262RET_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .iso26262ret.yaml or
// .iso26262ret.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".iso26262ret.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".iso26262ret.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Store
	if other.Store.DBPath != "" {
		c.Store.DBPath = other.Store.DBPath
	}
	if other.Store.FTSPath != "" {
		c.Store.FTSPath = other.Store.FTSPath
	}
	if other.Store.CacheMB != 0 {
		c.Store.CacheMB = other.Store.CacheMB
	}

	// Retrieval weights and RRF constant
	// Note: 0 is not a practical value for weights, so we only merge non-zero values
	if other.Retrieval.BM25Weight != 0 {
		c.Retrieval.BM25Weight = other.Retrieval.BM25Weight
	}
	if other.Retrieval.SemanticWeight != 0 {
		c.Retrieval.SemanticWeight = other.Retrieval.SemanticWeight
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.MaxResults != 0 {
		c.Retrieval.MaxResults = other.Retrieval.MaxResults
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.MLXEndpoint != "" {
		c.Embeddings.MLXEndpoint = other.Embeddings.MLXEndpoint
	}
	if other.Embeddings.MLXModel != "" {
		c.Embeddings.MLXModel = other.Embeddings.MLXModel
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.ModelDownloadTimeout != 0 {
		c.Embeddings.ModelDownloadTimeout = other.Embeddings.ModelDownloadTimeout
	}

	// Pinpoint
	if other.Pinpoint.MaxUnits != 0 {
		c.Pinpoint.MaxUnits = other.Pinpoint.MaxUnits
	}
	if other.Pinpoint.Enabled {
		c.Pinpoint.Enabled = other.Pinpoint.Enabled
	}

	// Quality
	if other.Quality.Stage != "" {
		c.Quality.Stage = other.Quality.Stage
	}
	if other.Quality.BootstrapIterations != 0 {
		c.Quality.BootstrapIterations = other.Quality.BootstrapIterations
	}
	if other.Quality.BootstrapSeed != 0 {
		c.Quality.BootstrapSeed = other.Quality.BootstrapSeed
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies ISO26262RET_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ISO26262RET_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.BM25Weight = w
		}
	}
	if v := os.Getenv("ISO26262RET_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.SemanticWeight = w
		}
	}
	if v := os.Getenv("ISO26262RET_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}

	if v := os.Getenv("ISO26262RET_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	// ISO26262RET_EMBEDDER is an alias for ISO26262RET_EMBEDDINGS_PROVIDER
	if v := os.Getenv("ISO26262RET_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("ISO26262RET_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("ISO26262RET_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("ISO26262RET_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ISO26262RET_QUALITY_STAGE"); v != "" {
		c.Quality.Stage = v
	}
	if v := os.Getenv("ISO26262RET_STORE_DB_PATH"); v != "" {
		c.Store.DBPath = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// FindProjectRoot finds the corpus root directory.
// It looks for a .git directory or .iso26262ret.yaml/.yml file by walking
// up the directory tree.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}

		if fileExists(filepath.Join(currentDir, ".iso26262ret.yaml")) ||
			fileExists(filepath.Join(currentDir, ".iso26262ret.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root, return original directory
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Retrieval.BM25Weight < 0 || c.Retrieval.BM25Weight > 1 {
		return fmt.Errorf("retrieval.bm25_weight must be between 0 and 1, got %f", c.Retrieval.BM25Weight)
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return fmt.Errorf("retrieval.semantic_weight must be between 0 and 1, got %f", c.Retrieval.SemanticWeight)
	}

	sum := c.Retrieval.BM25Weight + c.Retrieval.SemanticWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("retrieval.bm25_weight + retrieval.semantic_weight must equal 1.0, got %.2f", sum)
	}

	if c.Retrieval.MaxResults < 0 {
		return fmt.Errorf("retrieval.max_results must be non-negative, got %d", c.Retrieval.MaxResults)
	}

	// Empty string allowed for auto-detection
	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"llama": true, "static": true, "ollama": true, "mlx": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'llama', 'static', 'ollama', 'mlx', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validStages := map[string]bool{"A": true, "B": true}
	if !validStages[strings.ToUpper(c.Quality.Stage)] {
		return fmt.Errorf("quality.stage must be 'A' or 'B', got %s", c.Quality.Stage)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing values.
// Returns a list of field names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Retrieval.BM25Weight == 0 {
		c.Retrieval.BM25Weight = defaults.Retrieval.BM25Weight
		added = append(added, "retrieval.bm25_weight")
	}
	if c.Retrieval.SemanticWeight == 0 {
		c.Retrieval.SemanticWeight = defaults.Retrieval.SemanticWeight
		added = append(added, "retrieval.semantic_weight")
	}
	if c.Retrieval.RRFConstant == 0 {
		c.Retrieval.RRFConstant = defaults.Retrieval.RRFConstant
		added = append(added, "retrieval.rrf_constant")
	}

	if c.Store.CacheMB == 0 {
		c.Store.CacheMB = defaults.Store.CacheMB
		added = append(added, "store.cache_mb")
	}

	if c.Quality.BootstrapIterations == 0 {
		c.Quality.BootstrapIterations = defaults.Quality.BootstrapIterations
		added = append(added, "quality.bootstrap_iterations")
	}
	if c.Quality.Stage == "" {
		c.Quality.Stage = defaults.Quality.Stage
		added = append(added, "quality.stage")
	}

	return added
}
