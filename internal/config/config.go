// Package config loads opinionsearch configuration with layered
// precedence: built-in defaults, then a project config file, then
// OPINIONSEARCH_* environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// ConfigFileName is the project config file looked up in the working
// directory.
const ConfigFileName = "opinionsearch.yaml"

// Config is the complete opinionsearch configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates the corpus and the built indexes.
type PathsConfig struct {
	// DataDir holds the extracted opinion JSON files, one subdirectory
	// per year.
	DataDir string `yaml:"data_dir"`
	// IndexDir holds the lexical index, vector index, and citation index.
	IndexDir string `yaml:"index_dir"`
	// EvalDataset is the relevance-judgment file used by `eval`.
	EvalDataset string `yaml:"eval_dataset"`
}

// SearchConfig holds the fusion tuning constants. Weights within a
// strategy must sum to 1.0.
type SearchConfig struct {
	// PoolSize bounds each retrieval arm's candidate pool.
	PoolSize int `yaml:"pool_size"`

	// CiteBoostWeight and TopicBoostWeight scale the citation-boost
	// strategy's additive boosts relative to the max lexical score.
	CiteBoostWeight  float64 `yaml:"cite_boost_weight"`
	TopicBoostWeight float64 `yaml:"topic_boost_weight"`

	// RRFConstant is the smoothing parameter k in weight/(k+rank).
	// Default 60, the industry standard.
	RRFConstant       float64 `yaml:"rrf_constant"`
	RRFLexicalWeight  float64 `yaml:"rrf_lexical_weight"`
	RRFSemanticWeight float64 `yaml:"rrf_semantic_weight"`

	// BreakerThreshold is the top1/top2 lexical ratio at which the
	// circuit-broken strategies skip the semantic arm.
	BreakerThreshold float64 `yaml:"breaker_threshold"`

	FusionLexicalWeight  float64 `yaml:"fusion_lexical_weight"`
	FusionSemanticWeight float64 `yaml:"fusion_semantic_weight"`

	PooledLexicalWeight  float64 `yaml:"pooled_lexical_weight"`
	PooledSemanticWeight float64 `yaml:"pooled_semantic_weight"`

	// MaxResults is the default ranked-list size.
	MaxResults int `yaml:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "openai" or "static".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// FilePath is the rotating log file; empty logs to stderr only.
	FilePath string `yaml:"file_path"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:     "data/extracted",
			IndexDir:    defaultIndexDir(),
			EvalDataset: "eval/dataset.json",
		},
		Search: SearchConfig{
			PoolSize:             100,
			CiteBoostWeight:      0.30,
			TopicBoostWeight:     0.03,
			RRFConstant:          60,
			RRFLexicalWeight:     0.7,
			RRFSemanticWeight:    0.3,
			BreakerThreshold:     1.3,
			FusionLexicalWeight:  0.5,
			FusionSemanticWeight: 0.5,
			PooledLexicalWeight:  0.4,
			PooledSemanticWeight: 0.6,
			MaxResults:           20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			BaseURL:    "https://api.openai.com/v1",
			Dimensions: 1536,
			BatchSize:  64,
			CacheSize:  2048,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".opinionsearch", "indexes")
	}
	return filepath.Join(home, ".opinionsearch", "indexes")
}

// Load builds the effective configuration for a working directory,
// applying layers in order of increasing precedence: defaults, the
// project opinionsearch.yaml (if present), then environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML merges non-zero values from a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oserrors.New(oserrors.ErrCodeConfigNotFound,
			"cannot read config file: "+path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return oserrors.New(oserrors.ErrCodeConfigInvalid,
			"cannot parse config file: "+path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.IndexDir != "" {
		c.Paths.IndexDir = other.Paths.IndexDir
	}
	if other.Paths.EvalDataset != "" {
		c.Paths.EvalDataset = other.Paths.EvalDataset
	}

	if other.Search.PoolSize != 0 {
		c.Search.PoolSize = other.Search.PoolSize
	}
	if other.Search.CiteBoostWeight != 0 {
		c.Search.CiteBoostWeight = other.Search.CiteBoostWeight
	}
	if other.Search.TopicBoostWeight != 0 {
		c.Search.TopicBoostWeight = other.Search.TopicBoostWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.RRFLexicalWeight != 0 {
		c.Search.RRFLexicalWeight = other.Search.RRFLexicalWeight
	}
	if other.Search.RRFSemanticWeight != 0 {
		c.Search.RRFSemanticWeight = other.Search.RRFSemanticWeight
	}
	if other.Search.BreakerThreshold != 0 {
		c.Search.BreakerThreshold = other.Search.BreakerThreshold
	}
	if other.Search.FusionLexicalWeight != 0 {
		c.Search.FusionLexicalWeight = other.Search.FusionLexicalWeight
	}
	if other.Search.FusionSemanticWeight != 0 {
		c.Search.FusionSemanticWeight = other.Search.FusionSemanticWeight
	}
	if other.Search.PooledLexicalWeight != 0 {
		c.Search.PooledLexicalWeight = other.Search.PooledLexicalWeight
	}
	if other.Search.PooledSemanticWeight != 0 {
		c.Search.PooledSemanticWeight = other.Search.PooledSemanticWeight
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies OPINIONSEARCH_* environment overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPINIONSEARCH_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("OPINIONSEARCH_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("OPINIONSEARCH_EVAL_DATASET"); v != "" {
		c.Paths.EvalDataset = v
	}

	if v := os.Getenv("OPINIONSEARCH_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.PoolSize = n
		}
	}
	if v := os.Getenv("OPINIONSEARCH_BREAKER_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 1 {
			c.Search.BreakerThreshold = f
		}
	}
	if v := os.Getenv("OPINIONSEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}

	if v := os.Getenv("OPINIONSEARCH_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("OPINIONSEARCH_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("OPINIONSEARCH_EMBED_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}

	if v := os.Getenv("OPINIONSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OPINIONSEARCH_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Search.PoolSize <= 0 {
		return configInvalid(fmt.Sprintf("pool_size must be positive, got %d", c.Search.PoolSize))
	}
	if c.Search.BreakerThreshold < 1 {
		return configInvalid(fmt.Sprintf("breaker_threshold must be >= 1, got %g", c.Search.BreakerThreshold))
	}

	pairs := []struct {
		name string
		a, b float64
	}{
		{"rrf_lexical_weight + rrf_semantic_weight", c.Search.RRFLexicalWeight, c.Search.RRFSemanticWeight},
		{"fusion_lexical_weight + fusion_semantic_weight", c.Search.FusionLexicalWeight, c.Search.FusionSemanticWeight},
		{"pooled_lexical_weight + pooled_semantic_weight", c.Search.PooledLexicalWeight, c.Search.PooledSemanticWeight},
	}
	for _, p := range pairs {
		if p.a < 0 || p.a > 1 || p.b < 0 || p.b > 1 {
			return configInvalid(p.name + ": weights must be between 0 and 1")
		}
		if math.Abs(p.a+p.b-1.0) > 0.01 {
			return configInvalid(fmt.Sprintf("%s must equal 1.0, got %.2f", p.name, p.a+p.b))
		}
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "openai", "static":
	default:
		return configInvalid("embeddings.provider must be 'openai' or 'static', got " + c.Embeddings.Provider)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return configInvalid("logging.level must be 'debug', 'info', 'warn', or 'error', got " + c.Logging.Level)
	}

	return nil
}

func configInvalid(msg string) error {
	return oserrors.New(oserrors.ErrCodeConfigInvalid, msg, nil)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return oserrors.InternalError("marshaling config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}
	return nil
}
