package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/uavlog-analyst/internal/extractors"
	"github.com/miradorstack/uavlog-analyst/internal/repo"
	"github.com/miradorstack/uavlog-analyst/internal/utils"
)

// EnvPrefix prefixes every environment override, e.g. UAVLOG_LLM_API_KEY.
const EnvPrefix = "UAVLOG"

// Config captures the settings required to boot the analyst service.
type Config struct {
	Server       ServerConfig          `yaml:"server"`
	LLM          LLMConfig             `yaml:"llm"`
	Embeddings   EmbeddingsConfig      `yaml:"embeddings"`
	Logging      LoggingConfig         `yaml:"logging"`
	Intents      IntentsConfig         `yaml:"intents"`
	Detector     extractors.Thresholds `yaml:"detector"`
	Cache        CacheConfig           `yaml:"cache"`
	Conversation ConversationConfig    `yaml:"conversation"`
	Relevance    RelevanceConfig       `yaml:"relevance"`
}

// ServerConfig controls the HTTP, gRPC and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address" split_words:"true"`
	HTTPAddress     string        `yaml:"httpAddress" split_words:"true"`
	MetricsAddress  string        `yaml:"metricsAddress" split_words:"true"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" split_words:"true"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" split_words:"true"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" split_words:"true"`
}

// ClientConfig holds the resilience settings shared by outbound clients.
type ClientConfig struct {
	Timeout           time.Duration `yaml:"timeout" split_words:"true"`
	MaxRetries        int           `yaml:"maxRetries" split_words:"true"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" split_words:"true"`
	Burst             int           `yaml:"burst" split_words:"true"`
	BreakerFailures   uint32        `yaml:"breakerFailures" split_words:"true"`
	BreakerCooldown   time.Duration `yaml:"breakerCooldown" split_words:"true"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL      string `yaml:"baseURL" split_words:"true"`
	APIKey       string `yaml:"apiKey" split_words:"true"`
	Model        string `yaml:"model" split_words:"true"`
	ClientConfig `yaml:",inline"`
}

// EmbeddingsConfig configures the embedding and rerank endpoint.
type EmbeddingsConfig struct {
	BaseURL      string `yaml:"baseURL" split_words:"true"`
	APIKey       string `yaml:"apiKey" split_words:"true"`
	EmbedModel   string `yaml:"embedModel" split_words:"true"`
	RerankModel  string `yaml:"rerankModel" split_words:"true"`
	BatchSize    int    `yaml:"batchSize" split_words:"true"`
	ClientConfig `yaml:",inline"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// IntentsConfig points at an optional YAML file of routing patterns.
type IntentsConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig controls the shared tier of the embedding cache. When enabled
// without an address the tier is an in-process store of MemoryEntries keys.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout" split_words:"true"`
	ReadTimeout   time.Duration `yaml:"readTimeout" split_words:"true"`
	WriteTimeout  time.Duration `yaml:"writeTimeout" split_words:"true"`
	MaxRetries    int           `yaml:"maxRetries" split_words:"true"`
	TLS           bool          `yaml:"tls"`
	EmbeddingTTL  time.Duration `yaml:"embeddingTTL" split_words:"true"`
	MemoryEntries int           `yaml:"memoryEntries" split_words:"true"`
}

// ConversationConfig bounds per-session chat history.
type ConversationConfig struct {
	MaxTurns        int           `yaml:"maxTurns" split_words:"true"`
	TTL             time.Duration `yaml:"ttl"`
	MaxSessions     int           `yaml:"maxSessions" split_words:"true"`
	JanitorInterval time.Duration `yaml:"janitorInterval" split_words:"true"`
}

// RelevanceConfig tunes field ranking and the local embedding cache.
type RelevanceConfig struct {
	Threshold float64       `yaml:"threshold"`
	CacheSize int           `yaml:"cacheSize" split_words:"true"`
	CacheTTL  time.Duration `yaml:"cacheTTL" split_words:"true"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	return &cfg, nil
}

func defaultConfig() Config {
	client := ClientConfig{
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		Burst:           1,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			HTTPAddress:     ":8000",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    32 << 20,
		},
		LLM: LLMConfig{
			BaseURL:      repo.DefaultLLMBaseURL,
			Model:        repo.DefaultLLMModel,
			ClientConfig: client,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:      repo.DefaultCohereBaseURL,
			EmbedModel:   repo.DefaultEmbedModel,
			RerankModel:  repo.DefaultRerankModel,
			BatchSize:    96,
			ClientConfig: client,
		},
		Logging:  LoggingConfig{Level: "info", JSON: false},
		Intents:  IntentsConfig{Path: "configs/intents/default.yaml"},
		Detector: extractors.DefaultThresholds(),
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			EmbeddingTTL:  time.Hour,
			MemoryEntries: 4096,
		},
		Conversation: ConversationConfig{
			MaxTurns:        15,
			TTL:             30 * time.Minute,
			MaxSessions:     1024,
			JanitorInterval: time.Minute,
		},
		Relevance: RelevanceConfig{
			Threshold: 0.25,
			CacheSize: 512,
			CacheTTL:  time.Hour,
		},
	}
}

// applyEnvOverrides layers the provider-conventional variables first, then
// the prefixed ones, so UAVLOG_* always wins.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GROQ_API_BASE"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("GROQ_DEFAULT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("COHERE_API_KEY"); v != "" {
		cfg.Embeddings.APIKey = v
	}

	sections := []struct {
		name   string
		target any
	}{
		{"SERVER", &cfg.Server},
		{"LLM", &cfg.LLM},
		{"EMBEDDINGS", &cfg.Embeddings},
		{"LOG", &cfg.Logging},
		{"INTENTS", &cfg.Intents},
		{"DETECTOR", &cfg.Detector},
		{"CACHE", &cfg.Cache},
		{"CONVERSATION", &cfg.Conversation},
		{"RELEVANCE", &cfg.Relevance},
	}
	for _, s := range sections {
		if err := envconfig.Process(EnvPrefix+"_"+s.name, s.target); err != nil {
			return err
		}
	}
	if v := os.Getenv(EnvPrefix + "_LOG_FORMAT"); strings.EqualFold(v, "json") {
		cfg.Logging.JSON = true
	}
	return nil
}

// Validate reports missing credentials as utils.ErrNotConfigured and
// malformed values as plain errors.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, utils.NotConfigured("config.Validate", "llm api key missing (GROQ_API_KEY)"))
	}
	if strings.TrimSpace(c.Embeddings.APIKey) == "" {
		errs = append(errs, utils.NotConfigured("config.Validate", "embeddings api key missing (COHERE_API_KEY)"))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" && c.Cache.MemoryEntries <= 0 {
		errs = append(errs, errors.New("cache.memoryEntries must be positive for the in-process tier"))
	}
	if c.Relevance.Threshold < -1 || c.Relevance.Threshold > 1 {
		errs = append(errs, fmt.Errorf("relevance.threshold %.2f outside [-1, 1]", c.Relevance.Threshold))
	}
	return errors.Join(errs...)
}

// Options converts the shared client settings to repo.ClientOptions.
func (c ClientConfig) Options() repo.ClientOptions {
	return repo.ClientOptions{
		Timeout:         c.Timeout,
		MaxRetries:      c.MaxRetries,
		RequestsPerSec:  c.RequestsPerSecond,
		Burst:           c.Burst,
		BreakerFailures: c.BreakerFailures,
		BreakerCooldown: c.BreakerCooldown,
	}
}
