package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the answer service.
type Config struct {
	Corpus    CorpusConfig     `yaml:"corpus"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Retrieve  RetrieveConfig   `yaml:"retrieve"`
	Prompt    PromptConfig     `yaml:"prompt"`
	Providers []ProviderConfig `yaml:"providers"`
	Router    RouterConfig     `yaml:"router"`
	Arbiter   ArbiterConfig    `yaml:"arbiter"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// CorpusConfig locates the corpus JSON files and the backing store directory.
type CorpusConfig struct {
	// Dir is the directory scanned for corpus JSON documents during ingest.
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	// StorePath is the bbolt database holding records and vectors.
	StorePath string `yaml:"store_path"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
	// MaxChars caps embedded text; longer input is truncated from the end.
	MaxChars int `yaml:"max_chars"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
	// LexicalBonus is the weight of the keyword-overlap score bonus.
	LexicalBonus float64 `yaml:"lexical_bonus"`
	// MinQuestionTokens drops records with trivially short questions.
	MinQuestionTokens int `yaml:"min_question_tokens"`
}

// PromptConfig caps the assembled RAG context.
type PromptConfig struct {
	PerHitChars int `yaml:"per_hit_chars"`
	TotalChars  int `yaml:"total_chars"`
}

// ProviderConfig describes one LLM provider, in priority order.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"` // "openai", "groq", "gemini"
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// RouterConfig tunes provider health tracking and fallback.
type RouterConfig struct {
	// WindowSize is the number of recent calls tracked per provider.
	WindowSize int `yaml:"window_size"`
	// FailureThreshold marks a provider unhealthy at this many failures
	// within the window.
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs"`
	// TotalBudgetSecs caps the wall clock for one routed request across all
	// provider attempts.
	TotalBudgetSecs int `yaml:"total_budget_secs"`
}

// ArbiterConfig holds the confidence thresholds for layer selection.
type ArbiterConfig struct {
	CuratedThreshold   float64 `yaml:"curated_threshold"`
	RetrievalThreshold float64 `yaml:"retrieval_threshold"`
	RetrieveK          int     `yaml:"retrieve_k"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:       "corpus",
			Includes:  []string{"**/*.json"},
			Excludes:  []string{"**/.*/**"},
			StorePath: filepath.Join(".academybot", "corpus.db"),
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
			MaxChars:  8192,
		},
		Retrieve: RetrieveConfig{
			TopK:              3,
			LexicalBonus:      0.05,
			MinQuestionTokens: 4,
		},
		Prompt: PromptConfig{
			PerHitChars: 800,
			TotalChars:  4000,
		},
		Providers: []ProviderConfig{
			{
				Name:        "gemini",
				Kind:        "gemini",
				Model:       "gemini-pro",
				APIKeyEnv:   "GOOGLE_API_KEY",
				TimeoutSecs: 15,
				MaxTokens:   1024,
				Temperature: 0.7,
			},
			{
				Name:        "groq",
				Kind:        "groq",
				Model:       "mixtral-8x7b-32768",
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
				TimeoutSecs: 15,
				MaxTokens:   1024,
				Temperature: 0.7,
			},
		},
		Router: RouterConfig{
			WindowSize:       5,
			FailureThreshold: 3,
			CooldownSecs:     60,
			TotalBudgetSecs:  20,
		},
		Arbiter: ArbiterConfig{
			CuratedThreshold:   0.75,
			RetrievalThreshold: 0.60,
			RetrieveK:          3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Arbiter.RetrieveK <= 0 {
		return fmt.Errorf("arbiter retrieve_k must be positive, got %d", c.Arbiter.RetrieveK)
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("duplicate provider name: %s", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for academybot.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "academybot.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".academybot", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorePath resolves the bbolt database path relative to dir.
func (c *Config) ResolveStorePath(dir string) string {
	if filepath.IsAbs(c.Corpus.StorePath) {
		return c.Corpus.StorePath
	}
	return filepath.Join(dir, c.Corpus.StorePath)
}

// EnsureStoreDir ensures the directory holding the store exists.
func EnsureStoreDir(storePath string) error {
	return os.MkdirAll(filepath.Dir(storePath), 0755)
}
