// Package config loads application configuration from a YAML file,
// environment variables and a local .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Quality  Quality  `mapstructure:"quality"`
	Links    Links    `mapstructure:"links"`
	Output   Output   `mapstructure:"output"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds LLM provider configuration.
type AI struct {
	DefaultProvider string       `mapstructure:"default_provider"`
	Gemini          GeminiConfig `mapstructure:"gemini"`
	OpenAI          OpenAIConfig `mapstructure:"openai"`
	Retry           RetryConfig  `mapstructure:"retry"`
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	Model          string   `mapstructure:"model"`
	Models         []string `mapstructure:"models"`
	EmbeddingModel string   `mapstructure:"embedding_model"`
}

// OpenAIConfig holds OpenAI configuration.
type OpenAIConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	Model   string   `mapstructure:"model"`
	Models  []string `mapstructure:"models"`
	BaseURL string   `mapstructure:"base_url"`
}

// RetryConfig bounds the gateway backoff loop.
type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMS int     `mapstructure:"base_delay_ms"`
	Factor      float64 `mapstructure:"factor"`
}

// Pipeline holds draft generation settings.
type Pipeline struct {
	Temperature           float64 `mapstructure:"temperature"`
	MaxTokens             int     `mapstructure:"max_tokens"`
	WordsPerHeading       int     `mapstructure:"words_per_heading"`
	MinHeadings           int     `mapstructure:"min_headings"`
	MaxHeadings           int     `mapstructure:"max_headings"`
	MaxConcurrentSections int     `mapstructure:"max_concurrent_sections"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	RewriteEnabled        bool    `mapstructure:"rewrite_enabled"`
	RewriteWorkers        int     `mapstructure:"rewrite_workers"`
}

// Quality holds quality engine settings.
type Quality struct {
	Rubric           string   `mapstructure:"rubric"`
	ProximityWindow  int      `mapstructure:"proximity_window"`
	ShingleSize      int      `mapstructure:"shingle_size"`
	MaxSentenceLen   int      `mapstructure:"max_sentence_length"`
	ExcessivePhrases []string `mapstructure:"excessive_phrases"`
	AbstractPhrases  []string `mapstructure:"abstract_phrases"`
	YMYLMarkers      []string `mapstructure:"ymyl_markers"`
}

// Links holds internal link resolver settings.
type Links struct {
	TopK int `mapstructure:"top_k"`
}

// Output holds artifact output configuration.
type Output struct {
	Directory string `mapstructure:"directory"`
}

var globalConfig *Config

// Load loads the configuration from file, environment and defaults.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seo-drafter")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.App.DataDir = expandPath(config.App.DataDir)
	config.Output.Directory = expandPath(config.Output.Directory)

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".seo-drafter")

	viper.SetDefault("ai.default_provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("ai.gemini.models", []string{"gemini-2.0-flash", "gemini-2.5-pro"})
	viper.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.openai.model", "gpt-4o-mini")
	viper.SetDefault("ai.openai.models", []string{"gpt-4o-mini", "gpt-4o"})
	viper.SetDefault("ai.retry.max_attempts", 3)
	viper.SetDefault("ai.retry.base_delay_ms", 1000)
	viper.SetDefault("ai.retry.factor", 2.0)

	viper.SetDefault("pipeline.temperature", 0.7)
	viper.SetDefault("pipeline.max_tokens", 2048)
	viper.SetDefault("pipeline.words_per_heading", 225)
	viper.SetDefault("pipeline.min_headings", 3)
	viper.SetDefault("pipeline.max_headings", 8)
	viper.SetDefault("pipeline.max_concurrent_sections", 5)
	viper.SetDefault("pipeline.timeout_seconds", 0)
	viper.SetDefault("pipeline.rewrite_enabled", false)
	viper.SetDefault("pipeline.rewrite_workers", 3)

	viper.SetDefault("quality.rubric", "standard")
	viper.SetDefault("quality.proximity_window", 1)
	viper.SetDefault("quality.shingle_size", 5)
	viper.SetDefault("quality.max_sentence_length", 80)

	viper.SetDefault("links.top_k", 5)

	viper.SetDefault("output.directory", "drafts")
}

func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("ai.openai.api_key", []string{
		"OPENAI_API_KEY",
	})
	bindEnvKeys("ai.default_provider", []string{
		"AI_PROVIDER",
	})
	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"SEO_DRAFTER_DEBUG",
	})
	bindEnvKeys("app.data_dir", []string{
		"SEO_DRAFTER_DATA_DIR",
	})
	bindEnvKeys("output.directory", []string{
		"SEO_DRAFTER_OUTPUT_DIR",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key.
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Convenience accessors.
func GetGeminiAPIKey() string    { return Get().AI.Gemini.APIKey }
func GetOpenAIAPIKey() string    { return Get().AI.OpenAI.APIKey }
func GetDefaultProvider() string { return Get().AI.DefaultProvider }
func GetDataDir() string         { return Get().App.DataDir }
func GetOutputDirectory() string { return Get().Output.Directory }
func IsDebugMode() bool          { return Get().App.Debug }
