// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
)

// Provider names accepted by model.provider and model.fallback_provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Model        ModelConfig        `mapstructure:"model"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	OpenAI       OpenAIConfig       `mapstructure:"openai"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Search       SearchConfig       `mapstructure:"search"`
	Backend      BackendConfig      `mapstructure:"backend"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Interactions InteractionsConfig `mapstructure:"interactions"`
}

// ServerConfig contains the inbound HTTP settings
type ServerConfig struct {
	Host                string   `mapstructure:"host"`
	Port                int      `mapstructure:"port"`
	AllowedOrigins      []string `mapstructure:"allowed_origins"`
	StrictProviderCheck bool     `mapstructure:"strict_provider_check"`
}

// Address returns the host:port the server listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig selects the model providers and sampling bounds
type ModelConfig struct {
	Provider         string        `mapstructure:"provider"`
	FallbackProvider string        `mapstructure:"fallback_provider"`
	Temperature      float64       `mapstructure:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseChars int           `mapstructure:"max_response_chars"`
}

// OllamaConfig contains the local inference endpoint configuration
type OllamaConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// OpenAIConfig contains OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey   string `mapstructure:"apikey"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"apikey"`
	Model  string `mapstructure:"model"`
}

// SearchConfig contains web search configuration
type SearchConfig struct {
	APIKey        string        `mapstructure:"apikey"`
	BaseURL       string        `mapstructure:"base_url"`
	MaxResults    int           `mapstructure:"max_results"`
	SnippetChars  int           `mapstructure:"snippet_chars"`
	ItemsPerTopic int           `mapstructure:"items_per_topic"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// BackendConfig contains the booking backend configuration
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BookingsPath   string        `mapstructure:"bookings_path"`
	InternalAPIKey string        `mapstructure:"internal_api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// InteractionsConfig contains interaction log storage configuration
type InteractionsConfig struct {
	StorageType string `mapstructure:"storage_type"`
	FilePath    string `mapstructure:"file_path"`
	DBPath      string `mapstructure:"db_path"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables
// Environment variables take precedence over config file values
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	hasFile, err := setConfigFile(v, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TRAVEL_ASSISTANT")

	if hasFile {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&config)

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.strict_provider_check", false)

	// Model defaults
	v.SetDefault("model.provider", ProviderOllama)
	v.SetDefault("model.fallback_provider", "")
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("model.timeout", 60*time.Second)
	v.SetDefault("model.max_response_chars", 4000)

	// Provider defaults
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama2")
	v.SetDefault("ollama.ping_timeout", 2*time.Second)
	v.SetDefault("openai.apikey", "")
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("gemini.apikey", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	// Web search defaults
	v.SetDefault("search.apikey", "")
	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.max_results", 3)
	v.SetDefault("search.snippet_chars", 200)
	v.SetDefault("search.items_per_topic", 2)
	v.SetDefault("search.timeout", 8*time.Second)

	// Booking backend defaults
	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.bookings_path", "/bookings")
	v.SetDefault("backend.internal_api_key", "")
	v.SetDefault("backend.timeout", 3*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Interaction log defaults
	v.SetDefault("interactions.storage_type", "none")
	v.SetDefault("interactions.file_path", "./interactions.log")
	v.SetDefault("interactions.db_path", "./interactions.db")
}

// setConfigFile sets the configuration file path with fallback logic.
// A missing file in the default locations is not an error; the
// environment alone is a complete configuration source.
func setConfigFile(v *viper.Viper, configPath string) (bool, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return false, fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return true, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return false, fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return true, nil
	}

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			return true, nil
		}
	}

	return false, nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"MODEL_PROVIDER":          "model.provider",
		"FALLBACK_MODEL_PROVIDER": "model.fallback_provider",
		"OLLAMA_BASE_URL":         "ollama.base_url",
		"OLLAMA_MODEL":            "ollama.model",
		"OPENAI_API_KEY":          "openai.apikey",
		"OPENAI_ENDPOINT":         "openai.endpoint",
		"OPENAI_MODEL":            "openai.model",
		"GEMINI_API_KEY":          "gemini.apikey",
		"GEMINI_MODEL":            "gemini.model",
		"TAVILY_API_KEY":          "search.apikey",
		"TAVILY_BASE_URL":         "search.base_url",
		"BACKEND_URL":             "backend.base_url",
		"INTERNAL_API_KEY":        "backend.internal_api_key",
		"API_HOST":                "server.host",
		"API_PORT":                "server.port",
		"LOG_LEVEL":               "logging.level",
		"LOG_FORMAT":              "logging.format",
		"LOG_OUTPUT":              "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}

	// FRONTEND_URL adds to the CORS allow-list rather than replacing it.
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		origins := v.GetStringSlice("server.allowed_origins")
		if !contains(origins, frontend) {
			origins = append(origins, frontend)
		}
		v.Set("server.allowed_origins", origins)
	}
}

// normalize lowercases enum-like values and clears placeholder credentials
func normalize(config *Config) {
	config.Model.Provider = strings.ToLower(strings.TrimSpace(config.Model.Provider))
	config.Model.FallbackProvider = strings.ToLower(strings.TrimSpace(config.Model.FallbackProvider))
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
	config.Interactions.StorageType = strings.ToLower(config.Interactions.StorageType)

	config.OpenAI.APIKey = stripPlaceholder(config.OpenAI.APIKey)
	config.Gemini.APIKey = stripPlaceholder(config.Gemini.APIKey)
	config.Search.APIKey = stripPlaceholder(config.Search.APIKey)
	config.Backend.InternalAPIKey = stripPlaceholder(config.Backend.InternalAPIKey)
}

// IsPlaceholder reports whether a credential is a template value such as
// "your_tavily_api_key_here" copied from an example env file.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return strings.HasPrefix(v, "your_") && strings.HasSuffix(v, "_here")
}

func stripPlaceholder(value string) string {
	value = strings.TrimSpace(value)
	if IsPlaceholder(value) {
		return ""
	}
	return value
}

// validateConfig validates the configuration for valid values.
// Missing credentials are not errors: the affected provider is simply unavailable.
func validateConfig(config *Config) error {
	var errors []ValidationError

	validProviders := []string{ProviderOllama, ProviderOpenAI, ProviderGemini, ProviderNone}
	if !contains(validProviders, config.Model.Provider) {
		errors = append(errors, ValidationError{
			Field:   "model.provider",
			Message: fmt.Sprintf("provider must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if config.Model.FallbackProvider != "" && !contains(validProviders, config.Model.FallbackProvider) {
		errors = append(errors, ValidationError{
			Field:   "model.fallback_provider",
			Message: fmt.Sprintf("fallback provider must be empty or one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if config.Model.Temperature < 0 || config.Model.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "model.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.Model.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.Model.MaxResponseChars <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.max_response_chars",
			Message: "max_response_chars must be greater than 0",
		})
	}

	if config.Model.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "model.timeout",
			Message: "timeout must be greater than 0",
		})
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if config.Search.MaxResults <= 0 {
		errors = append(errors, ValidationError{
			Field:   "search.max_results",
			Message: "max_results must be greater than 0",
		})
	}

	if config.Search.SnippetChars <= 0 {
		errors = append(errors, ValidationError{
			Field:   "search.snippet_chars",
			Message: "snippet_chars must be greater than 0",
		})
	}

	if config.Search.ItemsPerTopic <= 0 {
		errors = append(errors, ValidationError{
			Field:   "search.items_per_topic",
			Message: "items_per_topic must be greater than 0",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	validStorageTypes := []string{"none", "file", "sqlite"}
	if !contains(validStorageTypes, config.Interactions.StorageType) {
		errors = append(errors, ValidationError{
			Field:   "interactions.storage_type",
			Message: fmt.Sprintf("storage type must be one of: %s", strings.Join(validStorageTypes, ", ")),
		})
	}

	if config.Interactions.StorageType == "sqlite" && config.Interactions.DBPath != "" {
		if err := validateDirectoryExists(filepath.Dir(config.Interactions.DBPath)); err != nil {
			errors = append(errors, ValidationError{
				Field:   "interactions.db_path",
				Message: fmt.Sprintf("interaction database directory does not exist: %s", filepath.Dir(config.Interactions.DBPath)),
			})
		}
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(errorMessages, "\n"))
	}

	return nil
}

// ProviderConfigured reports whether the named model provider has the
// settings it needs to be constructed.
func (c *Config) ProviderConfigured(name string) bool {
	switch name {
	case ProviderOllama:
		return c.Ollama.BaseURL != ""
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	default:
		return false
	}
}

// SearchConfigured reports whether web search has credentials
func (c *Config) SearchConfigured() bool {
	return c.Search.APIKey != "" && c.Search.BaseURL != ""
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c
	masked.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}
	if masked.Gemini.APIKey != "" {
		masked.Gemini.APIKey = maskValue(masked.Gemini.APIKey)
	}
	if masked.Search.APIKey != "" {
		masked.Search.APIKey = maskValue(masked.Search.APIKey)
	}
	if masked.Backend.InternalAPIKey != "" {
		masked.Backend.InternalAPIKey = maskValue(masked.Backend.InternalAPIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateDirectoryExists checks if a directory exists
func validateDirectoryExists(path string) error {
	if path == "" || path == "." {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}
