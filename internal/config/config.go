/*
Package config loads the runtime configuration for all three services.
Values come from the process environment, optionally seeded from a .env file.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
)

// Service names accepted by SERVICES.
const (
	ServiceAnalyzer  = "analyzer"
	ServiceAnimals   = "animals"
	ServiceNutrition = "nutrition"
)

// Config is the root configuration. Nested structs are read with their field
// name as prefix, e.g. ANALYZER_PORT or SERVER_WRITE_TIMEOUT. Nested fields
// use split_words, so their keys always carry the prefix.
type Config struct {
	// Env selects log formatting: "local" gives a console writer, anything else JSON.
	Env      string `envconfig:"APP_ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Services lists which HTTP services the binary starts.
	Services []string `envconfig:"SERVICES" default:"analyzer,animals,nutrition"`

	Server    ServerConfig
	Analyzer  AnalyzerConfig
	Animals   AnimalsConfig
	Nutrition NutritionConfig
}

// ServerConfig holds the network timeouts shared by every http.Server.
type ServerConfig struct {
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"120s"`
	IdleTimeout     time.Duration `split_words:"true" default:"1m"`
	ShutdownTimeout time.Duration `split_words:"true" default:"5s"`
}

// AnalyzerConfig configures the Gemini ethanol analyzer.
type AnalyzerConfig struct {
	Port      int    `split_words:"true" default:"8001"`
	StaticDir string `split_words:"true" default:"."`

	// IndexPaths are searched in order when serving the frontend at "/".
	IndexPaths []string `split_words:"true" default:"index.html,/opt/ethanol_analyzer/index.html,../index.html"`

	// ModelCandidates overrides the built-in ordered model list when set.
	ModelCandidates []string `split_words:"true"`
}

// AnimalsConfig configures the animal selection and file upload service.
type AnimalsConfig struct {
	Port        int    `split_words:"true" default:"8000"`
	DataFile    string `split_words:"true" default:"data.json"`
	UploadsDir  string `split_words:"true" default:"uploads"`
	IndexFile   string `split_words:"true" default:"index.html"`
	UploadLimit string `split_words:"true" default:"32M"`
}

// NutritionConfig configures the Open Food Facts proxy.
type NutritionConfig struct {
	Port       int           `split_words:"true" default:"5000"`
	BaseURL    string        `split_words:"true" default:"https://world.openfoodfacts.org"`
	PageSize   int           `split_words:"true" default:"5"`
	CacheSize  int           `split_words:"true" default:"256"`
	Timeout    time.Duration `split_words:"true" default:"30s"`
	MaxRetries int           `split_words:"true" default:"3"`
	UserAgent  string        `split_words:"true" default:"FuelLab-NutritionCheck/2.0"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown service names and nonsensical values.
func (c *Config) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("SERVICES must name at least one service")
	}
	for _, s := range c.Services {
		switch strings.TrimSpace(s) {
		case ServiceAnalyzer, ServiceAnimals, ServiceNutrition:
		default:
			return fmt.Errorf("unknown service %q in SERVICES", s)
		}
	}
	if c.Nutrition.PageSize <= 0 {
		return fmt.Errorf("NUTRITION_PAGE_SIZE must be positive, got %d", c.Nutrition.PageSize)
	}
	if c.Nutrition.CacheSize <= 0 {
		return fmt.Errorf("NUTRITION_CACHE_SIZE must be positive, got %d", c.Nutrition.CacheSize)
	}
	if c.Nutrition.MaxRetries <= 0 {
		c.Nutrition.MaxRetries = 1
	}
	return nil
}

// Enabled reports whether the named service should be started.
func (c *Config) Enabled(service string) bool {
	for _, s := range c.Services {
		if strings.TrimSpace(s) == service {
			return true
		}
	}
	return false
}
