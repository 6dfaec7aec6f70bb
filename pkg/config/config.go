package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxPageSize is the largest max_results the full-archive search endpoint accepts
const MaxPageSize = 500

// Config holds all configuration options for a harvest run
type Config struct {
	// Search API access
	API APIConfig `yaml:"api" json:"api"`

	// What to search for
	Search SearchConfig `yaml:"search" json:"search"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Pacing between requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Per-request settings
	Request RequestConfig `yaml:"request" json:"request"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds search endpoint configuration
type APIConfig struct {
	BearerToken string `yaml:"bearer_token" json:"-"`
	BaseURL     string `yaml:"base_url" json:"base_url"`
	SearchPath  string `yaml:"search_path" json:"search_path"`
	Fields      string `yaml:"fields" json:"fields"`
	PageSize    int    `yaml:"page_size" json:"page_size"`
	UserAgent   string `yaml:"user_agent" json:"user_agent"`
}

// SearchConfig holds the query and its bounds
type SearchConfig struct {
	Query     string `yaml:"query" json:"query"`
	StartTime string `yaml:"start_time" json:"start_time"`
	EndTime   string `yaml:"end_time" json:"end_time"`
	Results   int    `yaml:"results" json:"results"`
	Pipeline  bool   `yaml:"pipeline" json:"pipeline"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	FileName      string `yaml:"file_name" json:"file_name"`
	WriteManifest bool   `yaml:"write_manifest" json:"write_manifest"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	PageDelay         time.Duration `yaml:"page_delay" json:"page_delay"`
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
}

// RequestConfig holds per-request settings
type RequestConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.twitter.com",
			SearchPath: "/2/tweets/search/all",
			Fields:     "author_id,created_at",
			PageSize:   MaxPageSize,
			UserAgent:  "tweetharvest/1.0",
		},
		Search: SearchConfig{
			StartTime: "2020-03-05T00:00:00Z",
			EndTime:   "2022-03-05T00:00:00Z",
			Results:   4000,
		},
		Output: OutputConfig{
			BaseDirectory: ".",
			FileName:      "twitter_data.jsonl",
			WriteManifest: true,
		},
		RateLimit: RateLimitConfig{
			PageDelay:         500 * time.Millisecond,
			RequestsPerWindow: 300,
			Window:            15 * time.Minute,
		},
		Request: RequestConfig{
			Timeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			Enabled:     false,
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// BEARER_TOKEN is what the search API docs and existing .env files use
	if token := os.Getenv("BEARER_TOKEN"); token != "" {
		c.API.BearerToken = token
	}
	if token := os.Getenv("TWEETHARVEST_BEARER_TOKEN"); token != "" {
		c.API.BearerToken = token
	}
	if baseURL := os.Getenv("TWEETHARVEST_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if fields := os.Getenv("TWEETHARVEST_FIELDS"); fields != "" {
		c.API.Fields = fields
	}
	if query := os.Getenv("TWEETHARVEST_QUERY"); query != "" {
		c.Search.Query = query
	}
	if results := os.Getenv("TWEETHARVEST_RESULTS"); results != "" {
		val, err := strconv.Atoi(results)
		if err != nil {
			return fmt.Errorf("invalid TWEETHARVEST_RESULTS %q: %w", results, err)
		}
		c.Search.Results = val
	}
	if outputDir := os.Getenv("TWEETHARVEST_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if metricsFile := os.Getenv("TWEETHARVEST_METRICS_FILE"); metricsFile != "" {
		c.Metrics.Textfile = metricsFile
	}
	if logLevel := os.Getenv("TWEETHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".tweetharvest.yaml",
		".tweetharvest.yml",
		filepath.Join(home, ".config", "tweetharvest", "config.yaml"),
		filepath.Join(home, ".tweetharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Search.Query) == "" {
		errs = append(errs, errors.New("search query is required"))
	}
	if c.Search.Results <= 0 {
		errs = append(errs, errors.New("target result count must be positive"))
	}

	start, startErr := c.StartTime()
	if startErr != nil {
		errs = append(errs, startErr)
	}
	end, endErr := c.EndTime()
	if endErr != nil {
		errs = append(errs, endErr)
	}
	if startErr == nil && endErr == nil && !start.Before(end) {
		errs = append(errs, errors.New("start time must be before end time"))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.PageSize <= 0 || c.API.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("page size must be between 1 and %d", MaxPageSize))
	}

	if c.Output.FileName == "" {
		errs = append(errs, errors.New("output file name is required"))
	}
	if c.Output.FileName != filepath.Base(c.Output.FileName) {
		errs = append(errs, errors.New("output file name must not contain a directory"))
	}

	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RateLimit.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.RateLimit.RequestsPerWindow < 0 {
		errs = append(errs, errors.New("requests per window cannot be negative"))
	}
	if c.RateLimit.RequestsPerWindow > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.Retry.Enabled && c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true,
		"error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// StartTime parses the configured search start as RFC3339
func (c *Config) StartTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Search.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time %q: %w", c.Search.StartTime, err)
	}
	return t, nil
}

// EndTime parses the configured search end as RFC3339
func (c *Config) EndTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Search.EndTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end time %q: %w", c.Search.EndTime, err)
	}
	return t, nil
}

// FieldList splits the comma-separated field set, dropping blanks
func (c *Config) FieldList() []string {
	var fields []string
	for _, f := range strings.Split(c.API.Fields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// CompletePath is where full records are written
func (c *Config) CompletePath() string {
	return filepath.Join(c.Output.BaseDirectory, "complete", c.Output.FileName)
}

// TextOnlyPath is where the text-only projection is written
func (c *Config) TextOnlyPath() string {
	return filepath.Join(c.Output.BaseDirectory, "text_only", c.Output.FileName)
}

// ManifestPath is where the run manifest is written
func (c *Config) ManifestPath() string {
	name := strings.TrimSuffix(c.Output.FileName, filepath.Ext(c.Output.FileName))
	return filepath.Join(c.Output.BaseDirectory, "manifests", name+".manifest.json")
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied, so callers pass changed flags only.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if query, ok := flags["query"].(string); ok {
		c.Search.Query = query
	}
	if start, ok := flags["start-date"].(string); ok && start != "" {
		c.Search.StartTime = start
	}
	if end, ok := flags["end-date"].(string); ok && end != "" {
		c.Search.EndTime = end
	}
	if results, ok := flags["results"].(int); ok {
		c.Search.Results = results
	}
	if pipeline, ok := flags["pipeline"].(bool); ok {
		c.Search.Pipeline = pipeline
	}
	if fileName, ok := flags["output-file"].(string); ok && fileName != "" {
		c.Output.FileName = fileName
	}
	if outputDir, ok := flags["output-dir"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if fields, ok := flags["fields"].(string); ok && fields != "" {
		c.API.Fields = fields
	}
	if delay, ok := flags["page-delay"].(time.Duration); ok {
		c.RateLimit.PageDelay = delay
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok {
		c.Request.Timeout = timeout
	}
	if metricsFile, ok := flags["metrics-file"].(string); ok {
		c.Metrics.Textfile = metricsFile
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence and validates it
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := Resolve(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Resolve layers every configuration source like Load but skips validation
func Resolve(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tweetharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	return config, nil
}
