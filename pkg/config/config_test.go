package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Search.Query = "(neubau OR hochhaus) lang:de -is:retweet"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Search.Results != 4000 {
		t.Errorf("Expected default results to be 4000, got %d", config.Search.Results)
	}

	if config.API.PageSize != MaxPageSize {
		t.Errorf("Expected default page size to be %d, got %d", MaxPageSize, config.API.PageSize)
	}

	if config.Output.FileName != "twitter_data.jsonl" {
		t.Errorf("Expected default file name to be twitter_data.jsonl, got %s", config.Output.FileName)
	}

	if config.RateLimit.PageDelay != 500*time.Millisecond {
		t.Errorf("Expected default page delay to be 500ms, got %v", config.RateLimit.PageDelay)
	}

	if config.Retry.Enabled {
		t.Error("Expected retry to be disabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BEARER_TOKEN", "env-bearer")
	t.Setenv("TWEETHARVEST_QUERY", "golang")
	t.Setenv("TWEETHARVEST_RESULTS", "1200")
	t.Setenv("TWEETHARVEST_OUTPUT_DIR", "/tmp/harvest")
	t.Setenv("TWEETHARVEST_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.API.BearerToken != "env-bearer" {
		t.Errorf("Expected bearer token to be env-bearer, got %s", config.API.BearerToken)
	}
	if config.Search.Query != "golang" {
		t.Errorf("Expected query to be golang, got %s", config.Search.Query)
	}
	if config.Search.Results != 1200 {
		t.Errorf("Expected results to be 1200, got %d", config.Search.Results)
	}
	if config.Output.BaseDirectory != "/tmp/harvest" {
		t.Errorf("Expected output directory to be /tmp/harvest, got %s", config.Output.BaseDirectory)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvPrefixedTokenWins(t *testing.T) {
	t.Setenv("BEARER_TOKEN", "plain")
	t.Setenv("TWEETHARVEST_BEARER_TOKEN", "prefixed")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}
	if config.API.BearerToken != "prefixed" {
		t.Errorf("Expected prefixed token to take precedence, got %s", config.API.BearerToken)
	}
}

func TestLoadFromEnvInvalidResults(t *testing.T) {
	t.Setenv("TWEETHARVEST_RESULTS", "lots")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected error for non-numeric TWEETHARVEST_RESULTS")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "missing query",
			mutate:    func(c *Config) { c.Search.Query = "  " },
			wantError: true,
		},
		{
			name:      "zero results",
			mutate:    func(c *Config) { c.Search.Results = 0 },
			wantError: true,
		},
		{
			name:      "malformed start time",
			mutate:    func(c *Config) { c.Search.StartTime = "2020-03-05" },
			wantError: true,
		},
		{
			name: "start after end",
			mutate: func(c *Config) {
				c.Search.StartTime = "2022-03-05T00:00:00Z"
				c.Search.EndTime = "2020-03-05T00:00:00Z"
			},
			wantError: true,
		},
		{
			name:      "page size above API maximum",
			mutate:    func(c *Config) { c.API.PageSize = 501 },
			wantError: true,
		},
		{
			name:      "file name with directory",
			mutate:    func(c *Config) { c.Output.FileName = "../escape.jsonl" },
			wantError: true,
		},
		{
			name:      "zero timeout",
			mutate:    func(c *Config) { c.Request.Timeout = 0 },
			wantError: true,
		},
		{
			name: "retry enabled without attempts",
			mutate: func(c *Config) {
				c.Retry.Enabled = true
				c.Retry.MaxAttempts = 0
			},
			wantError: true,
		},
		{
			name:      "disabled log level",
			mutate:    func(c *Config) { c.Logging.Level = "disabled" },
			wantError: false,
		},
		{
			name:      "warning log level alias",
			mutate:    func(c *Config) { c.Logging.Level = "WARNING" },
			wantError: false,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	config := DefaultConfig()
	config.Search.Results = -1
	config.Logging.Level = "loud"

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"query is required", "must be positive", "invalid log level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"query":       "from:golang",
		"output-file": "golang.jsonl",
		"start-date":  "2021-01-01T00:00:00Z",
		"results":     300,
		"pipeline":    true,
		"page-delay":  250 * time.Millisecond,
		"log-level":   "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Search.Query != "from:golang" {
		t.Errorf("Expected query to be from:golang, got %s", config.Search.Query)
	}
	if config.Output.FileName != "golang.jsonl" {
		t.Errorf("Expected file name to be golang.jsonl, got %s", config.Output.FileName)
	}
	if config.Search.StartTime != "2021-01-01T00:00:00Z" {
		t.Errorf("Expected start time override, got %s", config.Search.StartTime)
	}
	if config.Search.Results != 300 {
		t.Errorf("Expected results to be 300, got %d", config.Search.Results)
	}
	if !config.Search.Pipeline {
		t.Error("Expected pipeline to be enabled")
	}
	if config.RateLimit.PageDelay != 250*time.Millisecond {
		t.Errorf("Expected page delay to be 250ms, got %v", config.RateLimit.PageDelay)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
	// Untouched keys keep their defaults
	if config.Search.EndTime != "2022-03-05T00:00:00Z" {
		t.Errorf("Expected default end time, got %s", config.Search.EndTime)
	}
}

func TestOutputPaths(t *testing.T) {
	config := DefaultConfig()
	config.Output.BaseDirectory = "/data"
	config.Output.FileName = "bau.jsonl"

	if got := config.CompletePath(); got != filepath.Join("/data", "complete", "bau.jsonl") {
		t.Errorf("Unexpected complete path %s", got)
	}
	if got := config.TextOnlyPath(); got != filepath.Join("/data", "text_only", "bau.jsonl") {
		t.Errorf("Unexpected text-only path %s", got)
	}
	if got := config.ManifestPath(); got != filepath.Join("/data", "manifests", "bau.manifest.json") {
		t.Errorf("Unexpected manifest path %s", got)
	}
}

func TestFieldList(t *testing.T) {
	config := DefaultConfig()
	config.API.Fields = "author_id, created_at,,lang "

	fields := config.FieldList()
	want := []string{"author_id", "created_at", "lang"}
	if len(fields) != len(want) {
		t.Fatalf("Expected %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, fields)
		}
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	config := validConfig()
	config.Search.Results = 4300
	config.RateLimit.PageDelay = time.Second

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected config file mode 0600, got %v", info.Mode().Perm())
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Search.Query != config.Search.Query {
		t.Errorf("Expected loaded query %q, got %q", config.Search.Query, loadedConfig.Search.Query)
	}
	if loadedConfig.Search.Results != 4300 {
		t.Errorf("Expected loaded results to be 4300, got %d", loadedConfig.Search.Results)
	}
	if loadedConfig.RateLimit.PageDelay != time.Second {
		t.Errorf("Expected loaded page delay to be 1s, got %v", loadedConfig.RateLimit.PageDelay)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "search:\n  query: from-file\n  results: 100\noutput:\n  file_name: file.jsonl\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("TWEETHARVEST_RESULTS", "200")

	config, err := Load(configPath, map[string]interface{}{"output-file": "flag.jsonl"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Search.Query != "from-file" {
		t.Errorf("Expected query from file, got %s", config.Search.Query)
	}
	if config.Search.Results != 200 {
		t.Errorf("Expected environment to override file, got %d", config.Search.Results)
	}
	if config.Output.FileName != "flag.jsonl" {
		t.Errorf("Expected flag to override file, got %s", config.Output.FileName)
	}
}
