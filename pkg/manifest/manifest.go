// Package manifest writes a JSON report describing a finished harvest run:
// what was asked for, how far pagination got and where the output went.
// The report is informational; runs are never resumed from it.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tweetharvest/pkg/config"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/paginator"
)

const currentVersion = 1

// Manifest is the run report
type Manifest struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`

	Query     string   `json:"query"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Fields    []string `json:"fields"`
	Target    int      `json:"target"`
	PageSize  int      `json:"page_size"`
	Pipeline  bool     `json:"pipeline"`

	FullPages int `json:"full_pages"`
	Remainder int `json:"remainder"`

	State     string `json:"state"`
	Requests  int    `json:"requests"`
	Pages     int    `json:"pages"`
	Records   int    `json:"records"`
	LastToken string `json:"last_token,omitempty"`
	Error     string `json:"error,omitempty"`

	CompletePath string `json:"complete_path"`
	TextOnlyPath string `json:"text_only_path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
}

// New starts a manifest for a run about to begin
func New(cfg *config.Config) *Manifest {
	return &Manifest{
		Version:      currentVersion,
		RunID:        uuid.New().String(),
		Query:        cfg.Search.Query,
		StartTime:    cfg.Search.StartTime,
		EndTime:      cfg.Search.EndTime,
		Fields:       cfg.FieldList(),
		Target:       cfg.Search.Results,
		PageSize:     cfg.API.PageSize,
		Pipeline:     cfg.Search.Pipeline,
		State:        paginator.StateInit.String(),
		CompletePath: cfg.CompletePath(),
		TextOnlyPath: cfg.TextOnlyPath(),
		StartedAt:    time.Now().UTC(),
	}
}

// Finish fills in the outcome. records is the count the sink actually wrote.
func (m *Manifest) Finish(summary paginator.Summary, records int, runErr error) {
	m.FullPages = summary.Plan.FullPages
	m.Remainder = summary.Plan.Remainder
	m.State = summary.FinalState.String()
	m.Requests = summary.Requests
	m.Pages = summary.Pages
	m.Records = records
	m.LastToken = summary.LastToken
	if runErr != nil {
		m.Error = runErr.Error()
	}
	m.FinishedAt = time.Now().UTC()
	m.Duration = summary.Duration.Round(time.Millisecond).String()
}

// Manager reads and writes the manifest file
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a manager for the manifest at path
func NewManager(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{path: path, logger: log}
}

// Path returns the manifest location
func (m *Manager) Path() string {
	return m.path
}

// Save writes the manifest atomically through a temporary file
func (m *Manager) Save(manifest *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(manifest); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync manifest file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}

	m.logger.DebugWithFields("Manifest saved", map[string]interface{}{
		"path":    m.path,
		"state":   manifest.State,
		"records": manifest.Records,
	})
	return nil
}

// Load reads the manifest. It returns nil, nil when none exists.
func (m *Manager) Load() (*Manifest, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}
