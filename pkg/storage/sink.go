package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tweetharvest/pkg/config"
	errs "tweetharvest/pkg/errors"
	"tweetharvest/pkg/logger"
	"tweetharvest/pkg/twitter"
)

// Paths locates the two output streams of a run
type Paths struct {
	Complete string
	TextOnly string
}

// PathsFromConfig derives the stream paths from the output section
func PathsFromConfig(cfg *config.Config) Paths {
	return Paths{
		Complete: cfg.CompletePath(),
		TextOnly: cfg.TextOnlyPath(),
	}
}

// Sink appends every record of a page to the full-record stream and its
// text projection to the text-only stream, one JSON line each
type Sink struct {
	paths Paths

	full    *os.File
	text    *os.File
	fullEnc *json.Encoder
	textEnc *json.Encoder

	mu      sync.Mutex
	records int
	closed  bool

	logger logger.Logger
}

// NewSink creates both parent directories and truncates both streams.
// Output from a previous run is never appended to.
func NewSink(paths Paths, log logger.Logger) (*Sink, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	full, err := createStream(paths.Complete)
	if err != nil {
		return nil, err
	}
	text, err := createStream(paths.TextOnly)
	if err != nil {
		full.Close()
		return nil, err
	}

	s := &Sink{
		paths:   paths,
		full:    full,
		text:    text,
		fullEnc: newEncoder(full),
		textEnc: newEncoder(text),
		logger:  log,
	}

	log.InfoWithFields("output streams opened", map[string]interface{}{
		"complete":  paths.Complete,
		"text_only": paths.TextOnly,
	})
	return s, nil
}

func createStream(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errs.Output("create output directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Output("create output stream", err)
	}
	return f, nil
}

func newEncoder(f *os.File) *json.Encoder {
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return enc
}

// WritePage persists the page in record order. It returns after both
// streams have received every record, or on the first failed write.
func (s *Sink) WritePage(page *twitter.ResultPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.Output("write page", errors.New("sink is closed"))
	}

	for i := range page.Records {
		record := &page.Records[i]
		if err := s.fullEnc.Encode(record); err != nil {
			return errs.Output("write full record", fmt.Errorf("record %d: %w", s.records, err))
		}
		if err := s.textEnc.Encode(record.TextOnly()); err != nil {
			return errs.Output("write text record", fmt.Errorf("record %d: %w", s.records, err))
		}
		s.records++
	}

	s.logger.DebugWithFields("page persisted", map[string]interface{}{
		"records": len(page.Records),
		"total":   s.records,
	})
	return nil
}

// Records returns how many records have been written to both streams
func (s *Sink) Records() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Paths returns the stream locations
func (s *Sink) Paths() Paths {
	return s.paths
}

// Close flushes both streams to disk and closes them. Calling Close more
// than once is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var problems []error
	for _, f := range []*os.File{s.full, s.text} {
		if err := f.Sync(); err != nil {
			problems = append(problems, errs.Output("sync output stream", err))
		}
		if err := f.Close(); err != nil {
			problems = append(problems, errs.Output("close output stream", err))
		}
	}

	s.logger.InfoWithFields("output streams closed", map[string]interface{}{
		"records": s.records,
	})
	return errors.Join(problems...)
}
