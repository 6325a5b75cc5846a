package encoders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

// ValidationResults records which encoders produced output in a test encode.
type ValidationResults struct {
	Timestamp      string   `toml:"timestamp" json:"timestamp"`
	FFmpegVersion  string   `toml:"ffmpeg_version" json:"ffmpeg_version"`
	TestDuration   int      `toml:"test_duration" json:"test_duration"` // milliseconds
	TestResolution string   `toml:"test_resolution" json:"test_resolution"`
	Working        []string `toml:"working" json:"working"`
	Failed         []string `toml:"failed" json:"failed"`
}

// ResultsStore persists ValidationResults to a TOML file.
type ResultsStore struct {
	path string
}

// NewResultsStore creates a store backed by path.
func NewResultsStore(path string) *ResultsStore {
	return &ResultsStore{path: path}
}

// Path returns the backing file path.
func (s *ResultsStore) Path() string {
	return s.path
}

// Load reads the results. A missing file yields nil results and no error.
func (s *ResultsStore) Load() (*ValidationResults, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read validation results: %w", err)
	}

	var results ValidationResults
	if err := toml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse validation results: %w", err)
	}
	return &results, nil
}

// Save writes the results atomically.
func (s *ResultsStore) Save(results *ValidationResults) error {
	data, err := toml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal validation results: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}

	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write validation results: %w", err)
	}
	return nil
}
