package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultDir is where run directories are created
var DefaultDir = filepath.Join(".uitest", "runs")

// RunContext holds information about the current test run
type RunContext struct {
	ID        string    // Short unique identifier (8 chars)
	Timestamp time.Time // When the run started
	Dir       string    // Full path to the run directory
}

// New creates a new run context and initializes the run directory under base
func New(base string) (*RunContext, error) {
	now := time.Now()
	shortID := uuid.New().String()[:8]

	// Format: .uitest/runs/2025-01-15_143052_a1b2c3d4/
	dirName := fmt.Sprintf("%s_%s", now.Format("2006-01-02_150405"), shortID)
	runDir := filepath.Join(base, dirName)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	return &RunContext{
		ID:        shortID,
		Timestamp: now,
		Dir:       runDir,
	}, nil
}

// LogPath returns the full path for a log file
func (r *RunContext) LogPath(name string) string {
	return filepath.Join(r.Dir, name+".log")
}

// CreateLogFile creates a log file and returns the file handle
func (r *RunContext) CreateLogFile(name string) (*os.File, error) {
	return os.Create(r.LogPath(name))
}

// WriteLog writes content to a log file
func (r *RunContext) WriteLog(name string, content []byte) error {
	return os.WriteFile(r.LogPath(name), content, 0644)
}

// Transcript opens a JSON-lines logger writing to the named log file. The
// file must be closed by the caller.
func (r *RunContext) Transcript(name string) (zerolog.Logger, *os.File, error) {
	f, err := r.CreateLogFile(name)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating %s log: %w", name, err)
	}
	l := zerolog.New(f).With().Timestamp().Str("run", r.ID).Logger()
	return l, f, nil
}
