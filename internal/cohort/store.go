package cohort

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// generationFile is the durable document name inside the data directory.
const generationFile = "cohorts.json"

// FileStore persists one generation as a single JSON document.
//
// Writes go to a temporary file in the same directory followed by a rename,
// so a crashed or failed write never clobbers the previous generation.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dataDir, creating the directory if
// needed.
func NewFileStore(dataDir string, logger *zap.Logger) (*FileStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileStore{
		path:   filepath.Join(dataDir, generationFile),
		logger: logger,
	}, nil
}

// SaveGeneration atomically replaces the persisted generation.
//
// The generation is validated before anything touches disk. On any failure
// the previously persisted generation remains readable; errors wrap
// ErrStorageUnavailable.
func (s *FileStore) SaveGeneration(gen *Generation) error {
	if gen == nil {
		return fmt.Errorf("%w: nil generation", ErrInvalidGeneration)
	}
	if err := gen.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling generation: %v", ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing temp file: %v", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: swapping generation file: %v", ErrStorageUnavailable, err)
	}

	s.logger.Info("cohort generation persisted",
		zap.String("path", s.path),
		zap.Int("cohorts", len(gen.Cohorts)),
		zap.Time("generated_at", gen.Metadata.GeneratedAt))
	return nil
}

// LoadLatest reads the persisted generation. A missing file is
// ErrNoGeneration; a corrupt file wraps ErrStorageUnavailable.
func (s *FileStore) LoadLatest() (*Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoGeneration
		}
		return nil, fmt.Errorf("%w: reading generation file: %v", ErrStorageUnavailable, err)
	}

	var gen Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("%w: parsing generation file: %v", ErrStorageUnavailable, err)
	}
	return &gen, nil
}

// LookupUserCohort returns the cohort containing userID in the latest
// generation, or ErrUserNotFound.
func (s *FileStore) LookupUserCohort(userID string) (*Cohort, error) {
	gen, err := s.LoadLatest()
	if err != nil {
		return nil, err
	}
	if c, ok := gen.CohortByUser(userID); ok {
		return c, nil
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
}
