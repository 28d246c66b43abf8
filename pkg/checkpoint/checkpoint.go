package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"notex/pkg/errors"
	"notex/pkg/fingerprint"
	"notex/pkg/logger"
)

// Status is the processing state of a single page
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is the persisted state for one page.
//
// Invariant: Result is non-empty iff Status is StatusSucceeded.
type Record struct {
	Page        int                `json:"page"`
	Fingerprint fingerprint.Digest `json:"fingerprint"`
	Status      Status             `json:"status"`
	Result      string             `json:"result,omitempty"`
	Attempts    int                `json:"attempts"`
	LastError   string             `json:"last_error,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IsUpToDate reports whether the record represents a completed conversion of
// content with the given fingerprint. Only up-to-date pages may be skipped.
func (r *Record) IsUpToDate(current fingerprint.Digest) bool {
	return r.Status == StatusSucceeded && r.Fingerprint == current
}

// Set is the full checkpoint state for one document
type Set struct {
	PDF       string          `json:"pdf"`
	Pages     map[int]*Record `json:"pages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

// Store handles durable checkpoint operations for one workspace.
//
// A Store assumes single-writer discipline: one Store instance per workspace
// at a time. The caller enforces this at the workspace boundary (advisory
// lock); the Store only serializes access across goroutines of one process.
type Store struct {
	path   string
	mu     sync.Mutex
	set    *Set
	logger logger.Logger
}

// NewStore creates a checkpoint store persisting to the given file path
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: logger.GetLogger(),
	}
}

// Load reads the persisted checkpoint set. A missing file yields an empty
// set (first run). Unparseable data yields errors.ErrCorruptCheckpoint;
// the run must abort rather than silently redo billable work.
func (s *Store) Load(pdfPath string) (*Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.set = newSet(pdfPath)
			return s.set, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrCorruptCheckpoint, s.path, err)
	}
	if set.Pages == nil {
		set.Pages = make(map[int]*Record)
	}

	// A checkpoint for a different document is not resumable
	if set.PDF != pdfPath {
		s.logger.WarnWithFields("checkpoint belongs to a different document, starting fresh", map[string]interface{}{
			"checkpoint_pdf": set.PDF,
			"current_pdf":    pdfPath,
		})
		s.set = newSet(pdfPath)
		return s.set, nil
	}

	s.set = &set
	s.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"path":       s.path,
		"pages":      len(set.Pages),
		"updated_at": set.UpdatedAt,
	})
	return s.set, nil
}

func newSet(pdfPath string) *Set {
	return &Set{
		PDF:       pdfPath,
		Pages:     make(map[int]*Record),
		CreatedAt: time.Now(),
		Version:   1,
	}
}

// Inspect reads the persisted set without binding it to a document, for
// status reporting. A missing file yields nil; corrupt data yields
// errors.ErrCorruptCheckpoint.
func (s *Store) Inspect() (*Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrCorruptCheckpoint, s.path, err)
	}
	if set.Pages == nil {
		set.Pages = make(map[int]*Record)
	}
	return &set, nil
}

// Get returns the record for a page, or nil if the page has never been seen
func (s *Store) Get(page int) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set == nil {
		return nil
	}
	return s.set.Pages[page]
}

// RecordSuccess marks a page succeeded, replacing any prior record, and
// persists the change before returning.
func (s *Store) RecordSuccess(page int, fp fingerprint.Digest, result string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set == nil {
		return fmt.Errorf("checkpoint store: no set loaded, call Load first")
	}
	s.set.Pages[page] = &Record{
		Page:        page,
		Fingerprint: fp,
		Status:      StatusSucceeded,
		Result:      result,
		Attempts:    attempts,
		UpdatedAt:   time.Now(),
	}
	return s.saveLocked()
}

// RecordFailure marks a page failed and persists the change before
// returning. Any prior result reference is superseded; cleaning up the
// physical artifact is the caller's concern.
func (s *Store) RecordFailure(page int, fp fingerprint.Digest, errSummary string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set == nil {
		return fmt.Errorf("checkpoint store: no set loaded, call Load first")
	}
	s.set.Pages[page] = &Record{
		Page:        page,
		Fingerprint: fp,
		Status:      StatusFailed,
		Attempts:    attempts,
		LastError:   errSummary,
		UpdatedAt:   time.Now(),
	}
	return s.saveLocked()
}

// Flush persists the current checkpoint set
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the checkpoint set atomically: encode to a temp file,
// fsync, then rename over the old file so readers see either the old or the
// new set, never a partial write. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	if s.set == nil {
		return nil
	}
	s.set.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.set); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	s.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"path":  s.path,
		"pages": len(s.set.Pages),
	})
	return nil
}

// Clear removes the checkpoint file, discarding all recorded progress
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	s.logger.Info("checkpoint cleared")
	return nil
}

// Exists checks if a checkpoint file exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// Summary returns page counts per status for operator reporting
func (s *Store) Summary() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Status]int)
	if s.set == nil {
		return counts
	}
	for _, rec := range s.set.Pages {
		counts[rec.Status]++
	}
	return counts
}
