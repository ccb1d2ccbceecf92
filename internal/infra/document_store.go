package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// JSONDocumentStore implements domain.DocumentStore with one JSON file per day.
// Layout: <dir>/activity-YYYY-MM-DD.json
type JSONDocumentStore struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewJSONDocumentStore creates a file-backed store rooted at dir.
func NewJSONDocumentStore(dir string, logger *zap.Logger) *JSONDocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONDocumentStore{dir: dir, logger: logger}
}

// Location returns the file path for a day key.
func (s *JSONDocumentStore) Location(key string) string {
	return filepath.Join(s.dir, DayFileName(key))
}

// Open reads the day file, creating the directory if needed.
// A file that cannot be decoded is moved aside and replaced by an empty day.
func (s *JSONDocumentStore) Open(ctx context.Context, key string) (*domain.DayDocument, bool, bool, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, false, false, fmt.Errorf("failed to create data directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists, migrated, err := s.read(key)
	if err != nil {
		path := s.Location(key)
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		s.logger.Warn("day file unreadable, moving aside",
			zap.String("path", path),
			zap.String("moved_to", aside),
			zap.Error(err))
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, false, false, fmt.Errorf("failed to move corrupt day file: %w", rerr)
		}
		return domain.NewDayDocument(), false, false, nil
	}
	if !exists {
		return domain.NewDayDocument(), false, false, nil
	}
	return doc, true, migrated, nil
}

// Read returns the stored document without creating anything.
func (s *JSONDocumentStore) Read(ctx context.Context, key string) (*domain.DayDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists, _, err := s.read(key)
	return doc, exists, err
}

func (s *JSONDocumentStore) read(key string) (*domain.DayDocument, bool, bool, error) {
	data, err := os.ReadFile(s.Location(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, false, nil
		}
		return nil, false, false, err
	}

	var doc domain.DayDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, false, fmt.Errorf("failed to decode day file: %w", err)
	}
	migrated := doc.Migrate()
	return &doc, true, migrated, nil
}

// Write replaces the day file atomically (temp file + rename).
func (s *JSONDocumentStore) Write(ctx context.Context, key string, doc *domain.DayDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomic.WriteFile(s.Location(key), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write day file: %w", err)
	}
	return nil
}

// Ensure JSONDocumentStore implements domain.DocumentStore.
var _ domain.DocumentStore = (*JSONDocumentStore)(nil)
