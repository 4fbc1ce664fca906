package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AnimalSelection is one recorded choice.
type AnimalSelection struct {
	Animal    string `json:"animal"`
	Timestamp string `json:"timestamp"`
}

// FileRecord describes an uploaded file.
type FileRecord struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Timestamp   string `json:"timestamp"`
	Path        string `json:"path"`
}

// Data is the whole document persisted in the JSON file.
type Data struct {
	Animals []AnimalSelection `json:"animals"`
	Files   []FileRecord      `json:"files"`
}

// Service represents a service that interacts with the JSON data file.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Load returns a snapshot of the stored document.
	Load() (Data, error)

	// Update runs fn on the current document and persists the result if fn
	// returns nil. Concurrent updates are serialized.
	Update(fn func(*Data) error) error

	// Close releases the service. It is safe to call more than once.
	Close()
}

type service struct {
	path string
	mu   sync.Mutex
}

// NewService returns a Service storing its document at path. The parent
// directory is created when missing; the file itself is created on first write.
func NewService(path string) (Service, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return &service{path: path}, nil
}

func (s *service) Load() (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *service) Update(fn func(*Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&data); err != nil {
		return err
	}
	return s.write(data)
}

// read must be called with mu held. A missing file is an empty document.
func (s *service) read() (Data, error) {
	data := Data{Animals: []AnimalSelection{}, Files: []FileRecord{}}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("failed to read data file: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("failed to decode data file: %w", err)
	}
	if data.Animals == nil {
		data.Animals = []AnimalSelection{}
	}
	if data.Files == nil {
		data.Files = []FileRecord{}
	}
	return data, nil
}

// write must be called with mu held. It replaces the file atomically.
func (s *service) write(data Data) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// Health checks that the data file can be read and reports its size.
func (s *service) Health() map[string]string {
	stats := make(map[string]string)

	data, err := s.Load()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("data file unreadable: %v", err)
		log.Error().Err(err).Str("path", s.path).Msg("data file unreadable")
		return stats
	}

	stats["status"] = "up"
	stats["path"] = s.path
	stats["animal_records"] = strconv.Itoa(len(data.Animals))
	stats["file_records"] = strconv.Itoa(len(data.Files))

	if info, err := os.Stat(s.path); err == nil {
		stats["size_bytes"] = strconv.FormatInt(info.Size(), 10)
		stats["modified_at"] = info.ModTime().Format(time.RFC3339)
	} else {
		stats["message"] = "No data has been written yet."
	}

	return stats
}

// Close is a no-op kept for parity with other services; writes are flushed per update.
func (s *service) Close() {
	log.Info().Str("path", s.path).Msg("Closed data file service")
}
