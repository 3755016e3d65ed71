package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store defines the interface for storing sweep runs.
type Store interface {
	Save(run *Run) error
	// LoadLatest returns the newest run of variant, or of any variant when
	// variant is empty. It returns nil, nil when nothing matches.
	LoadLatest(variant string) (*Run, error)
	LoadAll() ([]Run, error)
	Close() error
}

// FileStore implements Store using a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(run *Run) error {
	runs, err := s.LoadAll()
	if err != nil {
		return err
	}

	var maxID int64
	for _, r := range runs {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	run.ID = maxID + 1
	runs = append(runs, *run)

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	return os.WriteFile(s.path, data, 0644)
}

func (s *FileStore) LoadAll() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, err
	}

	var runs []Run
	if len(data) == 0 {
		return []Run{}, nil
	}

	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	return runs, nil
}

func (s *FileStore) LoadLatest(variant string) (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	return latest(runs, variant), nil
}

func (s *FileStore) Close() error {
	return nil
}

// latest picks the last run of variant from runs sorted oldest first.
func latest(runs []Run, variant string) *Run {
	for i := len(runs) - 1; i >= 0; i-- {
		if variant == "" || strings.EqualFold(runs[i].Variant, variant) {
			r := runs[i]
			return &r
		}
	}
	return nil
}
