// Package jsonfile keeps the daily remote request counter in a small JSON
// document on disk, for single-user CLI runs.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

type record struct {
	Day  string `json:"day"`
	Used int    `json:"used"`
}

// Store holds one day at a time; a new day starts from zero.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is the counter location under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "semester-scan", "quota.json")
}

func (s *Store) Acquire(_ context.Context, day string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return false, err
	}
	if rec.Day != day {
		rec = record{Day: day}
	}
	if rec.Used >= limit {
		return false, nil
	}
	rec.Used++
	if err := s.save(rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Release(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	if rec.Day != day || rec.Used == 0 {
		return nil
	}
	rec.Used--
	return s.save(rec)
}

func (s *Store) Used(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return 0, err
	}
	if rec.Day != day {
		return 0, nil
	}
	return rec.Used, nil
}

func (s *Store) load() (record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, nil
	}
	if err != nil {
		return record{}, fmt.Errorf("read quota file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("decode quota file: %w", err)
	}
	return rec, nil
}

func (s *Store) save(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode quota file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create quota dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".quota-*.json")
	if err != nil {
		return fmt.Errorf("create quota file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write quota file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close quota file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit quota file: %w", err)
	}
	return nil
}
