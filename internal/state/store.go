package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tradebot/internal/models"
)

// Store persists open positions to a JSON file, one record per symbol.
// Every mutation is written through before the next tick may run, so a
// crash cannot lose a recorded fill. Writes go through a temp file and
// rename to stay atomic.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads all persisted positions. A missing file is an empty book.
func (s *Store) Load() (map[string]*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*models.Position{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	positions := map[string]*models.Position{}
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return positions, nil
}

// Upsert writes one position. A nil position removes the symbol's record.
func (s *Store) Upsert(symbol string, position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.loadLocked()
	if err != nil {
		return err
	}
	if position == nil {
		delete(positions, symbol)
	} else {
		positions[symbol] = position
	}
	return s.saveLocked(positions)
}

func (s *Store) loadLocked() (map[string]*models.Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*models.Position{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	positions := map[string]*models.Position{}
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return positions, nil
}

func (s *Store) saveLocked(positions map[string]*models.Position) error {
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
