package file

import (
	"encoding/json"
	"sync"
)

// SafeZoneStore implements repository.SafeZoneStore on a single JSON file.
// The zone objects are stored as received.
type SafeZoneStore struct {
	path string
	mu   sync.RWMutex
}

func NewSafeZoneStore(path string) *SafeZoneStore {
	return &SafeZoneStore{path: path}
}

// Save overwrites the stored list.
func (s *SafeZoneStore) Save(zones []json.RawMessage) error {
	if zones == nil {
		zones = []json.RawMessage{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, zones)
}

// Load returns the stored list, empty when nothing was saved yet.
func (s *SafeZoneStore) Load() ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := []json.RawMessage{}
	if _, err := readJSON(s.path, &zones); err != nil {
		return nil, err
	}
	if zones == nil {
		zones = []json.RawMessage{}
	}
	return zones, nil
}
