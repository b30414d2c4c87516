package file

import (
	"fmt"
	"path/filepath"
	"sync"

	"crowdwatch/internal/model"
)

const (
	ImageSnapshotFile = "last_image_counts.json"
	VideoSnapshotFile = "last_video_counts.json"
)

// SnapshotStore implements repository.SnapshotStore with one JSON file per
// mode inside the upload directory.
type SnapshotStore struct {
	dir string
	mu  sync.RWMutex
}

func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

func (s *SnapshotStore) path(mode model.ReportMode) (string, error) {
	switch mode {
	case model.ModeImage:
		return filepath.Join(s.dir, ImageSnapshotFile), nil
	case model.ModeVideo:
		return filepath.Join(s.dir, VideoSnapshotFile), nil
	}
	return "", fmt.Errorf("no snapshot for mode %q", mode)
}

// Save replaces the snapshot of the given mode.
func (s *SnapshotStore) Save(mode model.ReportMode, counts model.Counts) error {
	path, err := s.path(mode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(path, counts.Clone())
}

// Load returns the last saved snapshot, or an empty table if none exists.
func (s *SnapshotStore) Load(mode model.ReportMode) (model.Counts, error) {
	path, err := s.path(mode)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := model.Counts{}
	if _, err := readJSON(path, &counts); err != nil {
		return nil, err
	}
	if counts == nil {
		counts = model.Counts{}
	}
	return counts, nil
}
