package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"backoffice/internal/core"
)

const lockTimeout = 3 * time.Second

// SnapshotFile persists the provider content as one JSON document. A sibling
// ".lock" file serializes access between processes.
type SnapshotFile struct {
	path string
	lock *flock.Flock
}

type snapshotData struct {
	Resources map[string][]core.Record `json:"resources"`
	SavedAt   time.Time                `json:"saved_at"`
}

func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path, lock: flock.New(path + ".lock")}
}

func (s *SnapshotFile) Path() string { return s.path }

func (s *SnapshotFile) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("snapshot %s is locked", s.path)
	}
	return func() { _ = s.lock.Unlock() }, nil
}

// Load reads the snapshot. A missing or empty file yields no resources.
func (s *SnapshotFile) Load(ctx context.Context) (map[string][]core.Record, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string][]core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return map[string][]core.Record{}, nil
	}
	var data snapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if data.Resources == nil {
		data.Resources = map[string][]core.Record{}
	}
	return data.Resources, nil
}

// Save writes resources atomically through a temporary file.
func (s *SnapshotFile) Save(ctx context.Context, resources map[string][]core.Record) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	raw, err := json.MarshalIndent(snapshotData{Resources: resources, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
