package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/campusbuzz/backend/internal/models"
)

// snapshot is the on-disk form of a MemoryStore.
type snapshot struct {
	NextIDs       map[string]int64             `json:"next_ids"`
	Verifications []models.VerificationRequest `json:"verifications"`
	Posts         []models.Post                `json:"posts"`
	Logs          []models.ModerationLog       `json:"moderation_logs"`
	Users         []models.User                `json:"users"`
	Stats         *models.SystemStats          `json:"stats,omitempty"`
	MirrorTasks   []models.MirrorTask          `json:"mirror_tasks"`
}

// snapshotFile persists a MemoryStore between restarts. Callers serialize access.
type snapshotFile struct {
	path string
}

func newSnapshotFile(dataDir, filename string) (*snapshotFile, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &snapshotFile{path: filepath.Join(dataDir, filename)}, nil
}

// load returns (nil, nil) when no snapshot has been written yet.
func (f *snapshotFile) load() (*snapshot, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var s snapshot
	if err := json.NewDecoder(file).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// save writes to a temp file and renames it over the snapshot.
func (f *snapshotFile) save(s *snapshot) error {
	tmp := f.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, f.path)
}
