// Package checkpoint snapshots file contents before mutating operations and
// restores them on rollback. Each checkpoint is a full snapshot, not a diff:
// restoring one never requires any other checkpoint to exist.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codesquad/internal/logging"
)

// FileType classifies one captured file state.
type FileType string

const (
	// FileModified carries the pre-operation content; restore overwrites.
	FileModified FileType = "modified"

	// FileCreated marks a file that appeared during the operation; restore
	// deletes it.
	FileCreated FileType = "created"

	// FileDeleted marks a file removed by the operation; restore rewrites
	// the original content.
	FileDeleted FileType = "deleted"
)

// FileState is one captured file within a checkpoint.
type FileState struct {
	Path            string   `json:"path"`
	Type            FileType `json:"type"`
	OriginalContent string   `json:"original_content,omitempty"`
}

// Checkpoint is a point-in-time snapshot of the working tree's mutable files.
type Checkpoint struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
	Files       []FileState `json:"files"`
}

// Info is the listing view of a checkpoint, without file contents.
type Info struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	FileCount   int       `json:"file_count"`
}

const (
	// maxSnapshotFiles bounds the no-VCS fallback walk.
	maxSnapshotFiles = 500

	// maxSnapshotFileSize skips files too large to embed in JSON snapshots.
	maxSnapshotFileSize = 1 << 20 // 1 MiB
)

// Store manages checkpoints in memory and as one JSON file per id on disk.
type Store struct {
	workingDir string
	dir        string

	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewStore creates a checkpoint store rooted at workingDir, persisting
// snapshots under dir.
func NewStore(workingDir, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Store{
		workingDir:  workingDir,
		dir:         dir,
		checkpoints: make(map[string]*Checkpoint),
	}, nil
}

// Create captures the current content of all tracked-modified files under
// the working directory and returns the new checkpoint's id. Without a .git
// directory it falls back to walking all files (bounded).
func (s *Store) Create(sessionID, description string) (string, error) {
	timer := logging.StartTimer(logging.CategoryCheckpoint, "checkpoint capture")
	defer timer.Stop()

	paths, err := s.mutableFiles()
	if err != nil {
		return "", err
	}

	cp := &Checkpoint{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Description: description,
		CreatedAt:   time.Now(),
	}

	for _, rel := range paths {
		abs := filepath.Join(s.workingDir, rel)
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() || info.Size() > maxSnapshotFileSize {
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		cp.Files = append(cp.Files, FileState{
			Path:            rel,
			Type:            FileModified,
			OriginalContent: string(data),
		})
	}

	s.mu.Lock()
	s.checkpoints[cp.ID] = cp
	s.mu.Unlock()

	if err := s.flush(cp); err != nil {
		logging.CheckpointWarn("checkpoint %s not persisted: %v", cp.ID, err)
	}

	logging.Checkpoint("captured %s: %d files (%s)", cp.ID, len(cp.Files), description)
	return cp.ID, nil
}

// RecordCreated marks a file observed to appear during the protected
// operation; restore will delete it.
func (s *Store) RecordCreated(id, path string) {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(s.workingDir, path); err == nil {
			rel = r
		}
	}
	if strings.HasPrefix(rel, ".squad") || strings.HasPrefix(rel, ".git") {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return
	}
	for _, f := range cp.Files {
		if f.Path == rel {
			return
		}
	}
	cp.Files = append(cp.Files, FileState{Path: rel, Type: FileCreated})
	if err := s.flush(cp); err != nil {
		logging.CheckpointWarn("checkpoint %s not persisted: %v", cp.ID, err)
	}
	logging.CheckpointDebug("checkpoint %s: recorded created file %s", id, rel)
}

// RecordDeleted captures a file's content before an operation removes it.
func (s *Store) RecordDeleted(id, path, originalContent string) {
	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(s.workingDir, path); err == nil {
			rel = r
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return
	}
	cp.Files = append(cp.Files, FileState{Path: rel, Type: FileDeleted, OriginalContent: originalContent})
	if err := s.flush(cp); err != nil {
		logging.CheckpointWarn("checkpoint %s not persisted: %v", cp.ID, err)
	}
}

// Restore rolls the working tree back to the checkpoint's captured state.
// File states apply in reverse insertion order. A successful restore consumes
// the checkpoint: restoring the same id again returns false. Unknown ids
// return false (non-fatal).
func (s *Store) Restore(id string) bool {
	s.mu.Lock()
	cp, ok := s.checkpoints[id]
	if ok {
		delete(s.checkpoints, id)
	}
	s.mu.Unlock()

	if !ok {
		logging.CheckpointDebug("restore of unknown or consumed checkpoint %s", id)
		return false
	}

	for i := len(cp.Files) - 1; i >= 0; i-- {
		f := cp.Files[i]
		abs := filepath.Join(s.workingDir, f.Path)
		switch f.Type {
		case FileCreated:
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				logging.CheckpointError("restore %s: failed to remove %s: %v", id, f.Path, err)
			}
		case FileModified, FileDeleted:
			if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				logging.CheckpointError("restore %s: %v", id, err)
				continue
			}
			if err := os.WriteFile(abs, []byte(f.OriginalContent), 0644); err != nil {
				logging.CheckpointError("restore %s: failed to write %s: %v", id, f.Path, err)
			}
		}
	}

	// The JSON file is gone best-effort once the snapshot is consumed.
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		logging.CheckpointWarn("restore %s: could not delete snapshot file: %v", id, err)
	}

	logging.Checkpoint("restored %s: %d files", id, len(cp.Files))
	logging.Audit().CheckpointRestore(id, len(cp.Files))
	return true
}

// Discard drops a checkpoint without touching the working tree, used once an
// operation is confirmed safe to keep.
func (s *Store) Discard(id string) bool {
	s.mu.Lock()
	_, ok := s.checkpoints[id]
	if ok {
		delete(s.checkpoints, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		logging.CheckpointWarn("discard %s: could not delete snapshot file: %v", id, err)
	}
	return true
}

// List returns checkpoint infos for a session (all sessions if empty),
// newest first.
func (s *Store) List(sessionID string) []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		if sessionID != "" && cp.SessionID != sessionID {
			continue
		}
		infos = append(infos, Info{
			ID:          cp.ID,
			SessionID:   cp.SessionID,
			Description: cp.Description,
			CreatedAt:   cp.CreatedAt,
			FileCount:   len(cp.Files),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// Get returns a checkpoint by id, or nil.
func (s *Store) Get(id string) *Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[id]
}

// Load re-reads persisted checkpoints from disk, for restore across process
// restarts. Unparseable files are skipped.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil || cp.ID == "" {
			continue
		}
		if _, exists := s.checkpoints[cp.ID]; !exists {
			s.checkpoints[cp.ID] = &cp
		}
	}
	return nil
}

// Prune keeps at most max checkpoints per session, discarding the oldest.
func (s *Store) Prune(sessionID string, max int) int {
	if max <= 0 {
		return 0
	}
	infos := s.List(sessionID)
	if len(infos) <= max {
		return 0
	}
	pruned := 0
	for _, info := range infos[max:] {
		if s.Discard(info.ID) {
			pruned++
		}
	}
	return pruned
}

// flush writes a checkpoint's JSON file. Callers hold the lock.
func (s *Store) flush(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(cp.ID), data, 0644)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// mutableFiles enumerates the files worth snapshotting: git-tracked modified
// files when a repository is present, every regular file otherwise.
func (s *Store) mutableFiles() ([]string, error) {
	if _, err := os.Stat(filepath.Join(s.workingDir, ".git")); err == nil {
		return s.gitModifiedFiles()
	}
	return s.walkAllFiles()
}

// gitModifiedFiles shells out to git ls-files -m.
func (s *Store) gitModifiedFiles() ([]string, error) {
	out, err := exec.Command("git", "-C", s.workingDir, "ls-files", "-m").Output()
	if err != nil {
		logging.CheckpointWarn("git ls-files failed, falling back to walk: %v", err)
		return s.walkAllFiles()
	}

	seen := make(map[string]bool)
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		paths = append(paths, line)
	}
	return paths, nil
}

// walkAllFiles is the no-VCS fallback: all regular files under the working
// directory, bounded, skipping state and VCS directories.
func (s *Store) walkAllFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || name == ".squad" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(paths) >= maxSnapshotFiles {
			return filepath.SkipAll
		}
		rel, rerr := filepath.Rel(s.workingDir, path)
		if rerr != nil {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	return paths, err
}
