package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists one JSON file per session under a directory. Save
// writes to a temp file and renames it over the record, so a crash mid-save
// leaves the previous version intact.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed session store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create allocates a session with a fresh unique ID and empty state.
func (s *FileStore) Create(ctx context.Context, userID string) (*Session, error) {
	sess := newSession(userID)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *FileStore) Get(_ context.Context, id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("get session %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read session %q: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %q: %w", id, err)
	}
	return &sess, nil
}

// Save atomically replaces the session record via temp file + rename.
func (s *FileStore) Save(_ context.Context, sess *Session) error {
	sess.LastActive = time.Now()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %q: %w", sess.ID, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, sess.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session %q: %w", sess.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session file %q: %w", sess.ID, err)
	}
	if err := os.Rename(tmpName, s.path(sess.ID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session %q: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session by ID.
func (s *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session %q: %w", id, err)
	}
	return nil
}

// PurgeExpired removes session files idle longer than olderThan.
func (s *FileStore) PurgeExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read session dir: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	purged := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		sess, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if sess.LastActive.Before(cutoff) {
			if err := s.Delete(ctx, id); err == nil {
				purged++
			}
		}
	}
	return purged, nil
}
