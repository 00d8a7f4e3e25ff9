// Package store persists one durable record per pipeline session and owns
// the on-disk layout of per-session artifact directories.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsmelody/api/internal/model"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
)

// Store is the durable session record store. Update must be atomic with
// respect to concurrent writers of the same session: the mutate closure sees
// the latest record and its result is written back as one unit, or the whole
// operation fails.
type Store interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	// List returns sessions newest first, optionally filtered by status.
	// limit <= 0 means no limit.
	List(ctx context.Context, status model.SessionStatus, limit int) ([]*model.Session, error)
	Update(ctx context.Context, id string, mutate func(*model.Session) error) (*model.Session, error)
}

// NewID builds a sortable session identifier: a UTC timestamp prefix for
// ordering plus a short random suffix for uniqueness within a second.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s", now.UTC().Format("20060102_150405"), suffix)
}

// Workspace maps session ids to their artifact directories on disk.
type Workspace struct {
	BaseDir string
}

// Dir returns the session's artifact directory.
func (w Workspace) Dir(id string) string {
	return filepath.Join(w.BaseDir, id)
}

// EnsureDir creates the session's artifact directory if missing.
func (w Workspace) EnsureDir(id string) (string, error) {
	dir := w.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	return dir, nil
}

// Path returns the location of a named file inside the session directory.
func (w Workspace) Path(id, name string) string {
	return filepath.Join(w.Dir(id), name)
}
