package service

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iconidentify/tunegrab/internal/domain"
)

// Workspace owns the temporary files of one request.
type Workspace struct {
	id     domain.WorkspaceID
	dir    string
	logger *slog.Logger
}

// NewWorkspace ensures dir exists and returns the workspace for id.
func NewWorkspace(dir string, id domain.WorkspaceID, logger *slog.Logger) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Workspace{id: id, dir: dir, logger: logger}, nil
}

// ID returns the workspace identifier.
func (w *Workspace) ID() domain.WorkspaceID {
	return w.id
}

// Prefix is the path prefix handed to the media fetcher.
func (w *Workspace) Prefix() string {
	return filepath.Join(w.dir, w.id.String())
}

// AudioPath returns <dir>/<id>.mp3.
func (w *Workspace) AudioPath() string {
	return w.Prefix() + ".mp3"
}

// ThumbPath returns <dir>/<id>_thumb.jpg.
func (w *Workspace) ThumbPath() string {
	return w.Prefix() + "_thumb.jpg"
}

// Cleanup removes every artifact of the workspace. It is idempotent and
// never fails: missing files are skipped and removal errors are logged.
func (w *Workspace) Cleanup() {
	paths := []string{w.AudioPath(), w.ThumbPath()}
	if sources, err := filepath.Glob(w.Prefix() + ".source.*"); err == nil {
		paths = append(paths, sources...)
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to remove workspace file", "path", p, "error", err)
		}
	}
}
