package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace is the managed directory every temporary asset lives in.
// Names are random so concurrent jobs never collide.
type Workspace struct {
	Dir string
}

// DefaultWorkspaceDir is $TMPDIR/captionclip.
func DefaultWorkspaceDir() string {
	return filepath.Join(os.TempDir(), "captionclip")
}

// OpenWorkspace creates dir if needed. An empty dir selects DefaultWorkspaceDir.
func OpenWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		dir = DefaultWorkspaceDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", abs, err)
	}
	return &Workspace{Dir: abs}, nil
}

// NewPath returns an unused path "<dir>/<prefix>-<uuid><ext>". Nothing is created.
func (w *Workspace) NewPath(prefix, ext string) string {
	return SiblingPath(w.Dir, prefix, ext)
}

// SiblingPath builds a random name inside dir.
func SiblingPath(dir, prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(dir, prefix+"-"+uuid.NewString()+ext)
}

// Owns reports whether path lies inside the workspace.
func (w *Workspace) Owns(path string) bool {
	if w == nil || path == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.Dir, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Create opens a new empty file under a random name.
func (w *Workspace) Create(prefix, ext string) (*os.File, error) {
	return os.OpenFile(w.NewPath(prefix, ext), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// EnsureDir creates the directory path if it does not exist.
func EnsureDir(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// RemoveIfExists deletes the file if present.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MoveFile renames src to dst, falling back to copy+remove across devices.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
