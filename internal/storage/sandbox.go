// Package storage provides sandboxed file operations for tvfilter.
// Every path is relative to a base directory and may not escape it. The
// sandbox runs on an avfs.VFS so that writers and publishing can be tested
// against an in-memory file system.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/avfs/avfs"
	"github.com/avfs/avfs/vfs/osfs"
	"github.com/oklog/ulid/v2"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// ErrEscapesSandbox is returned for paths outside the base directory.
var ErrEscapesSandbox = errors.New("path escapes sandbox")

// Sandbox confines file operations to a base directory.
type Sandbox struct {
	vfs     avfs.VFS
	baseDir string
}

// NewSandbox creates a Sandbox on the host file system rooted at baseDir,
// creating the directory when it does not exist.
func NewSandbox(baseDir string) (*Sandbox, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	return NewSandboxFS(osfs.New(), abs)
}

// NewSandboxFS creates a Sandbox on vfs. baseDir must be absolute.
func NewSandboxFS(vfs avfs.VFS, baseDir string) (*Sandbox, error) {
	if !filepath.IsAbs(baseDir) {
		return nil, fmt.Errorf("sandbox base directory must be absolute: %s", baseDir)
	}
	baseDir = filepath.Clean(baseDir)
	if err := vfs.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating base directory: %w", err)
	}
	return &Sandbox{vfs: vfs, baseDir: baseDir}, nil
}

// FS returns the underlying file system.
func (s *Sandbox) FS() avfs.VFS {
	return s.vfs
}

// BaseDir returns the absolute base directory.
func (s *Sandbox) BaseDir() string {
	return s.baseDir
}

// ResolvePath resolves a relative path to an absolute one inside the sandbox.
func (s *Sandbox) ResolvePath(relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("%w: %s (absolute paths not allowed)", ErrEscapesSandbox, relativePath)
	}
	full := filepath.Join(s.baseDir, filepath.Clean(relativePath))
	if full != s.baseDir && !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesSandbox, relativePath)
	}
	return full, nil
}

// Exists reports whether a path exists.
func (s *Sandbox) Exists(relativePath string) (bool, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return false, err
	}
	if _, err := s.vfs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking path: %w", err)
	}
	return true, nil
}

// Stat returns file info for a path.
func (s *Sandbox) Stat(relativePath string) (fs.FileInfo, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	return s.vfs.Stat(path)
}

// MkdirAll creates a directory and its parents.
func (s *Sandbox) MkdirAll(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}
	if err := s.vfs.MkdirAll(path, dirPerm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

// MkdirTemp creates a uniquely named directory under dir and returns its
// sandbox-relative path.
func (s *Sandbox) MkdirTemp(dir, prefix string) (string, error) {
	if err := s.MkdirAll(dir); err != nil {
		return "", err
	}
	rel := filepath.Join(dir, prefix+strings.ToLower(ulid.Make().String()))
	path, err := s.ResolvePath(rel)
	if err != nil {
		return "", err
	}
	if err := s.vfs.Mkdir(path, dirPerm); err != nil {
		return "", fmt.Errorf("creating temp directory: %w", err)
	}
	return rel, nil
}

// Create creates or truncates a file, creating parent directories.
func (s *Sandbox) Create(relativePath string) (avfs.File, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	if err := s.vfs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	f, err := s.vfs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	return f, nil
}

// Open opens a file for reading.
func (s *Sandbox) Open(relativePath string) (avfs.File, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	return s.vfs.OpenFile(path, os.O_RDONLY, 0)
}

// WriteFile writes data, creating parent directories.
func (s *Sandbox) WriteFile(relativePath string, data []byte) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}
	if err := s.vfs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := s.vfs.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// ReadFile reads a whole file.
func (s *Sandbox) ReadFile(relativePath string) ([]byte, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	data, err := s.vfs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns the entries of a directory.
func (s *Sandbox) List(relativePath string) ([]fs.DirEntry, error) {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}
	entries, err := s.vfs.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	return entries, nil
}

// Walk visits every file below relativePath in lexical order. fn receives
// sandbox-relative paths.
func (s *Sandbox) Walk(relativePath string, fn func(rel string, d fs.DirEntry) error) error {
	entries, err := s.List(relativePath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		rel := filepath.Join(relativePath, e.Name())
		if err := fn(rel, e); err != nil {
			return err
		}
		if e.IsDir() {
			if err := s.Walk(rel, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove removes a file or empty directory.
func (s *Sandbox) Remove(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}
	if err := s.vfs.Remove(path); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// RemoveAll removes a path and its contents. The base directory itself
// cannot be removed.
func (s *Sandbox) RemoveAll(relativePath string) error {
	path, err := s.ResolvePath(relativePath)
	if err != nil {
		return err
	}
	if path == s.baseDir {
		return fmt.Errorf("cannot remove sandbox base directory")
	}
	if err := s.vfs.RemoveAll(path); err != nil {
		return fmt.Errorf("removing path: %w", err)
	}
	return nil
}

// Rename moves a file or directory, creating the destination's parent.
func (s *Sandbox) Rename(oldPath, newPath string) error {
	oldAbs, err := s.ResolvePath(oldPath)
	if err != nil {
		return fmt.Errorf("resolving old path: %w", err)
	}
	newAbs, err := s.ResolvePath(newPath)
	if err != nil {
		return fmt.Errorf("resolving new path: %w", err)
	}
	if err := s.vfs.MkdirAll(filepath.Dir(newAbs), dirPerm); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	if err := s.vfs.Rename(oldAbs, newAbs); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}
	return nil
}

// AtomicWriteReader streams r into a hidden sibling file and renames it
// over relativePath.
func (s *Sandbox) AtomicWriteReader(relativePath string, r io.Reader) error {
	tmp := siblingTemp(relativePath)
	f, err := s.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.Remove(tmp)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := s.Rename(tmp, relativePath); err != nil {
		_ = s.Remove(tmp)
		return err
	}
	return nil
}

// AtomicWrite writes data through AtomicWriteReader.
func (s *Sandbox) AtomicWrite(relativePath string, data []byte) error {
	return s.AtomicWriteReader(relativePath, strings.NewReader(string(data)))
}

// CopyFile copies src over dst atomically. It is the fallback for renames
// the file system refuses.
func (s *Sandbox) CopyFile(src, dst string) error {
	in, err := s.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()
	return s.AtomicWriteReader(dst, in)
}

func siblingTemp(relativePath string) string {
	dir, base := filepath.Split(relativePath)
	return filepath.Join(dir, "."+base+"."+strings.ToLower(ulid.Make().String())+".tmp")
}
