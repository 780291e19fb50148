package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	secureOn  = "secure=1\n"
	secureOff = "secure=0\n"
)

// FileSurface is a display surface whose capture-suppression flag lives in a
// file read by the compositor or kiosk shell that owns the actual window.
// The flag survives for as long as the file does; Destroy resets it.
type FileSurface struct {
	path string
	mu   sync.Mutex
}

// NewFileSurface returns a surface backed by path.
func NewFileSurface(path string) *FileSurface {
	return &FileSurface{path: path}
}

// Path returns the flag file location.
func (s *FileSurface) Path() string { return s.path }

// SetSecure writes the flag atomically (temp file + rename).
func (s *FileSurface) SetSecure(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := secureOff
	if enabled {
		content = secureOn
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("surface: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".secure-*")
	if err != nil {
		return fmt.Errorf("surface: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("surface: write flag: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("surface: write flag: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("surface: commit flag: %w", err)
	}
	return nil
}

// Secure reports the persisted flag. A missing or unreadable file means
// capture is not suppressed.
func (s *FileSurface) Secure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	return bytes.Equal(data, []byte(secureOn))
}

// Destroy removes the flag file, returning the surface to its default state.
func (s *FileSurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// DirSurfaceProvider exposes a FileSurface only while its parent directory
// exists, which is how the owning shell advertises an active window.
type DirSurfaceProvider struct {
	surface *FileSurface
}

// NewDirSurfaceProvider returns a provider for the flag file at path.
func NewDirSurfaceProvider(path string) *DirSurfaceProvider {
	return &DirSurfaceProvider{surface: NewFileSurface(path)}
}

// Current returns the surface, or nil when the parent directory is absent.
func (p *DirSurfaceProvider) Current() Surface {
	if p.surface == nil || p.surface.path == "" {
		return nil
	}
	info, err := os.Stat(filepath.Dir(p.surface.path))
	if err != nil || !info.IsDir() {
		return nil
	}
	return p.surface
}
