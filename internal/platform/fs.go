package platform

import (
	"errors"
	"io/fs"
	"os"
)

// OSFilesystem checks paths on the real filesystem.
type OSFilesystem struct{}

// Exists uses Lstat so a dangling symlink planted at a known path still
// counts as present.
func (OSFilesystem) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
