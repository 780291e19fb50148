package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoEntryPoint is returned when no launchable entry point exists.
var ErrNoEntryPoint = errors.New("no launchable entry point")

// ExecutableResolver resolves the configured entry point, falling back to
// the running executable.
type ExecutableResolver struct {
	// Path overrides the running executable when set.
	Path string
	Args []string
	// Executable defaults to os.Executable.
	Executable func() (string, error)
}

// Resolve returns an entry point whose path exists and is a regular,
// executable file.
func (r *ExecutableResolver) Resolve() (Entry, error) {
	path := r.Path
	if path == "" {
		exe := r.Executable
		if exe == nil {
			exe = os.Executable
		}
		p, err := exe()
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrNoEntryPoint, err)
		}
		path = p
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrNoEntryPoint, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
		return Entry{}, fmt.Errorf("%w: %s is not an executable file", ErrNoEntryPoint, path)
	}
	return Entry{Path: path, Args: append([]string(nil), r.Args...)}, nil
}
