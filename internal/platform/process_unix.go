//go:build unix

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// HostProcess terminates the running process.
type HostProcess struct{}

func (HostProcess) Exit(code int) { os.Exit(code) }

// Kill delivers SIGKILL to the current process. If delivery somehow fails
// the process still exits with status 1.
func (HostProcess) Kill() {
	_ = unix.Kill(unix.Getpid(), unix.SIGKILL)
	os.Exit(1)
}

// RelaunchCommand is the hidden CLI verb the detached helper runs.
const RelaunchCommand = "__relaunch"

// DetachedScheduler schedules a relaunch by starting a helper process in its
// own session. The helper outlives the caller, sleeps for the delay and
// then replaces itself with the entry point.
type DetachedScheduler struct {
	// Helper is the binary implementing RelaunchCommand. Defaults to the
	// running executable.
	Helper string
}

// Schedule starts the helper and returns once it is running.
func (s *DetachedScheduler) Schedule(entry Entry, delay time.Duration) error {
	helper := s.Helper
	if helper == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("relaunch: locate helper: %w", err)
		}
		helper = exe
	}

	args := []string{RelaunchCommand, "--delay", delay.String(), "--", entry.Path}
	args = append(args, entry.Args...)

	cmd := exec.Command(helper, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch: start helper: %w", err)
	}
	// The helper is deliberately not waited on; it is reparented to init
	// when the caller exits.
	return cmd.Process.Release()
}

// ExecAfter sleeps for delay and then replaces the current process image
// with entry. It only returns on failure.
func ExecAfter(entry Entry, delay time.Duration) error {
	time.Sleep(delay)
	argv := append([]string{entry.Path}, entry.Args...)
	if err := unix.Exec(entry.Path, argv, os.Environ()); err != nil {
		return fmt.Errorf("relaunch: exec %s: %w", entry.Path, err)
	}
	return nil
}
