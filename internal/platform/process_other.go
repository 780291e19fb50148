//go:build !unix

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"time"
)

// HostProcess terminates the running process.
type HostProcess struct{}

func (HostProcess) Exit(code int) { os.Exit(code) }

func (HostProcess) Kill() {
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Kill()
	}
	os.Exit(1)
}

// RelaunchCommand is the hidden CLI verb the detached helper runs.
const RelaunchCommand = "__relaunch"

// DetachedScheduler schedules a relaunch through a helper process.
type DetachedScheduler struct {
	Helper string
}

func (s *DetachedScheduler) Schedule(entry Entry, delay time.Duration) error {
	helper := s.Helper
	if helper == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("relaunch: locate helper: %w", err)
		}
		helper = exe
	}
	args := append([]string{RelaunchCommand, "--delay", delay.String(), "--", entry.Path}, entry.Args...)
	cmd := exec.Command(helper, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch: start helper: %w", err)
	}
	return cmd.Process.Release()
}

// ExecAfter sleeps for delay and starts entry as a new process, since
// in-place exec is not available on this platform.
func ExecAfter(entry Entry, delay time.Duration) error {
	time.Sleep(delay)
	cmd := exec.Command(entry.Path, entry.Args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("relaunch: start %s: %w", entry.Path, err)
	}
	return cmd.Process.Release()
}
