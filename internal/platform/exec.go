package platform

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single probe subprocess.
const DefaultCommandTimeout = 2 * time.Second

const (
	// maxLineBytes caps the first line read from a child.
	maxLineBytes = 64 << 10
	// pipeWaitDelay bounds how long Wait lingers after the child has been
	// killed.
	pipeWaitDelay = 250 * time.Millisecond
)

// ExecRunner runs subprocesses with os/exec.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns a runner bounded by timeout (DefaultCommandTimeout if <= 0).
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

type lineResult struct {
	line string
	ok   bool
	err  error
}

// FirstLine starts name with args and returns as soon as the child writes
// its first stdout line; the child is then killed. A line already read is
// kept even if the child would have hung past the timeout. The child is
// killed and reaped on every return path. A non-zero exit status is not an
// error: tools like which signal "not found" that way.
func (r *ExecRunner) FirstLine(ctx context.Context, name string, args ...string) (string, bool, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = pipeWaitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", false, fmt.Errorf("exec %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return "", false, fmt.Errorf("exec %s: %w", name, err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		// Wait closes the pipe, which unblocks a pending read.
		_ = cmd.Wait()
	}()

	results := make(chan lineResult, 1)
	go func() {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
		if sc.Scan() {
			results <- lineResult{line: sc.Text(), ok: true}
			return
		}
		results <- lineResult{err: sc.Err()}
	}()

	select {
	case res := <-results:
		if res.ok {
			return strings.TrimSpace(res.line), true, nil
		}
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("exec %s: %w", name, ctx.Err())
		}
		if res.err != nil {
			return "", false, fmt.Errorf("exec %s: read stdout: %w", name, res.err)
		}
		return "", false, nil
	case <-ctx.Done():
		return "", false, fmt.Errorf("exec %s: %w", name, ctx.Err())
	}
}
