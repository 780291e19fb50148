package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gzhole/hostguard/internal/redact"
)

// defaultMaxLogBytes is the size at which the audit log rotates to <path>.1.
const defaultMaxLogBytes = 10 << 20

// ProbeOutcome is the audit form of a single root probe result.
type ProbeOutcome struct {
	Name     string `json:"name"`
	Detected bool   `json:"detected"`
	Evidence string `json:"evidence,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CheckEvent records one integrity operation.
type CheckEvent struct {
	Timestamp    string         `json:"timestamp"`
	EvaluationID string         `json:"evaluation_id"`
	Operation    string         `json:"operation"`
	Result       string         `json:"result"`
	Probes       []ProbeOutcome `json:"probes,omitempty"`
	Error        string         `json:"error,omitempty"`
	Hostname     string         `json:"hostname,omitempty"`
	PID          int            `json:"pid,omitempty"`
}

// Sink receives audit events.
type Sink interface {
	Log(event CheckEvent) error
}

// Nop discards events. Used when no audit log is configured.
type Nop struct{}

func (Nop) Log(CheckEvent) error { return nil }

type AuditLogger struct {
	path     string
	maxBytes int64
	file     *os.File
	size     int64
	mu       sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	l := &AuditLogger{path: path, maxBytes: defaultMaxLogBytes}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// rotate renames the current log to <path>.1, replacing any older backup.
func (l *AuditLogger) rotate() error {
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return err
		}
		l.file = nil
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	return l.open()
}

func (l *AuditLogger) Log(event CheckEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return os.ErrClosed
	}

	// Probe evidence and errors can carry subprocess output and user paths.
	// Redact a copy so the caller's outcomes stay intact.
	event.Probes = append([]ProbeOutcome(nil), event.Probes...)
	for i := range event.Probes {
		event.Probes[i].Evidence = redact.Redact(event.Probes[i].Evidence)
		event.Probes[i].Error = redact.Redact(event.Probes[i].Error)
	}
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if l.size+int64(len(data)) > l.maxBytes && l.size > 0 {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(data)
	l.size += int64(n)
	return err
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
