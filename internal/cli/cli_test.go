package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gzhole/hostguard/internal/approval"
	"github.com/gzhole/hostguard/internal/engine"
	"github.com/gzhole/hostguard/internal/logger"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath, logPath, outputFormat = "", "", "auto"
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{&ExitError{Code: ExitUntrusted}, 2},
		{&ExitError{Code: ExitUndetermined}, 3},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestVerdictExit(t *testing.T) {
	if err := verdictExit(engine.VerdictTrusted); err != nil {
		t.Errorf("trusted should exit 0, got %v", err)
	}
	if got := ExitCode(verdictExit(engine.VerdictUntrusted)); got != ExitUntrusted {
		t.Errorf("untrusted exit = %d", got)
	}
	if got := ExitCode(verdictExit(engine.VerdictUndetermined)); got != ExitUndetermined {
		t.Errorf("undetermined exit = %d", got)
	}
}

func TestFormat(t *testing.T) {
	t.Cleanup(func() { outputFormat = "auto" })

	for _, f := range []string{"table", "json", "yaml"} {
		outputFormat = f
		got, err := format()
		if err != nil || got != f {
			t.Errorf("format(%s) = %q, %v", f, got, err)
		}
	}
	outputFormat = "xml"
	if _, err := format(); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterEvents(t *testing.T) {
	events := []logger.CheckEvent{
		{Operation: "is_rooted", Result: "false"},
		{Operation: "is_rooted", Result: "true"},
		{Operation: "is_debugged", Result: "false"},
		{Operation: "snapshot", Result: "untrusted"},
	}

	if got := filterEvents(events, "", ""); len(got) != 4 {
		t.Errorf("no filter should keep all, got %d", len(got))
	}
	if got := filterEvents(events, "IS_ROOTED", ""); len(got) != 2 {
		t.Errorf("operation filter: got %d", len(got))
	}
	if got := filterEvents(events, "is_rooted", "true"); len(got) != 1 {
		t.Errorf("operation+result filter: got %d", len(got))
	}
	if got := lastN(events, 2); len(got) != 2 || got[1].Operation != "snapshot" {
		t.Errorf("lastN: got %+v", got)
	}
	if got := lastN(events, 10); len(got) != 4 {
		t.Errorf("lastN beyond length: got %d", len(got))
	}
}

func TestReadAuditLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	content := `{"timestamp":"2026-01-02T03:04:05Z","evaluation_id":"a","operation":"is_rooted","result":"false"}
not json

{"timestamp":"2026-01-02T03:04:06Z","evaluation_id":"b","operation":"is_debugged","result":"true"}
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	events, err := readAuditLog(path)
	if err != nil {
		t.Fatalf("readAuditLog: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (malformed skipped), got %d", len(events))
	}
	if events[1].EvaluationID != "b" {
		t.Errorf("unexpected second event: %+v", events[1])
	}

	missing, err := readAuditLog(filepath.Join(dir, "missing.jsonl"))
	if err != nil || missing != nil {
		t.Errorf("missing log should be empty, got %v, %v", missing, err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "hostguard "+Version) {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestSecureDisplayCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := run(t, "secure-display", "on", "--output", "json")
	if err != nil {
		t.Fatalf("secure-display on: %v", err)
	}
	if !strings.Contains(out, `"no-surface"`) {
		t.Errorf("without a surface directory the toggle is a no-op, got %s", out)
	}

	if err := os.MkdirAll(filepath.Join(home, ".hostguard", "display"), 0700); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "secure-display", "on", "--output", "json")
	if err != nil {
		t.Fatalf("secure-display on: %v", err)
	}
	var res map[string]string
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("bad json %q: %v", out, err)
	}
	if res["capture"] != "suppressed" {
		t.Errorf("capture = %q, want suppressed", res["capture"])
	}

	out, err = run(t, "secure-display", "off", "--output", "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"unsuppressed"`) {
		t.Errorf("expected unsuppressed, got %s", out)
	}

	if _, err := run(t, "secure-display", "maybe"); err == nil {
		t.Error("expected error for invalid argument")
	}

	events, err := readAuditLog(filepath.Join(home, ".hostguard", "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(filterEvents(events, "set_secure_display", "true:applied")) != 1 {
		t.Errorf("expected one applied toggle in the audit log, got %+v", events)
	}
}

func TestConfigInitCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Cleanup(func() { configForce = false })

	if _, err := run(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(home, ".hostguard", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := run(t, "config", "init"); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if _, err := run(t, "config", "init", "--force"); err != nil {
		t.Errorf("force: %v", err)
	}
}

func TestRestartCommand_DeniedWithoutConfirmation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Cleanup(func() {
		assumeYes = false
		prompter = approval.Default
	})
	prompter = func() *approval.Prompter {
		return &approval.Prompter{In: strings.NewReader(""), Out: io.Discard, Interactive: func() bool { return false }}
	}

	_, err := run(t, "restart")
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("expected cancellation, got %v", err)
	}
}
