package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gzhole/hostguard/internal/rootcheck"
)

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantDir := filepath.Join(home, DefaultConfigDir)
	if cfg.ConfigDir != wantDir {
		t.Errorf("expected config dir %s, got %s", wantDir, cfg.ConfigDir)
	}
	if info, err := os.Stat(wantDir); err != nil || !info.IsDir() {
		t.Errorf("expected config dir to be created: %v", err)
	}
	if cfg.LogPath != filepath.Join(wantDir, DefaultLogFile) {
		t.Errorf("unexpected log path %s", cfg.LogPath)
	}
	if !reflect.DeepEqual(cfg.Root.KnownPaths, rootcheck.DefaultKnownPaths) {
		t.Errorf("expected default known paths, got %v", cfg.Root.KnownPaths)
	}
	if cfg.Root.ShellCommand != rootcheck.DefaultShellCommand {
		t.Errorf("expected default shell command, got %q", cfg.Root.ShellCommand)
	}
	if cfg.Relaunch.Delay != 100*time.Millisecond {
		t.Errorf("expected 100ms relaunch delay, got %s", cfg.Relaunch.Delay)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "custom.yaml")
	content := `
root:
  known_paths:
    - /sbin/su
    - /system/xbin/daemonsu
  shell_timeout: 500ms
relaunch:
  entry_point: ~/bin/app
  delay: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOSTGUARD_ROOT_SHELL_COMMAND", "/usr/bin/which su")

	cfg, err := Load(path, filepath.Join(home, "explicit.jsonl"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if want := []string{"/sbin/su", "/system/xbin/daemonsu"}; !reflect.DeepEqual(cfg.Root.KnownPaths, want) {
		t.Errorf("known paths = %v, want %v", cfg.Root.KnownPaths, want)
	}
	if cfg.Root.ShellTimeout != 500*time.Millisecond {
		t.Errorf("shell timeout = %s", cfg.Root.ShellTimeout)
	}
	if cfg.Root.ShellCommand != "/usr/bin/which su" {
		t.Errorf("env override not applied, got %q", cfg.Root.ShellCommand)
	}
	if cfg.Relaunch.EntryPoint != filepath.Join(home, "bin", "app") {
		t.Errorf("entry point not expanded: %s", cfg.Relaunch.EntryPoint)
	}
	if cfg.LogPath != filepath.Join(home, "explicit.jsonl") {
		t.Errorf("explicit log path must win, got %s", cfg.LogPath)
	}

	opts := cfg.RootOptions()
	if opts.ShellTimeout != 500*time.Millisecond || len(opts.KnownPaths) != 2 {
		t.Errorf("unexpected root options: %+v", opts)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "bad.yaml")
	if err := os.WriteFile(path, []byte("watch:\n  interval: 0s\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Error("expected validation error for zero watch interval")
	}

	if err := os.WriteFile(path, []byte("root: [unclosed\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Error("expected parse error for malformed yaml")
	}
}

func TestWriteDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "shell_command: /system/xbin/which su") {
		t.Errorf("rendered config missing shell command:\n%s", data)
	}

	if err := WriteDefault(path, false); err == nil {
		t.Error("expected refusal to overwrite without force")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("force overwrite failed: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load of rendered defaults: %v", err)
	}
	if cfg.Root.ShellTimeout != 2*time.Second {
		t.Errorf("round-tripped shell timeout = %s", cfg.Root.ShellTimeout)
	}
}
