package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gzhole/hostguard/internal/platform"
	"github.com/gzhole/hostguard/internal/rootcheck"
)

const (
	DefaultConfigDir  = ".hostguard"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "audit.jsonl"
	DefaultFlagFile   = "display/secure"

	envPrefix = "HOSTGUARD"
)

type Config struct {
	ConfigDir  string         `yaml:"-"`
	ConfigPath string         `yaml:"-"`
	LogPath    string         `yaml:"log_path"`
	Root       RootConfig     `yaml:"root"`
	Display    DisplayConfig  `yaml:"display"`
	Relaunch   RelaunchConfig `yaml:"relaunch"`
	Serve      ServeConfig    `yaml:"serve"`
	Watch      WatchConfig    `yaml:"watch"`
}

// RootConfig tunes the root heuristics.
type RootConfig struct {
	BuildTagMarker string        `yaml:"build_tag_marker"`
	KnownPaths     []string      `yaml:"known_paths"`
	ShellCommand   string        `yaml:"shell_command"`
	ShellTimeout   time.Duration `yaml:"shell_timeout"`
	BuildPropPaths []string      `yaml:"build_prop_paths"`
}

// DisplayConfig locates the capture-suppression flag file.
type DisplayConfig struct {
	FlagPath string `yaml:"flag_path"`
}

// RelaunchConfig controls restart. An empty EntryPoint means the running
// executable.
type RelaunchConfig struct {
	EntryPoint string        `yaml:"entry_point"`
	Args       []string      `yaml:"args"`
	Delay      time.Duration `yaml:"delay"`
}

// ServeConfig controls the read-only posture API.
type ServeConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// WatchConfig controls continuous re-evaluation.
type WatchConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// RootOptions converts the root section into probe options.
func (c *Config) RootOptions() rootcheck.Options {
	return rootcheck.Options{
		BuildTagMarker: c.Root.BuildTagMarker,
		KnownPaths:     c.Root.KnownPaths,
		ShellCommand:   c.Root.ShellCommand,
		ShellTimeout:   c.Root.ShellTimeout,
	}
}

// Defaults returns the built-in configuration rooted at configDir.
func Defaults(configDir string) *Config {
	return &Config{
		ConfigDir:  configDir,
		ConfigPath: filepath.Join(configDir, DefaultConfigFile),
		LogPath:    filepath.Join(configDir, DefaultLogFile),
		Root: RootConfig{
			BuildTagMarker: rootcheck.DefaultBuildTagMarker,
			KnownPaths:     append([]string(nil), rootcheck.DefaultKnownPaths...),
			ShellCommand:   rootcheck.DefaultShellCommand,
			ShellTimeout:   platform.DefaultCommandTimeout,
			BuildPropPaths: append([]string(nil), platform.DefaultBuildPropPaths...),
		},
		Display: DisplayConfig{
			FlagPath: filepath.Join(configDir, DefaultFlagFile),
		},
		Relaunch: RelaunchConfig{
			Delay: 100 * time.Millisecond,
		},
		Serve: ServeConfig{
			Addr:      "127.0.0.1:9477",
			RateLimit: 5,
			Burst:     10,
		},
		Watch: WatchConfig{
			Interval:    30 * time.Second,
			MinInterval: time.Second,
		},
	}
}

// Load resolves ~/.hostguard, reads the config file (when present) and
// applies HOSTGUARD_* environment overrides, e.g. HOSTGUARD_ROOT_SHELL_COMMAND.
// Explicit configPath / logPath arguments win over everything else.
func Load(configPath, logPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	cfg := Defaults(configDir)
	if configPath != "" {
		cfg.ConfigPath = configPath
	}

	if err := cfg.merge(newViper(cfg)); err != nil {
		return nil, err
	}

	if logPath != "" {
		cfg.LogPath = logPath
	}
	return cfg, nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_path", defaults.LogPath)
	v.SetDefault("root.build_tag_marker", defaults.Root.BuildTagMarker)
	v.SetDefault("root.known_paths", defaults.Root.KnownPaths)
	v.SetDefault("root.shell_command", defaults.Root.ShellCommand)
	v.SetDefault("root.shell_timeout", defaults.Root.ShellTimeout)
	v.SetDefault("root.build_prop_paths", defaults.Root.BuildPropPaths)
	v.SetDefault("display.flag_path", defaults.Display.FlagPath)
	v.SetDefault("relaunch.entry_point", defaults.Relaunch.EntryPoint)
	v.SetDefault("relaunch.args", defaults.Relaunch.Args)
	v.SetDefault("relaunch.delay", defaults.Relaunch.Delay)
	v.SetDefault("serve.addr", defaults.Serve.Addr)
	v.SetDefault("serve.rate_limit", defaults.Serve.RateLimit)
	v.SetDefault("serve.burst", defaults.Serve.Burst)
	v.SetDefault("watch.interval", defaults.Watch.Interval)
	v.SetDefault("watch.min_interval", defaults.Watch.MinInterval)
	return v
}

func (c *Config) merge(v *viper.Viper) error {
	if _, err := os.Stat(c.ConfigPath); err == nil {
		v.SetConfigFile(c.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", c.ConfigPath, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config %s: %w", c.ConfigPath, err)
	}

	c.LogPath = v.GetString("log_path")
	c.Root.BuildTagMarker = v.GetString("root.build_tag_marker")
	c.Root.KnownPaths = v.GetStringSlice("root.known_paths")
	c.Root.ShellCommand = v.GetString("root.shell_command")
	c.Root.ShellTimeout = v.GetDuration("root.shell_timeout")
	c.Root.BuildPropPaths = v.GetStringSlice("root.build_prop_paths")
	c.Display.FlagPath = expandHome(v.GetString("display.flag_path"))
	c.Relaunch.EntryPoint = expandHome(v.GetString("relaunch.entry_point"))
	c.Relaunch.Args = v.GetStringSlice("relaunch.args")
	c.Relaunch.Delay = v.GetDuration("relaunch.delay")
	c.Serve.Addr = v.GetString("serve.addr")
	c.Serve.RateLimit = v.GetFloat64("serve.rate_limit")
	c.Serve.Burst = v.GetInt("serve.burst")
	c.Watch.Interval = v.GetDuration("watch.interval")
	c.Watch.MinInterval = v.GetDuration("watch.min_interval")
	c.LogPath = expandHome(c.LogPath)

	return c.validate()
}

func (c *Config) validate() error {
	if c.Root.ShellTimeout <= 0 {
		return fmt.Errorf("root.shell_timeout must be positive, got %s", c.Root.ShellTimeout)
	}
	if c.Relaunch.Delay < 0 {
		return fmt.Errorf("relaunch.delay must not be negative, got %s", c.Relaunch.Delay)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	return nil
}

// WriteDefault renders the built-in configuration to path. An existing file
// is left untouched unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	cfg := Defaults(filepath.Dir(path))
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	header := []byte("# hostguard configuration. Environment variables HOSTGUARD_<SECTION>_<KEY> override these values.\n")
	return os.WriteFile(path, append(header, data...), 0600)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
