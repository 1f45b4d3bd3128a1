// Package config holds the settings of a sshchic run and loads them from
// defaults, an optional YAML file, and the environment. Command line flags
// are applied on top by cmd/sshchic.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/pattern"
	"github.com/dreamware/sshchic/internal/search"
	"github.com/dreamware/sshchic/internal/storage"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Monitor configures the rate monitor.
type Monitor struct {
	Interval time.Duration `yaml:"interval"`
	Window   time.Duration `yaml:"window"`
}

// Config is the complete run configuration.
type Config struct {
	Regex             string  `yaml:"regex"`
	FingerprintFormat string  `yaml:"fingerprint_format"`
	Output            string  `yaml:"output"`
	Dir               string  `yaml:"dir"`
	Comment           string  `yaml:"comment"`
	Journal           string  `yaml:"journal"`
	Webhook           string  `yaml:"webhook"`
	Monitor           Monitor `yaml:"monitor"`
	MaxKeys           uint64  `yaml:"max_keys"`
	Workers           int     `yaml:"workers"`
	Insensitive       bool    `yaml:"insensitive"`
	Streaming         bool    `yaml:"streaming"`
	Fingerprint       bool    `yaml:"fingerprint"`
	JSON              bool    `yaml:"json"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		FingerprintFormat: string(keygen.FormatBase64),
		Output:            storage.DefaultKeyName,
		Dir:               ".",
		Comment:           keygen.DefaultComment,
		Monitor: Monitor{
			Interval: search.DefaultInterval,
			Window:   search.DefaultWindow,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and then with the environment.
//
// Environment:
//   - SSHCHIC_WORKERS: worker count
//   - SSHCHIC_JOURNAL: journal database path
//   - SSHCHIC_WEBHOOK: webhook URL
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := getenv("SSHCHIC_WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: SSHCHIC_WORKERS=%q is not a number", ErrInvalid, v)
		}
		cfg.Workers = n
	}
	cfg.Journal = getenv("SSHCHIC_JOURNAL", cfg.Journal)
	cfg.Webhook = getenv("SSHCHIC_WEBHOOK", cfg.Webhook)
	return cfg, nil
}

// Validate checks the configuration without compiling the pattern.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := keygen.ParseFingerprintFormat(c.FingerprintFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output name must not be empty"))
	}
	if slices.Contains([]string{".", "..", "/"}, c.Output) {
		errs = append(errs, fmt.Errorf("output name %q is not a file name", c.Output))
	}
	if c.Monitor.Interval <= 0 {
		errs = append(errs, fmt.Errorf("monitor interval must be positive, got %v", c.Monitor.Interval))
	}
	if c.Monitor.Window <= 0 {
		errs = append(errs, fmt.Errorf("monitor window must be positive, got %v", c.Monitor.Window))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Matcher compiles the configured pattern for the configured target.
func (c Config) Matcher() (*pattern.Matcher, error) {
	return pattern.Compile(c.Regex, c.Insensitive, pattern.TargetFor(c.Fingerprint))
}

// Encoder returns the key encoder for the configured comment and format.
func (c Config) Encoder() keygen.Encoder {
	format, _ := keygen.ParseFingerprintFormat(c.FingerprintFormat)
	return keygen.Encoder{Comment: c.Comment, Format: format}
}

// SearchOptions converts the configuration into coordinator options.
func (c Config) SearchOptions() search.Options {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return search.Options{
		Encoder:       c.Encoder(),
		Workers:       workers,
		MaxCandidates: c.MaxKeys,
		Interval:      c.Monitor.Interval,
		Window:        c.Monitor.Window,
		Streaming:     c.Streaming,
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
