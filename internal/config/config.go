// Package config loads jobman's YAML configuration file, following the
// yaml.v3 strict-decode pattern used elsewhere in the retrieval pack for
// typed configuration (nandlabs-golly's config package, and
// yungbote-neurobridge-backend's service configuration) rather than a loose
// map[string]any.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

// EnvConfigHome is the environment variable that, if set, overrides the
// default config directory.
const EnvConfigHome = "JOBMAN_CONFIG_HOME"

const defaultGCExpiryDays = 7

// Sink describes a single notification sink entry as read from
// notification_sinks in config.yml.
type Sink struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Target is interpreted according to Kind: a shell command run as-is
	// with the JSON payload on its stdin for "exec" sinks, a URL for
	// "webhook" sinks.
	Target string `yaml:"target"`
}

// raw mirrors the on-disk YAML shape; fields are pointers so we can tell
// "absent" apart from "zero value" while decoding, and so unknown keys are
// rejected by yaml.v3's KnownFields.
type raw struct {
	StoragePath       *string `yaml:"storage_path"`
	GCExpiryDays      *int    `yaml:"gc_expiry_days"`
	NotificationSinks []Sink  `yaml:"notification_sinks"`
}

// Config is jobman's fully-resolved, defaulted configuration.
type Config struct {
	StoragePath       string
	GCExpiry          time.Duration
	NotificationSinks []Sink

	DBPath    string
	StdioPath string
}

// Load reads the configuration file at $JOBMAN_CONFIG_HOME/config.yml (or
// ~/.config/jobman/config.yml if unset), applying defaults for any absent
// key. An unknown key, or a file that fails to parse, is a Config-kind
// error.
func Load() (*Config, error) {
	path, err := filePath()
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Config, err, "resolve config path")
	}

	r, err := loadRaw(path)
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Config, err, fmt.Sprintf("load config file %s", path))
	}

	return resolve(r)
}

func filePath() (string, error) {
	home := os.Getenv(EnvConfigHome)
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		home = filepath.Join(userHome, ".config", "jobman")
	}
	return filepath.Join(home, "config.yml"), nil
}

func loadRaw(path string) (*raw, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &raw{}, nil
	}
	if err != nil {
		return nil, err
	}

	var r raw
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func resolve(r *raw) (*Config, error) {
	storagePath := "~/.local/share/jobman"
	if r.StoragePath != nil {
		storagePath = *r.StoragePath
	}
	expanded, err := expandHome(storagePath)
	if err != nil {
		return nil, err
	}

	gcDays := defaultGCExpiryDays
	if r.GCExpiryDays != nil {
		gcDays = *r.GCExpiryDays
	}

	sinks := r.NotificationSinks
	if sinks == nil {
		sinks = []Sink{}
	}

	stdioPath := filepath.Join(expanded, "stdio")
	if err := os.MkdirAll(stdioPath, 0o755); err != nil {
		return nil, err
	}

	return &Config{
		StoragePath:       expanded,
		GCExpiry:          time.Duration(gcDays) * 24 * time.Hour,
		NotificationSinks: sinks,
		DBPath:            filepath.Join(expanded, "db"),
		StdioPath:         stdioPath,
	}, nil
}

func expandHome(p string) (string, error) {
	if p == "~" || len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if p == "~" {
			return home, nil
		}
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
