// Package config loads the optional .codeatlas.yaml settings file the
// CLI layers beneath its flags. Engine packages never read it; they
// take analysis.Options directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"codeatlas/analysis"
)

// FileName is the per-project settings file looked up in the analyzed
// root.
const FileName = ".codeatlas.yaml"

// Duration wraps time.Duration so YAML values can be written as "45s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Analysis struct {
		SkipDirs    []string `yaml:"skip_dirs"`
		MaxFileSize int64    `yaml:"max_file_size"`
		Timeout     Duration `yaml:"timeout"`
		Workers     int      `yaml:"workers"`
	} `yaml:"analysis"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
}

// Load reads root/.codeatlas.yaml. A missing file yields the zero
// config; a present but malformed one is an error. A .env file is
// loaded first and CODEATLAS_* variables override the file settings.
func Load(root string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileName, err)
		}
	}

	if v := os.Getenv("CODEATLAS_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CODEATLAS_TIMEOUT: %w", err)
		}
		cfg.Analysis.Timeout = Duration(parsed)
	}
	if v := os.Getenv("CODEATLAS_OUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	return &cfg, nil
}

// Options converts the file settings into engine options.
func (c *Config) Options() analysis.Options {
	return analysis.Options{
		MaxFileSizeBytes: c.Analysis.MaxFileSize,
		SkipDirs:         c.Analysis.SkipDirs,
		Timeout:          time.Duration(c.Analysis.Timeout),
		Workers:          c.Analysis.Workers,
	}
}
