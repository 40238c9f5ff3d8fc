package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the orchestrator's on-disk configuration.
type Config struct {
	Addr   string `toml:"addr"`
	DBPath string `toml:"db_path"`

	Pipeline PipelineConfig `toml:"pipeline"`
	Video    VideoConfig    `toml:"video"`
}

type PipelineConfig struct {
	MaxHops           int     `toml:"max_hops"`
	StageTimeoutMS    int     `toml:"stage_timeout_ms"`
	MaxRepairAttempts int     `toml:"max_repair_attempts"`
	FaultRate         float64 `toml:"fault_rate"`
	Seed              int64   `toml:"seed"`
}

type VideoConfig struct {
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	FPS           int    `toml:"fps"`
	OutputBaseURL string `toml:"output_base_url"`
}

func (p PipelineConfig) StageTimeout() time.Duration {
	return time.Duration(p.StageTimeoutMS) * time.Millisecond
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:   "127.0.0.1:8085",
		DBPath: "~/.vidsmith/tasks.db",
		Pipeline: PipelineConfig{
			MaxHops:           16,
			StageTimeoutMS:    30000,
			MaxRepairAttempts: 3,
		},
		Video: VideoConfig{
			Width:         1920,
			Height:        1080,
			FPS:           30,
			OutputBaseURL: "builds",
		},
	}
}

// DefaultPath returns the conventional config file location under the user's
// home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vidsmith.toml"
	}
	return filepath.Join(home, ".vidsmith", "config.toml")
}

// Load reads TOML configuration from path. A missing file yields defaults;
// explicit values override defaults field by field.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.DBPath = ExpandHome(cfg.DBPath)
	return cfg, nil
}

// ExpandHome resolves a leading ~/ against the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
