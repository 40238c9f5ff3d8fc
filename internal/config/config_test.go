package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8085" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Pipeline.MaxHops != 16 || cfg.Pipeline.MaxRepairAttempts != 3 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.StageTimeout() != 30*time.Second {
		t.Errorf("stage timeout = %v", cfg.Pipeline.StageTimeout())
	}
	if cfg.Video.Width != 1920 || cfg.Video.Height != 1080 || cfg.Video.FPS != 30 {
		t.Errorf("video defaults = %+v", cfg.Video)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
addr = "0.0.0.0:9000"
db_path = "/tmp/vidsmith-test.db"

[pipeline]
max_hops = 32
stage_timeout_ms = 5000
fault_rate = 0.25

[video]
fps = 60
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" || cfg.DBPath != "/tmp/vidsmith-test.db" {
		t.Errorf("top-level overrides lost: %+v", cfg)
	}
	if cfg.Pipeline.MaxHops != 32 || cfg.Pipeline.StageTimeout() != 5*time.Second || cfg.Pipeline.FaultRate != 0.25 {
		t.Errorf("pipeline overrides lost: %+v", cfg.Pipeline)
	}
	// untouched fields keep their defaults
	if cfg.Pipeline.MaxRepairAttempts != 3 {
		t.Errorf("max_repair_attempts = %d", cfg.Pipeline.MaxRepairAttempts)
	}
	if cfg.Video.FPS != 60 || cfg.Video.Width != 1920 {
		t.Errorf("video = %+v", cfg.Video)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("addr = ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := ExpandHome("~/x/y.db"); got != filepath.Join(home, "x/y.db") {
		t.Errorf("ExpandHome(~/x/y.db) = %q", got)
	}
	if got := ExpandHome("/abs/path.db"); got != "/abs/path.db" {
		t.Errorf("absolute path changed: %q", got)
	}
}
