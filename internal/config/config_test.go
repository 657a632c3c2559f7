package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hpungsan/tubestreak/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Scheme != def.Scheme {
		t.Errorf("Scheme = %q, want %q", cfg.Scheme, def.Scheme)
	}
	if cfg.GracePeriodMillis != def.GracePeriodMillis {
		t.Errorf("GracePeriodMillis = %d, want %d", cfg.GracePeriodMillis, def.GracePeriodMillis)
	}
	if cfg.DedupWindowSeconds != def.DedupWindowSeconds {
		t.Errorf("DedupWindowSeconds = %d, want %d", cfg.DedupWindowSeconds, def.DedupWindowSeconds)
	}
	if cfg.BackupKey != def.BackupKey {
		t.Errorf("BackupKey = %q, want %q", cfg.BackupKey, def.BackupKey)
	}
}

func TestLoad_SocketPathResolvedAgainstBaseDir(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := filepath.Join(tmpDir, "host.sock")
	if cfg.SocketPath != want {
		t.Errorf("SocketPath = %q, want %q", cfg.SocketPath, want)
	}
}

func TestLoad_AbsoluteSocketPathKept(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"socket_path": "/run/user/1000/tubestreak.sock"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SocketPath != "/run/user/1000/tubestreak.sock" {
		t.Errorf("SocketPath = %q", cfg.SocketPath)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{
		"scheme": "liftlog",
		"grace_period_ms": 250,
		"dedup_window_seconds": 30,
		"backup_key": "group.liftlog",
		"fallback_command": ["gio", "open"],
		"disabled_tools": ["share_submit"]
	}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scheme != "liftlog" {
		t.Errorf("Scheme = %q, want liftlog", cfg.Scheme)
	}
	if cfg.GracePeriod() != 250*time.Millisecond {
		t.Errorf("GracePeriod() = %v, want 250ms", cfg.GracePeriod())
	}
	if cfg.DedupWindow() != 30*time.Second {
		t.Errorf("DedupWindow() = %v, want 30s", cfg.DedupWindow())
	}
	if cfg.BackupKey != "group.liftlog" {
		t.Errorf("BackupKey = %q", cfg.BackupKey)
	}
	if len(cfg.FallbackCommand) != 2 || cfg.FallbackCommand[0] != "gio" {
		t.Errorf("FallbackCommand = %v", cfg.FallbackCommand)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "share_submit" {
		t.Errorf("DisabledTools = %v", cfg.DisabledTools)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"uppercase scheme", `{"scheme": "TubeStreak"}`},
		{"scheme with colon", `{"scheme": "tube:"}`},
		{"negative grace", `{"grace_period_ms": -1}`},
		{"negative window", `{"dedup_window_seconds": -5}`},
		{"bad log level", `{"log_level": "loud"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			writeConfig(t, tmpDir, tt.body)

			_, err := Load(tmpDir)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Fatalf("Load() error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestValidate_EmptyBackupKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackupKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for empty backup key")
	}

	cfg.BackupDisabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil when backup is disabled", err)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{Scheme: "tubestreak", GracePeriodMillis: 500, DBMaxOpenConns: 5}
	overlay := &Config{GracePeriodMillis: 100}

	result := Merge(base, overlay)

	if result.GracePeriodMillis != 100 {
		t.Errorf("GracePeriodMillis = %d, want 100 (overlay)", result.GracePeriodMillis)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.Scheme != "tubestreak" {
		t.Errorf("Scheme = %q, want tubestreak (base, overlay is empty)", result.Scheme)
	}
}

func TestMerge_BoolOr(t *testing.T) {
	if !Merge(&Config{BackupDisabled: true}, &Config{}).BackupDisabled {
		t.Error("BackupDisabled = false, want true from base")
	}
	if !Merge(&Config{}, &Config{BackupDisabled: true}).BackupDisabled {
		t.Error("BackupDisabled = false, want true from overlay")
	}
}

func TestMerge_FallbackCommandReplaced(t *testing.T) {
	base := &Config{FallbackCommand: []string{"xdg-open"}}
	overlay := &Config{FallbackCommand: []string{"gio", "open"}}

	result := Merge(base, overlay)
	if len(result.FallbackCommand) != 2 || result.FallbackCommand[0] != "gio" {
		t.Errorf("FallbackCommand = %v, want [gio open]", result.FallbackCommand)
	}
}

func TestMerge_ArraysDeduplicated(t *testing.T) {
	base := &Config{DisabledTools: []string{"share_submit", " share_backup "}}
	overlay := &Config{DisabledTools: []string{"share_backup", "", "share_decode"}}

	result := Merge(base, overlay)
	want := []string{"share_submit", "share_backup", "share_decode"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestMergeStringSlice_Empty(t *testing.T) {
	if got := mergeStringSlice(nil, []string{" ", ""}); got != nil {
		t.Errorf("mergeStringSlice() = %v, want nil", got)
	}
}
