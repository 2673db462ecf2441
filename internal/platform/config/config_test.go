package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != filepath.Join(dir, "pixelbooth.db") {
		t.Fatalf("unexpected db path: %s", cfg.DBPath)
	}
	if cfg.Kiosk.IdleTimeoutSeconds != 60 || cfg.Kiosk.GenerationPoll != 3*time.Second {
		t.Fatalf("unexpected kiosk defaults: %+v", cfg.Kiosk)
	}
	if cfg.Generation.ImageCount != 4 {
		t.Fatalf("expected 4 images, got %d", cfg.Generation.ImageCount)
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	raw := "kiosk:\n  idle_timeout_seconds: 90\n  print_grace: 1s\ngeneration:\n  image_count: 2\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PIXELBOOTH_GENERATION_IMAGE_COUNT", "3")

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Kiosk.IdleTimeoutSeconds != 90 {
		t.Fatalf("file value not applied: %d", cfg.Kiosk.IdleTimeoutSeconds)
	}
	if cfg.Kiosk.PrintGrace != time.Second {
		t.Fatalf("duration not parsed: %v", cfg.Kiosk.PrintGrace)
	}
	if cfg.Generation.ImageCount != 3 {
		t.Fatalf("environment should win over file: %d", cfg.Generation.ImageCount)
	}
	if cfg.Generation.Width != 1024 {
		t.Fatalf("untouched default lost: %d", cfg.Generation.Width)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	raw := "print:\n  backend: http\ngeneration:\n  image_count: 0\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(dir, "")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"print.endpoint", "image_count"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRequiresDataDir(t *testing.T) {
	t.Parallel()

	if _, err := Load("", ""); err == nil {
		t.Fatalf("expected error for empty data dir")
	}
}
