package config

import (
	"os"
	"path/filepath"
	"testing"

	"tokentrader/internal/domain/model"
)

func writeMode(t *testing.T, path, mode string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(`mode = "`+mode+`"`+"\n"), 0o644); err != nil {
		t.Fatalf("write mode file: %v", err)
	}
}

func TestModeFileFlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.toml")
	p := NewFileModeProvider(path)

	writeMode(t, path, "paper")
	if got := p.Mode(); got != model.ModePaper {
		t.Fatalf("expected paper, got %q", got)
	}

	// Flip to real without restarting.
	writeMode(t, path, "real")
	if got := p.Mode(); got != model.ModeReal {
		t.Fatalf("expected real after flip, got %q", got)
	}

	// Unknown values fall back to the safe mode.
	writeMode(t, path, "yolo")
	if got := p.Mode(); got != model.ModePaper {
		t.Fatalf("expected paper for unknown mode, got %q", got)
	}
}

func TestModeFileMissingKeepsLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.toml")
	p := NewFileModeProvider(path)

	// No file yet: the initial mode is paper.
	if got := p.Mode(); got != model.ModePaper {
		t.Fatalf("expected paper with no file, got %q", got)
	}

	writeMode(t, path, "real")
	if got := p.Mode(); got != model.ModeReal {
		t.Fatalf("expected real, got %q", got)
	}

	// Deleting the file keeps the last known mode rather than silently
	// dropping back to paper.
	os.Remove(path)
	if got := p.Mode(); got != model.ModeReal {
		t.Fatalf("expected last known real, got %q", got)
	}
}
