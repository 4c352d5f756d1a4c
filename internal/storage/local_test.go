package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLocalStore_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)
	ctx := context.Background()

	key := "2026-08-30/abc123_clip.mp3"
	if err := s.Save(ctx, key, []byte("audio-bytes"), "audio/mpeg"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !s.Exists(ctx, key) {
		t.Error("Exists = false after Save")
	}
	if got := s.LocalPath(key); got != filepath.Join(dir, key) {
		t.Errorf("LocalPath = %q", got)
	}

	r, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "audio-bytes" {
		t.Errorf("read back %q", data)
	}

	// No stray temp files left behind.
	entries, _ := os.ReadDir(filepath.Join(dir, "2026-08-30"))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}

	if url, err := s.URL(ctx, key); err != nil || url != "" {
		t.Errorf("URL = (%q, %v), want empty for local store", url, err)
	}
	if s.Type() != "local" {
		t.Errorf("Type = %q", s.Type())
	}
}

func TestLocalStore_MissingKey(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if s.Exists(ctx, "2026-01-01/nope.wav") {
		t.Error("Exists = true for missing key")
	}
	if got := s.LocalPath("2026-01-01/nope.wav"); got != "" {
		t.Errorf("LocalPath = %q, want empty", got)
	}
	if _, err := s.Open(ctx, "2026-01-01/nope.wav"); err == nil {
		t.Error("Open of missing key should fail")
	}
}

func TestPruner_EvictsOldFiles(t *testing.T) {
	dir := t.TempDir()
	dateDir := filepath.Join(dir, "2026-01-01")
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		t.Fatal(err)
	}

	oldFile := filepath.Join(dateDir, "old.mp3")
	if err := os.WriteFile(oldFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	freshFile := filepath.Join(dir, "fresh.mp3")
	if err := os.WriteFile(freshFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPruner(dir, 24*time.Hour, nil, zerolog.Nop())
	p.prune()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("expired file not pruned")
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Error("fresh file should survive pruning")
	}
	// Emptied date directory is removed too.
	if _, err := os.Stat(dateDir); !os.IsNotExist(err) {
		t.Error("empty date directory not removed")
	}
}

func TestHumanizeBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := humanizeBytes(tt.in); got != tt.want {
			t.Errorf("humanizeBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
