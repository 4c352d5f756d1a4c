// Package storage keeps processed audio files: on local disk always,
// mirrored to an S3-compatible archive when one is configured.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/config"
)

// AudioStore abstracts audio file storage backends.
type AudioStore interface {
	// Save stores audio data. key format: {YYYY-MM-DD}/{unique}_{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// URL returns a presigned URL for the audio file.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the audio file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an audio file exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates an AudioStore based on config: local-only, or local
// primary with S3 archive. The returned pruner (nil when retention is
// off) must be started and stopped by the caller.
func New(cfg *config.Config, log zerolog.Logger) (AudioStore, *Pruner, error) {
	local := NewLocalStore(cfg.AudioDir)

	if !cfg.S3Enabled() {
		var pruner *Pruner
		if cfg.AudioRetention > 0 {
			pruner = NewPruner(cfg.AudioDir, cfg.AudioRetention, nil, log)
		}
		return local, pruner, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.S3Bucket, cfg.S3Endpoint, err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Str("endpoint", cfg.S3Endpoint).Msg("S3 connection verified")

	tiered := NewTieredStore(s3store, local, log)

	var pruner *Pruner
	if cfg.AudioRetention > 0 {
		pruner = NewPruner(cfg.AudioDir, cfg.AudioRetention, s3store, log)
	}
	return tiered, pruner, nil
}
