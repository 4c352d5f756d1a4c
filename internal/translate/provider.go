// Package translate reaches an external NLLB serving endpoint to turn
// native-script transcripts into Urdu.
package translate

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the NMT backend cannot be reached
// or failed to load its model. Recoverable: the job degrades to a
// transcript-only result instead of failing.
var ErrUnavailable = errors.New("translation model unavailable")

// ErrDownloadRequired is returned while the backend is still fetching
// model weights (first-use network download). Recoverable like
// ErrUnavailable, with a distinct message so the user knows retrying
// later will work.
var ErrDownloadRequired = errors.New("translation model download pending")

// Provider is the interface for text-to-text translation backends.
// Source and target are model-specific codes (e.g. snd_Arab, urd_Arab).
type Provider interface {
	// Translate returns text translated from source to target.
	// Identical source and target pass the text through unchanged
	// without a backend call.
	Translate(ctx context.Context, text, source, target string) (string, error)

	// TranslateBatch translates each string independently, preserving
	// order. Used for segment-level translation.
	TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error)

	// Health reports backend readiness. Returns ErrDownloadRequired
	// while weights are still downloading.
	Health(ctx context.Context) error

	Name() string  // "nllb"
	Model() string // model identifier for logs
}
