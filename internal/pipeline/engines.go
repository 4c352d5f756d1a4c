package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/transcribe"
	"github.com/mstuts/ur-engine/internal/translate"
)

// Engines holds the shared model backend handles. A handle counts as
// acquired after its first successful health probe; success is cached
// for the process lifetime and the handle is shared read-only across
// jobs. Failed probes are not cached, so a backend that comes up
// later (or finishes a weight download) becomes usable without a
// restart.
type Engines struct {
	asr transcribe.Provider
	nmt translate.Provider
	log zerolog.Logger

	mu       sync.Mutex
	asrReady bool
	nmtReady bool
}

// probeTimeout bounds a single backend readiness check.
const probeTimeout = 10 * time.Second

// NewEngines wraps the two backend providers.
func NewEngines(asr transcribe.Provider, nmt translate.Provider, log zerolog.Logger) *Engines {
	return &Engines{asr: asr, nmt: nmt, log: log}
}

// ASR returns the transcription backend, probing it on first use.
func (e *Engines) ASR(ctx context.Context) (transcribe.Provider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.asrReady {
		return e.asr, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := e.asr.Health(probeCtx); err != nil {
		return nil, err
	}

	e.asrReady = true
	e.log.Info().Str("provider", e.asr.Name()).Str("model", e.asr.Model()).Msg("asr backend ready")
	return e.asr, nil
}

// NMT returns the translation backend, probing it on first use.
func (e *Engines) NMT(ctx context.Context) (translate.Provider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.nmtReady {
		return e.nmt, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := e.nmt.Health(probeCtx); err != nil {
		return nil, err
	}

	e.nmtReady = true
	e.log.Info().Str("provider", e.nmt.Name()).Str("model", e.nmt.Model()).Msg("nmt backend ready")
	return e.nmt, nil
}
