package pipeline

import (
	"errors"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/transcribe"
	"github.com/mstuts/ur-engine/internal/translate"
)

// Machine-readable codes for the failure taxonomy. Fatal errors carry
// one of these; degraded jobs carry a warning on the Result instead.
const (
	CodeUnsupportedLanguage    = "unsupported_language"
	CodeUnsupportedAudioFormat = "unsupported_audio_format"
	CodeModelUnavailable       = "model_unavailable"
	CodeDownloadRequired       = "download_required"
	CodeInternal               = "internal"
)

// Classify maps a fatal pipeline error to its taxonomy code.
func Classify(err error) string {
	switch {
	case errors.Is(err, lang.ErrUnsupported):
		return CodeUnsupportedLanguage
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return CodeUnsupportedAudioFormat
	case errors.Is(err, transcribe.ErrUnavailable), errors.Is(err, translate.ErrUnavailable):
		return CodeModelUnavailable
	case errors.Is(err, translate.ErrDownloadRequired):
		return CodeDownloadRequired
	default:
		return CodeInternal
	}
}
