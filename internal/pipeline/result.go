package pipeline

import (
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

// Request describes one transcription job.
type Request struct {
	AudioPath string
	AudioKey  string   // storage key of the archived upload; "" for watch-folder files
	Filename  string   // original upload name, for display and history
	Language  lang.Tag // explicit tag or lang.Auto
	ModelSize string   // ASR model size; "" = configured default
}

// Result is the completed (possibly degraded) output bundle.
// Immutable once returned.
type Result struct {
	NativeText  string `json:"native_text"`
	UrduText    string `json:"urdu_text"`
	EnglishText string `json:"english_text"`

	NativeSegments  []transcribe.Segment `json:"native_segments,omitempty"`
	UrduSegments    []transcribe.Segment `json:"urdu_segments,omitempty"`
	EnglishSegments []transcribe.Segment `json:"english_segments,omitempty"`

	// DetectedLanguage is the tag the job actually ran with: the
	// user's selection, or the resolved detection for auto.
	DetectedLanguage lang.Tag `json:"detected_language"`

	// UrduUnavailable marks a degraded job: the translation stage
	// failed and UrduText is empty rather than guessed.
	UrduUnavailable bool `json:"urdu_unavailable,omitempty"`

	// UrduIsNative marks the Punjabi case: the Urdu field carries the
	// untranslated Punjabi transcript.
	UrduIsNative bool `json:"urdu_is_native,omitempty"`

	// Warning is a user-readable message for degraded jobs.
	Warning string `json:"warning,omitempty"`

	AudioDuration float64 `json:"audio_duration,omitempty"` // seconds
	ModelSize     string  `json:"model_size,omitempty"`
}

// Degraded reports whether the job completed with a warning.
func (r *Result) Degraded() bool {
	return r.Warning != ""
}
