package transcribe

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the ASR backend cannot be reached
// or refuses to serve the requested model. Fatal to the job: without
// a transcript there is no output at all.
var ErrUnavailable = errors.New("transcription model unavailable")

// Provider is the interface for speech-to-text backends.
type Provider interface {
	// Transcribe produces native-script text in the hinted language.
	// An empty language hint asks the backend to detect it.
	Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error)

	// TranslateToEnglish runs the backend's built-in translate task,
	// producing an English rendering of the same audio.
	TranslateToEnglish(ctx context.Context, audioPath string, opts Opts) (*Response, error)

	// Health reports whether the backend is reachable and serving.
	Health(ctx context.Context) error

	Name() string  // "whisper"
	Model() string // default model identifier for logs
}

// Opts are per-request options.
type Opts struct {
	Language    string  // Whisper language tag; "" = auto-detect
	Model       string  // model size override; "" = provider default
	Temperature float64 // sampling temperature
	BeamSize    int     // 0 = server default
	Prompt      string  // initial prompt / domain vocabulary
}

// Response is the common transcription result from any provider.
type Response struct {
	Text                string
	Language            string  // detected or confirmed language tag
	LanguageProbability float64 // detection confidence; 0 if not reported
	Duration            float64 // audio duration in seconds
	Segments            []Segment
}

// Segment is a timestamped span of transcript text.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}
