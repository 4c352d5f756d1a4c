package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WhisperClient calls an OpenAI-compatible speech API
// (/v1/audio/transcriptions and /v1/audio/translations). Works with
// speaches, faster-whisper-server, or any compatible endpoint.
type WhisperClient struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

// whisperResponse is the parsed verbose_json response.
type whisperResponse struct {
	Text                string    `json:"text"`
	Language            string    `json:"language"`
	LanguageProbability float64   `json:"language_probability"`
	Duration            float64   `json:"duration"`
	Segments            []Segment `json:"segments"`
}

// NewWhisperClient creates a Whisper HTTP client. baseURL is the
// server root, e.g. "http://localhost:8000".
func NewWhisperClient(baseURL, model string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (wc *WhisperClient) Name() string  { return "whisper" }
func (wc *WhisperClient) Model() string { return wc.model }

// Transcribe sends audio to /v1/audio/transcriptions. The language
// field is omitted when empty so the server runs detection and
// reports the detected tag in the response.
func (wc *WhisperClient) Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error) {
	return wc.request(ctx, "/v1/audio/transcriptions", audioPath, opts, true)
}

// TranslateToEnglish sends audio to /v1/audio/translations, the
// built-in translate-to-English task.
func (wc *WhisperClient) TranslateToEnglish(ctx context.Context, audioPath string, opts Opts) (*Response, error) {
	return wc.request(ctx, "/v1/audio/translations", audioPath, opts, false)
}

// Health probes the models endpoint. A refused connection or 5xx
// means the backend cannot serve and maps to ErrUnavailable.
func (wc *WhisperClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wc.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := wc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (wc *WhisperClient) request(ctx context.Context, endpoint, audioPath string, opts Opts, sendLanguage bool) (*Response, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = wc.model
	}
	if model != "" {
		w.WriteField("model", model)
	}

	// Translations endpoint has no language field; transcription omits
	// it when auto-detecting.
	if sendLanguage && opts.Language != "" {
		w.WriteField("language", opts.Language)
	}

	w.WriteField("temperature", fmt.Sprintf("%.2f", opts.Temperature))
	w.WriteField("response_format", "verbose_json")

	if opts.BeamSize > 0 {
		w.WriteField("beam_size", fmt.Sprintf("%d", opts.BeamSize))
	}
	if opts.Prompt != "" {
		w.WriteField("prompt", opts.Prompt)
	}

	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := wc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(body, 200))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API error (status %d): %s", resp.StatusCode, truncate(body, 200))
	}

	var result whisperResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Response{
		Text:                strings.TrimSpace(result.Text),
		Language:            result.Language,
		LanguageProbability: result.LanguageProbability,
		Duration:            result.Duration,
		Segments:            result.Segments,
	}, nil
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
