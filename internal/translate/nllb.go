package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NLLBClient calls an NLLB-200 serving endpoint (nllb-serve or
// compatible) over JSON.
type NLLBClient struct {
	baseURL string
	model   string // e.g. "nllb-200-distilled-600M"
	timeout time.Duration
	client  *http.Client
}

type nllbRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type nllbResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error"`
}

type nllbHealth struct {
	Status string `json:"status"` // "ok" or "downloading"
	Model  string `json:"model"`
}

// NewNLLBClient creates an NLLB HTTP client. baseURL is the server
// root, e.g. "http://localhost:6060".
func NewNLLBClient(baseURL, model string, timeout time.Duration) *NLLBClient {
	return &NLLBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (nc *NLLBClient) Name() string  { return "nllb" }
func (nc *NLLBClient) Model() string { return nc.model }

// Translate sends one text to POST /translate. A refused connection
// maps to ErrUnavailable; a 503 with a downloading status maps to
// ErrDownloadRequired.
func (nc *NLLBClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if source == target {
		return text, nil
	}

	payload, err := json.Marshal(nllbRequest{Text: text, Source: source, Target: target})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nc.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := nc.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		if isDownloading(body) {
			return "", fmt.Errorf("%w (model %s)", ErrDownloadRequired, nc.model)
		}
		return "", fmt.Errorf("%w: status 503", ErrUnavailable)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("nllb API error (status %d): %s", resp.StatusCode, truncate(body, 200))
	}

	var result nllbResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("nllb: %s", result.Error)
	}

	return strings.TrimSpace(result.Translation), nil
}

// TranslateBatch translates texts one by one. The serving endpoint
// batches internally; a request per segment keeps timestamps aligned
// without a custom wire format.
func (nc *NLLBClient) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		translated, err := nc.Translate(ctx, text, source, target)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		out[i] = translated
	}
	return out, nil
}

// Health probes GET /health.
func (nc *NLLBClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, nc.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := nc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable && isDownloading(body) {
		return fmt.Errorf("%w (model %s)", ErrDownloadRequired, nc.model)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func isDownloading(body []byte) bool {
	var h nllbHealth
	if err := json.Unmarshal(body, &h); err == nil && h.Status == "downloading" {
		return true
	}
	return bytes.Contains(bytes.ToLower(body), []byte("download"))
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
