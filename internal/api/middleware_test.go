package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// passthrough answers 200 so middleware behavior is the only variable.
var passthrough = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func middlewareGet(mw func(http.Handler) http.Handler, target string, set func(*http.Request)) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", target, nil)
	if set != nil {
		set(req)
	}
	mw(passthrough).ServeHTTP(rec, req)
	return rec
}

func TestRequestID_Generated(t *testing.T) {
	rec := middlewareGet(RequestID, "/api/v1/jobs/current", nil)
	if id := rec.Header().Get("X-Request-ID"); len(id) != 16 {
		t.Errorf("generated id = %q, want 16 hex chars", id)
	}
}

func TestRequestID_CallerProvided(t *testing.T) {
	rec := middlewareGet(RequestID, "/api/v1/jobs/current", func(r *http.Request) {
		r.Header.Set("X-Request-ID", "upstream-7f3a")
	})
	if id := rec.Header().Get("X-Request-ID"); id != "upstream-7f3a" {
		t.Errorf("id = %q, want the caller's id echoed back", id)
	}
}

func TestCORSWithOrigins(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantOrigin  string
		wantServing bool
	}{
		{"open_allows_all", nil, "https://transcripts.example", "GET", http.StatusOK, "*", true},
		{"listed_origin_echoed", []string{"https://transcripts.example"}, "https://transcripts.example", "GET", http.StatusOK, "https://transcripts.example", true},
		{"unlisted_origin_served_without_cors", []string{"https://transcripts.example"}, "https://other.example", "GET", http.StatusOK, "", true},
		{"unlisted_preflight_refused", []string{"https://transcripts.example"}, "https://other.example", "OPTIONS", http.StatusForbidden, "", false},
		{"open_preflight_short_circuits", nil, "https://transcripts.example", "OPTIONS", http.StatusNoContent, "*", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/v1/languages", nil)
			req.Header.Set("Origin", tt.origin)
			CORSWithOrigins(tt.allowed)(inner).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
			if reached != tt.wantServing {
				t.Errorf("handler reached = %v, want %v", reached, tt.wantServing)
			}
		})
	}
}

func TestCORSWithOrigins_VariesOnOrigin(t *testing.T) {
	rec := middlewareGet(CORSWithOrigins([]string{"https://transcripts.example"}), "/api/v1/languages", func(r *http.Request) {
		r.Header.Set("Origin", "https://transcripts.example")
	})
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("echoed origin must carry Vary: Origin")
	}
}

func TestRateLimiter_BurstThenBlocked(t *testing.T) {
	handler := RateLimiter(1, 2)(passthrough)
	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/transcriptions", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send(); rec.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status = %d", i, rec.Code)
		}
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 once the burst is spent", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("429 response missing Retry-After")
	}
}

func TestRateLimiter_BucketsPerClientIP(t *testing.T) {
	handler := RateLimiter(1, 1)(passthrough)
	send := func(addr string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/transcriptions", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	send("203.0.113.9:40000")
	if code := send("203.0.113.9:40001"); code != http.StatusTooManyRequests {
		t.Errorf("same ip, new port: status = %d, want 429", code)
	}
	if code := send("203.0.113.10:40000"); code != http.StatusOK {
		t.Errorf("different ip: status = %d, want its own bucket", code)
	}
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name  string
		token string
		set   func(*http.Request)
		want  int
	}{
		{"no_token_configured_open", "", nil, http.StatusOK},
		{"header_match", "s3cret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, http.StatusOK},
		{"header_mismatch", "s3cret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"missing_credentials", "s3cret", nil, http.StatusUnauthorized},
		{"basic_scheme_rejected", "s3cret", func(r *http.Request) { r.Header.Set("Authorization", "Basic czNjcmV0") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := middlewareGet(BearerAuth(tt.token), "/api/v1/jobs/current", tt.set)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

// EventSource cannot set headers, so the stream endpoint accepts the
// token as a query parameter.
func TestBearerAuth_QueryTokenForSSE(t *testing.T) {
	rec := middlewareGet(BearerAuth("s3cret"), "/api/v1/events/stream?token=s3cret", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want query token accepted", rec.Code)
	}
	rec = middlewareGet(BearerAuth("s3cret"), "/api/v1/events/stream?token=nope", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want wrong query token rejected", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	if rec := middlewareGet(RequireAuth(""), "/api/v1/query", nil); rec.Code != http.StatusForbidden {
		t.Errorf("unconfigured token: status = %d, want 403", rec.Code)
	}
	if rec := middlewareGet(RequireAuth("s3cret"), "/api/v1/query", nil); rec.Code != http.StatusOK {
		t.Errorf("configured token: status = %d, want pass-through", rec.Code)
	}
}

func TestRecoverer(t *testing.T) {
	if rec := middlewareGet(Recoverer, "/api/v1/health", nil); rec.Code != http.StatusOK {
		t.Errorf("normal request: status = %d", rec.Code)
	}

	panicker := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("segment index out of range")
	})
	rec := httptest.NewRecorder()
	Recoverer(panicker).ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/jobs", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("panic response is not JSON: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("body = %v", body)
	}
}
