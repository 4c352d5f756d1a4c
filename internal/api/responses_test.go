package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusTeapot, map[string]int{"n": 42})
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["n"] != 42 {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWriteErrorCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorCode(rec, http.StatusBadRequest, "unsupported_language", "unsupported language: fr")
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "unsupported_language" || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Pagination
		wantErr bool
	}{
		{"defaults", "", Pagination{Limit: 50, Offset: 0}, false},
		{"explicit", "?limit=10&offset=20", Pagination{Limit: 10, Offset: 20}, false},
		{"zero_limit", "?limit=0", Pagination{}, true},
		{"negative_offset", "?offset=-5", Pagination{}, true},
		{"non_numeric", "?limit=abc", Pagination{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/"+tt.query, nil)
			got, err := ParsePagination(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestQueryTime(t *testing.T) {
	r := httptest.NewRequest("GET", "/?from=2026-08-01T00:00:00Z&bad=yesterday", nil)
	if ts, ok := QueryTime(r, "from"); !ok || ts.Year() != 2026 {
		t.Errorf("from = %v, %v", ts, ok)
	}
	if _, ok := QueryTime(r, "bad"); ok {
		t.Error("malformed time should not parse")
	}
	if _, ok := QueryTime(r, "missing"); ok {
		t.Error("missing param should not parse")
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		original, view, want string
	}{
		{"clip.mp3", "urdu", "clip_urdu.txt"},
		{"no-ext", "native", "no-ext_native.txt"},
		{"", "english", "transcript_english.txt"},
	}
	for _, tt := range tests {
		if got := exportFilename(tt.original, tt.view); got != tt.want {
			t.Errorf("exportFilename(%q, %q) = %q, want %q", tt.original, tt.view, got, tt.want)
		}
	}
}
