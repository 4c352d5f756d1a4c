package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/database"
	"github.com/mstuts/ur-engine/internal/format"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/storage"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

// TranscriptStore is the slice of the history database these
// endpoints read and write. *database.DB satisfies it.
type TranscriptStore interface {
	ListTranscriptions(ctx context.Context, filter database.TranscriptionFilter) ([]database.TranscriptionAPI, int, error)
	GetTranscription(ctx context.Context, id int64) (*database.TranscriptionAPI, error)
	DeleteTranscription(ctx context.Context, id int64) error
}

// TranscriptionsHandler serves the persisted transcript history and
// the archived source audio.
type TranscriptionsHandler struct {
	db    TranscriptStore
	audio storage.AudioStore
	log   zerolog.Logger
}

func NewTranscriptionsHandler(db TranscriptStore, audioStore storage.AudioStore, log zerolog.Logger) *TranscriptionsHandler {
	return &TranscriptionsHandler{
		db:    db,
		audio: audioStore,
		log:   log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers transcript history routes.
func (h *TranscriptionsHandler) Routes(r chi.Router) {
	r.Get("/transcriptions", h.List)
	r.Get("/transcriptions/{id}", h.Get)
	r.Delete("/transcriptions/{id}", h.Delete)
	r.Get("/transcriptions/{id}/export", h.Export)
	r.Get("/transcriptions/{id}/audio", h.Audio)
}

// List handles GET /api/v1/transcriptions with language, q, from, to,
// limit, and offset query parameters.
func (h *TranscriptionsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := database.TranscriptionFilter{
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if v, ok := QueryString(r, "language"); ok {
		if !lang.Known(lang.Tag(v)) {
			WriteError(w, http.StatusBadRequest, "unsupported language: "+v)
			return
		}
		filter.Language = v
	}
	if v, ok := QueryString(r, "q"); ok {
		filter.Search = v
	}
	if t, ok := QueryTime(r, "from"); ok {
		filter.StartTime = &t
	}
	if t, ok := QueryTime(r, "to"); ok {
		filter.EndTime = &t
	}

	rows, total, err := h.db.ListTranscriptions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list transcriptions")
		WriteError(w, http.StatusInternalServerError, "failed to list transcriptions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"transcriptions": rows,
		"total":          total,
		"limit":          p.Limit,
		"offset":         p.Offset,
	})
}

// Get handles GET /api/v1/transcriptions/{id}.
func (h *TranscriptionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid transcription id")
		return
	}

	t, err := h.db.GetTranscription(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "transcription not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load transcription")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/v1/transcriptions/{id}.
func (h *TranscriptionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid transcription id")
		return
	}

	if err := h.db.DeleteTranscription(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "transcription not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to delete transcription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/transcriptions/{id}/export as plain text.
// Query params: view (native|urdu|english, default native) and format
// (plain|paragraphs|timestamped, default plain). Paragraph and
// timestamp rendering needs segment timings, which are stored for the
// native view only.
func (h *TranscriptionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid transcription id")
		return
	}

	t, err := h.db.GetTranscription(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "transcription not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load transcription")
		return
	}

	view := "native"
	if v, ok := QueryString(r, "view"); ok {
		view = v
	}
	var text string
	switch view {
	case "native":
		text = t.NativeText
	case "urdu":
		text = t.UrduText
	case "english":
		text = t.EnglishText
	default:
		WriteError(w, http.StatusBadRequest, "unknown view: "+view)
		return
	}

	name := format.Plain
	if v, ok := QueryString(r, "format"); ok {
		name = v
	}
	if !format.Known(name) {
		WriteError(w, http.StatusBadRequest, "unknown format: "+name)
		return
	}
	if name != format.Plain && view != "native" {
		WriteError(w, http.StatusBadRequest, "segment timings are only stored for the native view")
		return
	}

	var segments []transcribe.Segment
	if len(t.Segments) > 0 {
		if err := json.Unmarshal(t.Segments, &segments); err != nil {
			h.log.Warn().Err(err).Int64("id", id).Msg("stored segments unreadable, exporting plain")
			segments = nil
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(t.Filename, view)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(format.Render(name, text, segments)))
}

// Audio handles GET /api/v1/transcriptions/{id}/audio, serving the
// archived source audio for a transcript. Redirects to a presigned
// URL when the archive backend provides one, otherwise streams the
// file from the store.
func (h *TranscriptionsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid transcription id")
		return
	}

	t, err := h.db.GetTranscription(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "transcription not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load transcription")
		return
	}

	// Watch-folder jobs carry no storage key; uploaded audio may have
	// been pruned past its retention window.
	if t.AudioKey == "" || !h.audio.Exists(r.Context(), t.AudioKey) {
		WriteError(w, http.StatusNotFound, "audio no longer available")
		return
	}

	if url, err := h.audio.URL(r.Context(), t.AudioKey); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := h.audio.Open(r.Context(), t.AudioKey)
	if err != nil {
		h.log.Error().Err(err).Str("key", t.AudioKey).Msg("failed to open archived audio")
		WriteError(w, http.StatusInternalServerError, "failed to open archived audio")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", audio.ContentType(t.Filename))
	w.Header().Set("Content-Disposition", `inline; filename="`+t.Filename+`"`)
	io.Copy(w, rc)
}

func exportFilename(original, view string) string {
	base := original
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			base = base[:i]
			break
		}
	}
	if base == "" {
		base = "transcript"
	}
	return base + "_" + view + ".txt"
}
