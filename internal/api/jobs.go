package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/jobs"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/pipeline"
	"github.com/mstuts/ur-engine/internal/storage"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

// JobsHandler starts, inspects, and cancels transcription jobs.
type JobsHandler struct {
	runner    *jobs.Runner
	store     storage.AudioStore
	maxUpload int64
	log       zerolog.Logger
}

func NewJobsHandler(runner *jobs.Runner, store storage.AudioStore, maxUpload int64, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		runner:    runner,
		store:     store,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "jobs").Logger(),
	}
}

// Routes registers job routes on the given router.
func (h *JobsHandler) Routes(r chi.Router) {
	r.Post("/jobs", h.Start)
	r.Get("/jobs/current", h.Current)
	r.Delete("/jobs/current", h.Cancel)
}

// Start handles POST /api/v1/jobs. Accepts a multipart form with an
// "audio" file plus optional "language" and "model_size" fields, and
// kicks off a background job. Responds 202 with the job snapshot, or
// 409 while another job is running.
func (h *JobsHandler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if err := audio.CheckFormat(filename); err != nil {
		WriteErrorCode(w, http.StatusUnsupportedMediaType, pipeline.CodeUnsupportedAudioFormat, err.Error())
		return
	}

	tag := lang.Auto
	if v := r.FormValue("language"); v != "" {
		tag = lang.Tag(v)
		if tag != lang.Auto && !lang.Known(tag) {
			WriteErrorCode(w, http.StatusBadRequest, pipeline.CodeUnsupportedLanguage, "unsupported language: "+v)
			return
		}
	}

	modelSize := r.FormValue("model_size")
	if modelSize != "" && !transcribe.KnownModelSize(modelSize) {
		WriteError(w, http.StatusBadRequest, "unknown model size: "+modelSize)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	// Refuse the upload before writing anything to disk if a job is
	// already in flight.
	if h.runner.JobActive() {
		WriteError(w, http.StatusConflict, "a job is already running")
		return
	}

	suffix := make([]byte, 4)
	rand.Read(suffix)
	key := time.Now().UTC().Format("2006-01-02") + "/" + hex.EncodeToString(suffix) + "_" + filename
	if err := h.store.Save(r.Context(), key, data, audio.ContentType(filename)); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to store upload")
		WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	path := h.store.LocalPath(key)
	if path == "" {
		WriteError(w, http.StatusInternalServerError, "stored file not available locally")
		return
	}

	job, err := h.runner.Start(pipeline.Request{
		AudioPath: path,
		AudioKey:  key,
		Filename:  filename,
		Language:  tag,
		ModelSize: modelSize,
	})
	if errors.Is(err, jobs.ErrJobAlreadyRunning) {
		WriteError(w, http.StatusConflict, "a job is already running")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("filename", filename).
		Str("language", string(tag)).
		Msg("job accepted")
	WriteJSON(w, http.StatusAccepted, job)
}

// Current handles GET /api/v1/jobs/current: the full state machine
// snapshot including the result once terminal.
func (h *JobsHandler) Current(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.runner.Current())
}

// Cancel handles DELETE /api/v1/jobs/current.
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Cancel(); err != nil {
		if errors.Is(err, jobs.ErrNoRunningJob) {
			WriteError(w, http.StatusConflict, "no running job to cancel")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
