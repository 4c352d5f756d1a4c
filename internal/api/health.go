package api

import (
	"net/http"
	"time"

	"github.com/mstuts/ur-engine/internal/database"
	"github.com/mstuts/ur-engine/internal/mqttclient"
	"github.com/mstuts/ur-engine/internal/pipeline"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Watcher       any               `json:"watcher,omitempty"`
}

// HealthHandler reports backend reachability. The speech backend is
// load-bearing: when it is unreachable the service is unhealthy. A
// missing translation backend only degrades output, so it degrades the
// status the same way it degrades a job.
type HealthHandler struct {
	engines   *pipeline.Engines
	db        *database.DB       // nil when history is disabled
	mqtt      *mqttclient.Client // nil when MQTT is disabled
	watcher   func() any         // nil when the watch folder is disabled
	version   string
	startTime time.Time
}

func NewHealthHandler(engines *pipeline.Engines, db *database.DB, mqtt *mqttclient.Client, watcher func() any, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		engines:   engines,
		db:        db,
		mqtt:      mqtt,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	// Speech backend
	if _, err := h.engines.ASR(r.Context()); err != nil {
		checks["whisper"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["whisper"] = "ok"
	}

	// Translation backend
	if _, err := h.engines.NMT(r.Context()); err != nil {
		checks["nllb"] = "error"
		degrade()
	} else {
		checks["nllb"] = "ok"
	}

	// ffmpeg (needed for audio preprocessing only)
	if transcribe.CheckFFmpeg() {
		checks["ffmpeg"] = "ok"
	} else {
		checks["ffmpeg"] = "missing"
	}

	// Database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			degrade()
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			degrade()
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}
	if h.watcher != nil {
		resp.Watcher = h.watcher()
	}

	WriteJSON(w, httpStatus, resp)
}
