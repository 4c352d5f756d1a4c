// Package jobs tracks the single allowed transcription job per
// session and runs it as a cancellable background task.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/metrics"
	"github.com/mstuts/ur-engine/internal/pipeline"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested while idle.
var ErrNoRunningJob = errors.New("no running job")

// State is a job lifecycle state. Terminal states are Completed,
// CompletedWithWarning, and Failed.
type State string

const (
	StateIdle                 State = "idle"
	StateProcessing           State = "processing"
	StateCompleted            State = "completed"
	StateCompletedWithWarning State = "completed_with_warning"
	StateFailed               State = "failed"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCompletedWithWarning, StateFailed:
		return true
	}
	return false
}

// Job is a snapshot of the current job.
type Job struct {
	ID         string           `json:"id"`
	State      State            `json:"state"`
	Filename   string           `json:"filename,omitempty"`
	AudioKey   string           `json:"audio_key,omitempty"`
	Language   string           `json:"language,omitempty"`
	ModelSize  string           `json:"model_size,omitempty"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Result     *pipeline.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
}

// RunFunc executes the pipeline for one request.
type RunFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)

// PublishFunc is a callback for job lifecycle events (SSE, MQTT).
type PublishFunc func(eventType, jobID string, payload any)

// Recorder persists completed jobs. May be nil when history is
// disabled.
type Recorder interface {
	Record(ctx context.Context, job Job) error
}

// Runner owns the job state machine:
// Idle → Processing → {Completed | CompletedWithWarning | Failed}.
type Runner struct {
	run     RunFunc
	publish PublishFunc
	record  Recorder
	log     zerolog.Logger

	mu      sync.RWMutex
	current Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner in idle state. publish and record may be
// nil.
func NewRunner(run RunFunc, publish PublishFunc, record Recorder, log zerolog.Logger) *Runner {
	return &Runner{
		run:     run,
		publish: publish,
		record:  record,
		log:     log,
		current: Job{State: StateIdle},
	}
}

// Start begins a new background job. Returns the job snapshot, or
// ErrJobAlreadyRunning while a job is in flight. A terminal previous
// job is replaced.
func (r *Runner) Start(req pipeline.Request) (Job, error) {
	r.mu.Lock()
	if r.current.State == StateProcessing {
		r.mu.Unlock()
		return Job{}, ErrJobAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.current = Job{
		ID:        newJobID(),
		State:     StateProcessing,
		Filename:  req.Filename,
		AudioKey:  req.AudioKey,
		Language:  string(req.Language),
		ModelSize: req.ModelSize,
		StartedAt: time.Now().UTC(),
	}
	job := r.current
	r.mu.Unlock()

	r.emit("job_started", job.ID, map[string]any{
		"filename": job.Filename,
		"language": job.Language,
	})

	r.wg.Add(1)
	go r.execute(ctx, job.ID, req)

	return job, nil
}

// Cancel aborts the running job. The pending stage is abandoned; no
// partial results are kept.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.State != StateProcessing {
		return ErrNoRunningJob
	}
	r.cancel()
	return nil
}

// Current returns a snapshot of the current job.
func (r *Runner) Current() Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// JobActive reports whether a job is running (metrics gauge).
func (r *Runner) JobActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.State == StateProcessing
}

// Wait blocks until the in-flight job goroutine (if any) finishes.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, jobID string, req pipeline.Request) {
	defer r.wg.Done()

	result, err := r.run(ctx, req)

	r.mu.Lock()
	if r.current.ID != jobID {
		// A newer job replaced this one after cancellation; drop the
		// stale outcome.
		r.mu.Unlock()
		return
	}
	r.current.FinishedAt = time.Now().UTC()

	switch {
	case err != nil && ctx.Err() != nil:
		r.current.State = StateFailed
		r.current.Error = "job cancelled"
		r.current.ErrorCode = pipeline.CodeInternal
	case err != nil:
		r.current.State = StateFailed
		r.current.Error = err.Error()
		r.current.ErrorCode = pipeline.Classify(err)
	case result.Degraded():
		r.current.State = StateCompletedWithWarning
		r.current.Result = result
	default:
		r.current.State = StateCompleted
		r.current.Result = result
	}
	job := r.current
	r.mu.Unlock()

	metrics.JobsTotal.WithLabelValues(string(job.State)).Inc()

	switch job.State {
	case StateFailed:
		r.log.Warn().Str("job_id", job.ID).Str("code", job.ErrorCode).Str("error", job.Error).Msg("job failed")
		r.emit("job_failed", job.ID, map[string]any{
			"error": job.Error,
			"code":  job.ErrorCode,
		})
	default:
		r.log.Info().
			Str("job_id", job.ID).
			Str("state", string(job.State)).
			Str("language", string(job.Result.DetectedLanguage)).
			Dur("elapsed", job.FinishedAt.Sub(job.StartedAt)).
			Msg("job complete")
		r.emit("job_completed", job.ID, map[string]any{
			"state":    string(job.State),
			"language": string(job.Result.DetectedLanguage),
			"warning":  job.Result.Warning,
		})
		r.persist(job)
	}
}

// persist writes the completed job to history. Uses a fresh context:
// the job context may already be cancelled.
func (r *Runner) persist(job Job) {
	if r.record == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.record.Record(ctx, job); err != nil {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job history")
	}
}

func (r *Runner) emit(eventType, jobID string, payload any) {
	if r.publish != nil {
		r.publish(eventType, jobID, payload)
	}
}

func newJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
