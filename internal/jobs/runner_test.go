package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/pipeline"
)

type fakeRecorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (f *fakeRecorder) Record(_ context.Context, job Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

type eventSink struct {
	mu     sync.Mutex
	events []string
}

func (s *eventSink) publish(eventType, jobID string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *eventSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func testRequest() pipeline.Request {
	return pipeline.Request{
		AudioPath: "/tmp/test.mp3",
		Filename:  "test.mp3",
		Language:  lang.Tag("ps"),
		ModelSize: "base",
	}
}

func TestRunner_Completed(t *testing.T) {
	rec := &fakeRecorder{}
	sink := &eventSink{}
	run := func(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		return &pipeline.Result{NativeText: "hello", DetectedLanguage: "ps"}, nil
	}
	r := NewRunner(run, sink.publish, rec, zerolog.Nop())

	job, err := r.Start(testRequest())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.State != StateProcessing {
		t.Errorf("state = %q, want %q", job.State, StateProcessing)
	}
	if job.ID == "" {
		t.Error("expected non-empty job ID")
	}
	r.Wait()

	got := r.Current()
	if got.State != StateCompleted {
		t.Errorf("state = %q, want %q", got.State, StateCompleted)
	}
	if got.Result == nil || got.Result.NativeText != "hello" {
		t.Errorf("unexpected result: %+v", got.Result)
	}
	if got.Error != "" {
		t.Errorf("unexpected error field: %q", got.Error)
	}

	events := sink.all()
	if len(events) != 2 || events[0] != "job_started" || events[1] != "job_completed" {
		t.Errorf("events = %v, want [job_started job_completed]", events)
	}
	if len(rec.jobs) != 1 || rec.jobs[0].ID != job.ID {
		t.Errorf("recorder got %d jobs, want the completed one", len(rec.jobs))
	}
}

func TestRunner_CompletedWithWarning(t *testing.T) {
	run := func(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		return &pipeline.Result{
			NativeText:      "text",
			UrduUnavailable: true,
			Warning:         "Urdu translation unavailable",
		}, nil
	}
	r := NewRunner(run, nil, nil, zerolog.Nop())

	if _, err := r.Start(testRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Wait()

	got := r.Current()
	if got.State != StateCompletedWithWarning {
		t.Errorf("state = %q, want %q", got.State, StateCompletedWithWarning)
	}
	if got.Result.Warning == "" {
		t.Error("expected warning on result")
	}
}

func TestRunner_Failed(t *testing.T) {
	sink := &eventSink{}
	run := func(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		return nil, fmt.Errorf("transcribe: %w", errors.New("boom"))
	}
	rec := &fakeRecorder{}
	r := NewRunner(run, sink.publish, rec, zerolog.Nop())

	if _, err := r.Start(testRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Wait()

	got := r.Current()
	if got.State != StateFailed {
		t.Errorf("state = %q, want %q", got.State, StateFailed)
	}
	if got.ErrorCode != pipeline.CodeInternal {
		t.Errorf("code = %q, want %q", got.ErrorCode, pipeline.CodeInternal)
	}
	events := sink.all()
	if len(events) != 2 || events[1] != "job_failed" {
		t.Errorf("events = %v, want job_failed last", events)
	}
	if len(rec.jobs) != 0 {
		t.Error("failed jobs must not be recorded")
	}
}

func TestRunner_SingleActiveJob(t *testing.T) {
	release := make(chan struct{})
	run := func(ctx context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		select {
		case <-release:
			return &pipeline.Result{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r := NewRunner(run, nil, nil, zerolog.Nop())

	if _, err := r.Start(testRequest()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := r.Start(testRequest()); !errors.Is(err, ErrJobAlreadyRunning) {
		t.Errorf("second Start err = %v, want ErrJobAlreadyRunning", err)
	}
	close(release)
	r.Wait()

	// A terminal job does not block a new one.
	if _, err := r.Start(testRequest()); err != nil {
		t.Errorf("Start after completion: %v", err)
	}
	r.Wait()
}

func TestRunner_Cancel(t *testing.T) {
	rec := &fakeRecorder{}
	run := func(ctx context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := NewRunner(run, nil, rec, zerolog.Nop())

	if _, err := r.Start(testRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the goroutine a moment to enter the run func.
	time.Sleep(10 * time.Millisecond)

	if err := r.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	r.Wait()

	got := r.Current()
	if got.State != StateFailed {
		t.Errorf("state = %q, want %q", got.State, StateFailed)
	}
	if got.Error != "job cancelled" {
		t.Errorf("error = %q, want %q", got.Error, "job cancelled")
	}
	if got.Result != nil {
		t.Error("cancelled job must not keep partial results")
	}
	if len(rec.jobs) != 0 {
		t.Error("cancelled job must not be written to history")
	}
}

func TestRunner_CancelWhenIdle(t *testing.T) {
	r := NewRunner(nil, nil, nil, zerolog.Nop())
	if err := r.Cancel(); !errors.Is(err, ErrNoRunningJob) {
		t.Errorf("err = %v, want ErrNoRunningJob", err)
	}
}

func TestRunner_JobActive(t *testing.T) {
	release := make(chan struct{})
	run := func(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
		<-release
		return &pipeline.Result{}, nil
	}
	r := NewRunner(run, nil, nil, zerolog.Nop())
	if r.JobActive() {
		t.Error("idle runner reported active")
	}
	if _, err := r.Start(testRequest()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.JobActive() {
		t.Error("running job not reported active")
	}
	close(release)
	r.Wait()
	if r.JobActive() {
		t.Error("finished job still reported active")
	}
}

func TestState_Terminal(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:                 false,
		StateProcessing:           false,
		StateCompleted:            true,
		StateCompletedWithWarning: true,
		StateFailed:               true,
	}
	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
