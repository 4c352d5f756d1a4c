package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/jobs"
	"github.com/mstuts/ur-engine/internal/metrics"
)

// SubmitFunc starts a transcription job for a dropped audio file. It
// returns jobs.ErrJobAlreadyRunning while the engine is busy.
type SubmitFunc func(path string) error

// SeenFunc reports whether a file was already transcribed on an
// earlier run. The startup scan consults it so a restart does not
// re-transcribe the whole drop directory. May be nil (no history).
type SeenFunc func(ctx context.Context, filename string) bool

// FileWatcher monitors a drop directory for new audio files and
// submits each to the job runner. Files appearing while a job is in
// flight are queued and retried, oldest first.
type FileWatcher struct {
	watchDir string
	submit   SubmitFunc
	seen     SeenFunc
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	queue chan string

	filesQueued    atomic.Int64
	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "watching", "stopped"
}

// queueRetryInterval is how long the drain loop waits before retrying
// a file rejected because a job was already running.
const queueRetryInterval = 2 * time.Second

// NewFileWatcher creates a watcher for the given directory.
func NewFileWatcher(watchDir string, submit SubmitFunc, seen SeenFunc, log zerolog.Logger) *FileWatcher {
	fw := &FileWatcher{
		watchDir:       watchDir,
		submit:         submit,
		seen:           seen,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		queue:          make(chan string, 256),
	}
	fw.status.Store("starting")
	return fw
}

// Start initializes the fsnotify watcher, queues audio files already
// sitting in the directory, and begins watching for new ones.
func (fw *FileWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w

	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return err
	}

	fw.ctx, fw.cancel = context.WithCancel(context.Background())

	fw.log.Info().Str("watch_dir", fw.watchDir).Msg("file watcher initialized")

	go fw.watchLoop()
	go fw.drainLoop()

	// Pick up files already present at startup, skipping anything a
	// previous run has transcribed.
	_ = filepath.WalkDir(fw.watchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if fw.seen != nil && audio.CheckFormat(base) == nil && fw.seen(fw.ctx, base) {
			fw.filesSkipped.Add(1)
			fw.log.Debug().Str("file", base).Msg("already transcribed, skipping")
			return nil
		}
		fw.enqueue(path)
		return nil
	})

	fw.status.Store("watching")
	return nil
}

// Stop closes the fsnotify watcher and stops the drain loop. Queued
// files are abandoned.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	if fw.watcher != nil {
		fw.watcher.Close()
	}
	if fw.cancel != nil {
		fw.cancel()
	}
	fw.log.Info().
		Int64("files_processed", fw.filesProcessed.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// WatcherStatus is the watcher summary for the health endpoint.
type WatcherStatus struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	QueueDepth     int    `json:"queue_depth"`
	FilesProcessed int64  `json:"files_processed"`
	FilesSkipped   int64  `json:"files_skipped"`
}

// Status returns the current watcher status.
func (fw *FileWatcher) Status() WatcherStatus {
	s, _ := fw.status.Load().(string)
	return WatcherStatus{
		Status:         s,
		WatchDir:       fw.watchDir,
		QueueDepth:     len(fw.queue),
		FilesProcessed: fw.filesProcessed.Load(),
		FilesSkipped:   fw.filesSkipped.Load(),
	}
}

func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			fw.scheduleEnqueue(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleEnqueue debounces by 500ms so a file still being written is
// not submitted mid-copy.
func (fw *FileWatcher) scheduleEnqueue(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.enqueue(path)
	})
}

func (fw *FileWatcher) enqueue(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}
	if err := audio.CheckFormat(base); err != nil {
		fw.filesSkipped.Add(1)
		fw.log.Debug().Str("file", base).Msg("skipping unsupported file")
		return
	}

	select {
	case fw.queue <- path:
		fw.filesQueued.Add(1)
		metrics.WatcherFilesTotal.Inc()
		fw.log.Info().Str("file", base).Msg("queued dropped file")
	default:
		fw.filesSkipped.Add(1)
		fw.log.Warn().Str("file", base).Msg("watch queue full, dropping file")
	}
}

// drainLoop submits queued files one at a time. A file rejected
// because a job is already running is retried until the engine frees
// up.
func (fw *FileWatcher) drainLoop() {
	for {
		select {
		case <-fw.ctx.Done():
			return
		case path := <-fw.queue:
			fw.submitWithRetry(path)
		}
	}
}

func (fw *FileWatcher) submitWithRetry(path string) {
	for {
		err := fw.submit(path)
		switch {
		case err == nil:
			fw.filesProcessed.Add(1)
			return
		case errors.Is(err, jobs.ErrJobAlreadyRunning):
			select {
			case <-fw.ctx.Done():
				return
			case <-time.After(queueRetryInterval):
			}
		default:
			fw.filesSkipped.Add(1)
			fw.log.Warn().Err(err).Str("path", path).Msg("failed to submit dropped file")
			return
		}
	}
}
