package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/api"
	"github.com/mstuts/ur-engine/internal/config"
	"github.com/mstuts/ur-engine/internal/database"
	"github.com/mstuts/ur-engine/internal/ingest"
	"github.com/mstuts/ur-engine/internal/jobs"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/metrics"
	"github.com/mstuts/ur-engine/internal/mqttclient"
	"github.com/mstuts/ur-engine/internal/pipeline"
	"github.com/mstuts/ur-engine/internal/storage"
	"github.com/mstuts/ur-engine/internal/transcribe"
	"github.com/mstuts/ur-engine/internal/translate"
)

var version = "dev"

const eventRingSize = 256

// dbRecorder adapts the history store to the runner's Recorder hook.
type dbRecorder struct {
	db *database.DB
}

func (r dbRecorder) Record(ctx context.Context, job jobs.Job) error {
	res := job.Result
	if res == nil {
		return nil
	}
	var segments json.RawMessage
	if len(res.NativeSegments) > 0 {
		b, err := json.Marshal(res.NativeSegments)
		if err != nil {
			return fmt.Errorf("marshal segments: %w", err)
		}
		segments = b
	}
	_, err := r.db.InsertTranscription(ctx, &database.TranscriptionRow{
		JobID:            job.ID,
		Filename:         job.Filename,
		AudioKey:         job.AudioKey,
		Language:         job.Language,
		DetectedLanguage: string(res.DetectedLanguage),
		ModelSize:        res.ModelSize,
		NativeText:       res.NativeText,
		UrduText:         res.UrduText,
		EnglishText:      res.EnglishText,
		Segments:         segments,
		UrduUnavailable:  res.UrduUnavailable,
		UrduIsNative:     res.UrduIsNative,
		Warning:          res.Warning,
		AudioDuration:    res.AudioDuration,
	})
	return err
}

// liveStats feeds the scrape-time collector from the runner and bus.
type liveStats struct {
	runner *jobs.Runner
	bus    *ingest.EventBus
}

func (s liveStats) JobActive() bool         { return s.runner.JobActive() }
func (s liveStats) SSESubscriberCount() int { return s.bus.SubscriberCount() }

func main() {
	startTime := time.Now()

	var ov config.Overrides
	flag.StringVar(&ov.EnvFile, "env-file", "", "path to an env file loaded before the environment")
	flag.StringVar(&ov.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&ov.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&ov.WhisperURL, "whisper-url", "", "Whisper ASR service base URL")
	flag.StringVar(&ov.WhisperModel, "whisper-model", "", "Whisper model size")
	flag.StringVar(&ov.NLLBURL, "nllb-url", "", "NLLB translation service base URL")
	flag.StringVar(&ov.DatabaseURL, "database-url", "", "PostgreSQL connection string for transcript history")
	flag.StringVar(&ov.AudioDir, "audio-dir", "", "directory for stored audio uploads")
	flag.StringVar(&ov.WatchDir, "watch-dir", "", "directory to watch for dropped audio files")
	flag.Parse()

	// Config
	cfg, err := config.Load(ov)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("ur-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database (optional; history endpoints disappear without it)
	var db *database.DB
	if cfg.HistoryEnabled() {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database schema")
		}
	} else {
		log.Info().Msg("no DATABASE_URL configured, transcript history disabled")
	}

	// MQTT (optional)
	var mqtt *mqttclient.Client
	if cfg.MQTTEnabled() {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
	}

	// Model engines and pipeline
	whisper := transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperTimeout)
	nllb := translate.NewNLLBClient(cfg.NLLBURL, cfg.NLLBModel, cfg.NLLBTimeout)
	engines := pipeline.NewEngines(whisper, nllb, log.With().Str("component", "engines").Logger())
	pl := pipeline.New(engines, pipeline.Options{
		Temperature:     cfg.Temperature,
		BeamSize:        cfg.BeamSize,
		PreprocessAudio: cfg.PreprocessAudio,
	}, log.With().Str("component", "pipeline").Logger())

	// Event bus, fanned out to MQTT when a broker is configured
	bus := ingest.NewEventBus(eventRingSize)
	publish := func(eventType, jobID string, payload any) {
		bus.Publish(eventType, jobID, payload)
		if mqtt != nil {
			mqtt.PublishEvent(eventType, jobID, payload)
		}
	}

	// Job runner
	var recorder jobs.Recorder
	if db != nil {
		recorder = dbRecorder{db: db}
	}
	runner := jobs.NewRunner(pl.Run, publish, recorder, log.With().Str("component", "jobs").Logger())

	// Audio storage
	store, pruner, err := storage.New(cfg, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}
	if pruner != nil {
		pruner.Start()
		defer pruner.Stop()
	}

	// Watch folder (optional)
	var watcherStatus func() any
	if cfg.WatchEnabled() {
		submit := func(path string) error {
			_, err := runner.Start(pipeline.Request{
				AudioPath: path,
				Filename:  filepath.Base(path),
				Language:  lang.Auto,
			})
			return err
		}
		var seen ingest.SeenFunc
		if db != nil {
			seen = func(ctx context.Context, filename string) bool {
				exists, err := db.HasFilename(ctx, filename)
				if err != nil {
					log.Warn().Err(err).Str("file", filename).Msg("history lookup failed, re-queueing file")
					return false
				}
				return exists
			}
		}
		fw := ingest.NewFileWatcher(cfg.WatchDir, submit, seen, log.With().Str("component", "watcher").Logger())
		if err := fw.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start file watcher")
		}
		defer fw.Stop()
		watcherStatus = func() any { return fw.Status() }
	}

	// Scrape-time gauges
	var pool *pgxpool.Pool
	if db != nil {
		pool = db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(pool, liveStats{runner: runner, bus: bus}))

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Runner:        runner,
		Store:         store,
		Engines:       engines,
		DB:            db,
		MQTT:          mqtt,
		Events:        bus,
		WatcherStatus: watcherStatus,
	}, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Let an in-flight job observe cancellation before exit
	if runner.JobActive() {
		_ = runner.Cancel()
		runner.Wait()
	}

	log.Info().Msg("ur-engine stopped")
}
