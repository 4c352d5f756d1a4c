// Package pipeline runs the three-stage job: resolve language codes,
// transcribe with the ASR backend, translate to Urdu with the NMT
// backend. Data flows strictly forward; no stage feeds back.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/metrics"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

// Options configures pipeline behavior shared by all jobs.
type Options struct {
	Temperature     float64
	BeamSize        int
	PreprocessAudio bool
}

// Pipeline orchestrates the stages against shared engine handles.
type Pipeline struct {
	engines *Engines
	opts    Options
	log     zerolog.Logger
}

// New creates a pipeline.
func New(engines *Engines, opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{engines: engines, opts: opts, log: log}
}

// Run executes one job. Fatal conditions (unsupported language or
// format, ASR backend down, cancellation) return an error and no
// result. Translation-stage failures degrade: the result carries the
// native and English texts, an empty Urdu field, and a warning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	// Validate before touching any model.
	if err := audio.CheckFormat(req.Filename); err != nil {
		return nil, err
	}
	tag := req.Language
	if tag == "" {
		tag = lang.Auto
	}
	if tag != lang.Auto {
		if _, err := lang.Resolve(tag); err != nil {
			return nil, err
		}
	}

	asr, err := p.engines.ASR(ctx)
	if err != nil {
		return nil, fmt.Errorf("transcription stage: %w", err)
	}

	audioPath := req.AudioPath
	if p.opts.PreprocessAudio {
		processed, cleanup, err := transcribe.Preprocess(ctx, audioPath)
		if err != nil {
			p.log.Warn().Err(err).Msg("preprocessing failed, using original audio")
		} else {
			audioPath = processed
			defer cleanup()
		}
	}

	opts := transcribe.Opts{
		Model:       req.ModelSize,
		Temperature: p.opts.Temperature,
		BeamSize:    p.opts.BeamSize,
	}

	route, native, err := p.transcribeStage(ctx, asr, audioPath, tag, opts)
	if err != nil {
		return nil, err
	}

	nativeSegments := transcribe.FilterSegments(native.Segments)
	nativeText := transcribe.JoinSegments(nativeSegments)
	if nativeText == "" {
		nativeText = native.Text
	}

	result := &Result{
		NativeText:       nativeText,
		NativeSegments:   nativeSegments,
		DetectedLanguage: route.Tag,
		AudioDuration:    native.Duration,
		ModelSize:        req.ModelSize,
	}

	// The translation stages degrade on backend failure, but a
	// cancelled job is abandoned whole: no partial result may leak
	// out as a warning-completion.
	p.englishStage(ctx, asr, audioPath, route, opts, result)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.urduStage(ctx, route, result)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// transcribeStage resolves the route (detecting the language first
// when requested) and produces the native transcript.
func (p *Pipeline) transcribeStage(ctx context.Context, asr transcribe.Provider, audioPath string, tag lang.Tag, opts transcribe.Opts) (lang.Route, *transcribe.Response, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	}()

	if tag != lang.Auto {
		route, err := lang.RouteFor(tag)
		if err != nil {
			return lang.Route{}, nil, err
		}
		hinted := opts
		hinted.Language = route.Codes.Whisper
		resp, err := asr.Transcribe(ctx, audioPath, hinted)
		if err != nil {
			return lang.Route{}, nil, fmt.Errorf("transcription stage: %w", err)
		}
		return route, resp, nil
	}

	// Auto-detect: first pass without a language hint. The backend
	// reports the detected tag and its probability.
	resp, err := asr.Transcribe(ctx, audioPath, opts)
	if err != nil {
		return lang.Route{}, nil, fmt.Errorf("transcription stage: %w", err)
	}

	detected := lang.ResolveDetected(resp.Language, resp.LanguageProbability)
	route, err := lang.RouteFor(detected)
	if err != nil {
		return lang.Route{}, nil, err
	}
	p.log.Info().
		Str("detected", resp.Language).
		Float64("confidence", resp.LanguageProbability).
		Str("resolved", string(detected)).
		Msg("language detected")

	// Reuse the first pass when it already ran with the right tag;
	// otherwise transcribe again with the resolved code.
	if resp.Language == route.Codes.Whisper {
		return route, resp, nil
	}
	retryOpts := opts
	retryOpts.Language = route.Codes.Whisper
	resp, err = asr.Transcribe(ctx, audioPath, retryOpts)
	if err != nil {
		return lang.Route{}, nil, fmt.Errorf("transcription stage: %w", err)
	}
	return route, resp, nil
}

// englishStage fills English output via the ASR translate task.
// English input copies the native transcript; a failed translate call
// degrades the job instead of aborting it, since the transcript
// already exists.
func (p *Pipeline) englishStage(ctx context.Context, asr transcribe.Provider, audioPath string, route lang.Route, opts transcribe.Opts, result *Result) {
	if route.Tag == "en" {
		result.EnglishText = result.NativeText
		result.EnglishSegments = result.NativeSegments
		return
	}

	start := time.Now()
	resp, err := asr.TranslateToEnglish(ctx, audioPath, opts)
	metrics.StageDuration.WithLabelValues("english").Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return // cancellation is fatal, not a degrade
		}
		p.log.Warn().Err(err).Msg("english rendering failed")
		result.Warning = appendWarning(result.Warning, "English rendering unavailable: "+err.Error())
		return
	}

	segments := transcribe.FilterSegments(resp.Segments)
	result.EnglishSegments = segments
	result.EnglishText = transcribe.JoinSegments(segments)
	if result.EnglishText == "" {
		result.EnglishText = resp.Text
	}
}

// urduStage fills Urdu output per the route. Translation backend
// failures mark the Urdu view unavailable rather than failing the
// job.
func (p *Pipeline) urduStage(ctx context.Context, route lang.Route, result *Result) {
	switch {
	case route.UrduVerbatim:
		result.UrduText = result.NativeText
		result.UrduSegments = result.NativeSegments
		return
	case route.UrduIsNative:
		result.UrduText = result.NativeText
		result.UrduSegments = result.NativeSegments
		result.UrduIsNative = true
		return
	}

	nmt, err := p.engines.NMT(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.degradeUrdu(result, err)
		}
		return
	}

	start := time.Now()
	urduText, err := nmt.Translate(ctx, result.NativeText, route.Codes.NLLB, "urd_Arab")
	if err != nil {
		metrics.StageDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())
		if ctx.Err() == nil {
			p.degradeUrdu(result, err)
		}
		return
	}

	if len(result.NativeSegments) > 0 {
		texts := make([]string, len(result.NativeSegments))
		for i, seg := range result.NativeSegments {
			texts[i] = seg.Text
		}
		translated, err := nmt.TranslateBatch(ctx, texts, route.Codes.NLLB, "urd_Arab")
		if err != nil || len(translated) != len(texts) {
			// The full-text translation succeeded; keep it and drop only
			// the per-segment view.
			p.log.Warn().Err(err).Msg("segment translation failed, keeping full-text translation")
		} else {
			result.UrduSegments = make([]transcribe.Segment, len(result.NativeSegments))
			for i, seg := range result.NativeSegments {
				result.UrduSegments[i] = transcribe.Segment{Text: translated[i], Start: seg.Start, End: seg.End}
			}
		}
	}
	metrics.StageDuration.WithLabelValues("translate").Observe(time.Since(start).Seconds())

	result.UrduText = urduText
}

func (p *Pipeline) degradeUrdu(result *Result, err error) {
	p.log.Warn().Err(err).Msg("translation stage unavailable, degrading job")
	metrics.TranslationDegradedTotal.Inc()
	result.UrduUnavailable = true
	result.UrduText = ""
	result.UrduSegments = nil
	result.Warning = appendWarning(result.Warning, "Urdu unavailable: "+err.Error())
}

func appendWarning(existing, msg string) string {
	if existing == "" {
		return msg
	}
	return existing + "; " + msg
}
