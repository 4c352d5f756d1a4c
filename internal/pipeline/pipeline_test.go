package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mstuts/ur-engine/internal/audio"
	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/transcribe"
	"github.com/mstuts/ur-engine/internal/translate"
)

// fakeASR records calls and plays back canned responses.
type fakeASR struct {
	transcribeLangs []string // language hints seen, in order
	translateCalls  int
	healthErr       error
	onTranslate     func() // runs before the ctx check in TranslateToEnglish

	nativeText   string
	englishText  string
	detectedLang string
	detectedProb float64
}

func (f *fakeASR) Transcribe(ctx context.Context, path string, opts transcribe.Opts) (*transcribe.Response, error) {
	f.transcribeLangs = append(f.transcribeLangs, opts.Language)
	return &transcribe.Response{
		Text:                f.nativeText,
		Language:            pick(opts.Language, f.detectedLang),
		LanguageProbability: f.detectedProb,
		Duration:            3.5,
		Segments:            []transcribe.Segment{{Text: f.nativeText, Start: 0, End: 3.5}},
	}, nil
}

func (f *fakeASR) TranslateToEnglish(ctx context.Context, path string, opts transcribe.Opts) (*transcribe.Response, error) {
	f.translateCalls++
	if f.onTranslate != nil {
		f.onTranslate()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transcribe.Response{
		Text:     f.englishText,
		Language: "en",
		Segments: []transcribe.Segment{{Text: f.englishText, Start: 0, End: 3.5}},
	}, nil
}

func (f *fakeASR) Health(ctx context.Context) error { return f.healthErr }
func (f *fakeASR) Name() string                     { return "fake-asr" }
func (f *fakeASR) Model() string                    { return "base" }

func pick(hint, detected string) string {
	if hint != "" {
		return hint
	}
	return detected
}

// fakeNMT records translation calls.
type fakeNMT struct {
	calls       [][3]string // text, source, target
	healthErr   error
	transErr    error
	output      string
	onTranslate func() // runs before the ctx check in Translate
}

func (f *fakeNMT) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls = append(f.calls, [3]string{text, source, target})
	if f.onTranslate != nil {
		f.onTranslate()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.transErr != nil {
		return "", f.transErr
	}
	return f.output, nil
}

func (f *fakeNMT) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if f.transErr != nil {
		return nil, f.transErr
	}
	out := make([]string, len(texts))
	for i := range texts {
		out[i] = f.output
	}
	return out, nil
}

func (f *fakeNMT) Health(ctx context.Context) error { return f.healthErr }
func (f *fakeNMT) Name() string                     { return "fake-nmt" }
func (f *fakeNMT) Model() string                    { return "600M" }

func newTestPipeline(asr *fakeASR, nmt *fakeNMT) *Pipeline {
	engines := NewEngines(asr, nmt, zerolog.Nop())
	return New(engines, Options{}, zerolog.Nop())
}

func run(t *testing.T, p *Pipeline, tag lang.Tag) *Result {
	t.Helper()
	res, err := p.Run(context.Background(), Request{
		AudioPath: "/tmp/clip.mp3",
		Filename:  "clip.mp3",
		Language:  tag,
	})
	if err != nil {
		t.Fatalf("Run(%q) error: %v", tag, err)
	}
	return res
}

func TestRun_UrduSkipsTranslation(t *testing.T) {
	asr := &fakeASR{nativeText: "یہ اردو ہے", englishText: "This is Urdu"}
	nmt := &fakeNMT{}
	res := run(t, newTestPipeline(asr, nmt), "ur")

	if len(nmt.calls) != 0 {
		t.Errorf("translation stage invoked %d times for ur, want 0", len(nmt.calls))
	}
	if res.UrduText != res.NativeText {
		t.Errorf("UrduText = %q, want native transcript %q", res.UrduText, res.NativeText)
	}
	if res.Degraded() {
		t.Errorf("unexpected warning: %q", res.Warning)
	}
}

func TestRun_PunjabiUrduIsNative(t *testing.T) {
	asr := &fakeASR{nativeText: "پنجابی متن", englishText: "Punjabi text"}
	nmt := &fakeNMT{}
	res := run(t, newTestPipeline(asr, nmt), "pa")

	if len(nmt.calls) != 0 {
		t.Errorf("translation stage invoked for pa, want skipped")
	}
	if !res.UrduIsNative {
		t.Error("UrduIsNative = false, want true")
	}
	if res.UrduText != res.NativeText {
		t.Errorf("UrduText = %q, want native transcript", res.UrduText)
	}
}

func TestRun_BalochiUsesSindhiCodes(t *testing.T) {
	asr := &fakeASR{nativeText: "بلوچی", englishText: "Balochi"}
	nmt := &fakeNMT{output: "اردو"}
	res := run(t, newTestPipeline(asr, nmt), "bal")

	if len(asr.transcribeLangs) != 1 || asr.transcribeLangs[0] != "sd" {
		t.Errorf("transcribe language hints = %v, want [sd]", asr.transcribeLangs)
	}
	if len(nmt.calls) == 0 {
		t.Fatal("translation stage not invoked for bal")
	}
	if nmt.calls[0][1] != "snd_Arab" || nmt.calls[0][2] != "urd_Arab" {
		t.Errorf("translation codes = (%q, %q), want (snd_Arab, urd_Arab)", nmt.calls[0][1], nmt.calls[0][2])
	}
	if res.UrduText != "اردو" {
		t.Errorf("UrduText = %q, want اردو", res.UrduText)
	}
}

func TestRun_PashtoEndToEnd(t *testing.T) {
	asr := &fakeASR{nativeText: "سلام", englishText: "Hello"}
	nmt := &fakeNMT{output: "سلام عليكم"}
	res := run(t, newTestPipeline(asr, nmt), "ps")

	if nmt.calls[0][0] != "سلام" || nmt.calls[0][1] != "pus_Arab" || nmt.calls[0][2] != "urd_Arab" {
		t.Errorf("translation call = %v, want (سلام, pus_Arab, urd_Arab)", nmt.calls[0])
	}
	if res.NativeText != "سلام" || res.EnglishText != "Hello" || res.UrduText != "سلام عليكم" {
		t.Errorf("result fields = (%q, %q, %q); all three views must be populated",
			res.NativeText, res.UrduText, res.EnglishText)
	}
}

func TestRun_TranslationUnavailableDegrades(t *testing.T) {
	asr := &fakeASR{nativeText: "سنڌي متن", englishText: "Sindhi text"}
	nmt := &fakeNMT{healthErr: translate.ErrUnavailable}
	res := run(t, newTestPipeline(asr, nmt), "sd")

	if !res.UrduUnavailable {
		t.Error("UrduUnavailable = false, want true")
	}
	if res.UrduText != "" {
		t.Errorf("UrduText = %q, want empty for degraded job", res.UrduText)
	}
	if res.NativeText == "" || res.EnglishText == "" {
		t.Error("native/english must survive translation degradation")
	}
	if !res.Degraded() {
		t.Error("Degraded() = false, want true")
	}
}

func TestRun_DownloadRequiredDegrades(t *testing.T) {
	asr := &fakeASR{nativeText: "متن", englishText: "text"}
	nmt := &fakeNMT{transErr: translate.ErrDownloadRequired}
	res := run(t, newTestPipeline(asr, nmt), "hi")

	if !res.UrduUnavailable || !res.Degraded() {
		t.Error("download-required must degrade the job, not fail it")
	}
}

func TestRun_CancelDuringEnglishStageFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	asr := &fakeASR{nativeText: "سنڌي متن", englishText: "Sindhi text", onTranslate: cancel}
	nmt := &fakeNMT{output: "اردو"}
	p := newTestPipeline(asr, nmt)

	res, err := p.Run(ctx, Request{AudioPath: "/tmp/a.mp3", Filename: "a.mp3", Language: "sd"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Errorf("cancelled run returned a result: %+v", res)
	}
	if len(nmt.calls) != 0 {
		t.Error("translation stage ran after cancellation")
	}
}

func TestRun_CancelDuringTranslationFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	asr := &fakeASR{nativeText: "سنڌي متن", englishText: "Sindhi text"}
	nmt := &fakeNMT{onTranslate: cancel}
	p := newTestPipeline(asr, nmt)

	res, err := p.Run(ctx, Request{AudioPath: "/tmp/a.mp3", Filename: "a.mp3", Language: "sd"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled; interrupted translation must not degrade", err)
	}
	if res != nil {
		t.Errorf("cancelled run returned a result: %+v", res)
	}
}

func TestRun_UnknownLanguageFailsFast(t *testing.T) {
	asr := &fakeASR{nativeText: "x"}
	nmt := &fakeNMT{}
	p := newTestPipeline(asr, nmt)

	_, err := p.Run(context.Background(), Request{AudioPath: "/tmp/a.mp3", Filename: "a.mp3", Language: "xx"})
	if !errors.Is(err, lang.ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}
	if len(asr.transcribeLangs) != 0 || asr.translateCalls != 0 || len(nmt.calls) != 0 {
		t.Error("models were invoked for an unsupported language")
	}
}

func TestRun_UnsupportedFormatFailsFast(t *testing.T) {
	asr := &fakeASR{}
	p := newTestPipeline(asr, &fakeNMT{})

	_, err := p.Run(context.Background(), Request{AudioPath: "/tmp/a.ogg", Filename: "a.ogg", Language: "ur"})
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
	if len(asr.transcribeLangs) != 0 {
		t.Error("ASR invoked for an unsupported audio format")
	}
}

func TestRun_ASRUnavailableIsFatal(t *testing.T) {
	asr := &fakeASR{healthErr: transcribe.ErrUnavailable}
	p := newTestPipeline(asr, &fakeNMT{})

	_, err := p.Run(context.Background(), Request{AudioPath: "/tmp/a.mp3", Filename: "a.mp3", Language: "ur"})
	if !errors.Is(err, transcribe.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestRun_AutoDetectHighConfidence(t *testing.T) {
	asr := &fakeASR{nativeText: "پښتو", englishText: "Pashto", detectedLang: "ps", detectedProb: 0.9}
	nmt := &fakeNMT{output: "اردو"}
	res := run(t, newTestPipeline(asr, nmt), lang.Auto)

	// First pass had no hint and already ran as ps; no re-transcription.
	if len(asr.transcribeLangs) != 1 || asr.transcribeLangs[0] != "" {
		t.Errorf("transcribe hints = %v, want single auto-detect pass", asr.transcribeLangs)
	}
	if res.DetectedLanguage != "ps" {
		t.Errorf("DetectedLanguage = %q, want ps", res.DetectedLanguage)
	}
}

func TestRun_AutoDetectLowConfidenceFallsBackToSindhi(t *testing.T) {
	asr := &fakeASR{nativeText: "متن", englishText: "text", detectedLang: "ps", detectedProb: 0.3}
	nmt := &fakeNMT{output: "اردو"}
	res := run(t, newTestPipeline(asr, nmt), lang.Auto)

	if len(asr.transcribeLangs) != 2 || asr.transcribeLangs[1] != "sd" {
		t.Errorf("transcribe hints = %v, want detect pass then sd re-run", asr.transcribeLangs)
	}
	if res.DetectedLanguage != "sd" {
		t.Errorf("DetectedLanguage = %q, want sd", res.DetectedLanguage)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{lang.ErrUnsupported, CodeUnsupportedLanguage},
		{audio.ErrUnsupportedFormat, CodeUnsupportedAudioFormat},
		{transcribe.ErrUnavailable, CodeModelUnavailable},
		{translate.ErrUnavailable, CodeModelUnavailable},
		{translate.ErrDownloadRequired, CodeDownloadRequired},
		{errors.New("boom"), CodeInternal},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
