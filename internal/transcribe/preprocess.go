package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ffmpegAvailable caches whether ffmpeg is in PATH (checked once at startup).
var ffmpegAvailable *bool

// CheckFFmpeg checks if ffmpeg is available in PATH. Call once at startup.
func CheckFFmpeg() bool {
	if ffmpegAvailable != nil {
		return *ffmpegAvailable
	}
	_, err := exec.LookPath("ffmpeg")
	avail := err == nil
	ffmpegAvailable = &avail
	return avail
}

// Preprocess converts audio to the 16kHz mono WAV that Whisper
// models are trained on, using ffmpeg. Containers the backend may not
// decode (m4a, webm, mp4) become plain PCM before upload.
//
// Returns the path to a temporary WAV file and a cleanup function.
// If ffmpeg is unavailable, returns the original path with a no-op
// cleanup and lets the backend decode the original container.
func Preprocess(ctx context.Context, inputPath string) (string, func(), error) {
	noop := func() {}

	if !CheckFFmpeg() {
		return inputPath, noop, nil
	}

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("ur-engine-preprocess-%d.wav", os.Getpid()))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return inputPath, noop, fmt.Errorf("ffmpeg preprocess: %w", err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}
