package audio

import (
	"errors"
	"testing"
)

func TestCheckFormat_Accepted(t *testing.T) {
	for _, path := range []string{
		"clip.mp3", "clip.wav", "clip.m4a", "clip.mpeg", "clip.mp4", "clip.webm",
		"UPPER.MP3", "/tmp/dir/nested.wav",
	} {
		if err := CheckFormat(path); err != nil {
			t.Errorf("CheckFormat(%q) = %v, want nil", path, err)
		}
	}
}

func TestCheckFormat_Rejected(t *testing.T) {
	for _, path := range []string{"clip.ogg", "clip.flac", "clip", "clip.txt"} {
		err := CheckFormat(path)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("CheckFormat(%q) = %v, want ErrUnsupportedFormat", path, err)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("x.mp3"); got != "audio/mpeg" {
		t.Errorf("ContentType(x.mp3) = %q, want audio/mpeg", got)
	}
	if got := ContentType("x.bin"); got != "application/octet-stream" {
		t.Errorf("ContentType(x.bin) = %q, want application/octet-stream", got)
	}
}
