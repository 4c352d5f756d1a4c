package format

import (
	"strings"
	"testing"

	"github.com/mstuts/ur-engine/internal/transcribe"
)

func TestKnown(t *testing.T) {
	for _, name := range []string{Plain, Paragraphs, Timestamped} {
		if !Known(name) {
			t.Errorf("Known(%q) = false, want true", name)
		}
	}
	if Known("srt") {
		t.Error("Known(srt) = true, want false")
	}
}

func TestRender_PlainIgnoresSegments(t *testing.T) {
	got := Render(Plain, "hello world", []transcribe.Segment{{Text: "ignored"}})
	if got != "hello world" {
		t.Errorf("Render(plain) = %q, want raw text", got)
	}
}

func TestFormatParagraphs_SplitsOnGap(t *testing.T) {
	segs := []transcribe.Segment{
		{Text: "first part", Start: 0, End: 2},
		{Text: "continues", Start: 2.5, End: 4},
		{Text: "new paragraph", Start: 7, End: 9}, // 3s gap
	}
	got := FormatParagraphs("", segs)
	want := "first part continues\n\nnew paragraph"
	if got != want {
		t.Errorf("FormatParagraphs = %q, want %q", got, want)
	}
}

func TestFormatParagraphs_NoSegmentsFallsBack(t *testing.T) {
	if got := FormatParagraphs("fallback", nil); got != "fallback" {
		t.Errorf("FormatParagraphs = %q, want fallback text", got)
	}
}

func TestFormatTimestamped(t *testing.T) {
	segs := []transcribe.Segment{
		{Text: "hello", Start: 0, End: 1.5},
	}
	got := FormatTimestamped("", segs, false)
	want := "[00:00:00.000 - 00:00:01.500] hello"
	if got != want {
		t.Errorf("FormatTimestamped = %q, want %q", got, want)
	}
}

func TestFormatTimestamped_SpeakerAlternation(t *testing.T) {
	segs := []transcribe.Segment{
		{Text: "question", Start: 0, End: 2},
		{Text: "answer", Start: 8, End: 10},     // 6s gap → speaker change
		{Text: "follow up", Start: 16, End: 18}, // 6s gap → change back
	}
	got := FormatTimestamped("", segs, true)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "Party1:") {
		t.Errorf("line 0 = %q, want Party1", lines[0])
	}
	if !strings.Contains(lines[1], "Party2:") {
		t.Errorf("line 1 = %q, want Party2", lines[1])
	}
	if !strings.Contains(lines[2], "Party1:") {
		t.Errorf("line 2 = %q, want Party1", lines[2])
	}
}

func TestAssignSpeakers_SingleSpeakerCollapse(t *testing.T) {
	// Mostly contiguous speech with one stray gap: low gap ratio would
	// collapse, but here 1 of 3 gaps is significant (0.33 >= 0.25) and
	// only one change happened with small average gap → collapse.
	segs := []transcribe.Segment{
		{Text: "a", Start: 0, End: 2},
		{Text: "b", Start: 2.1, End: 4},
		{Text: "c", Start: 8, End: 10},
		{Text: "d", Start: 10.1, End: 12},
	}
	labels := assignSpeakers(segs)
	for i, l := range labels {
		if l != "Party1" {
			t.Errorf("labels[%d] = %q, want Party1 after collapse", i, l)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(3725.25); got != "01:02:05.250" {
		t.Errorf("formatTimestamp = %q, want 01:02:05.250", got)
	}
}
