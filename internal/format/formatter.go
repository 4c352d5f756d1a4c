// Package format renders transcription results into exportable text.
// Pure transformation of segments; no content modification.
package format

import (
	"fmt"
	"strings"

	"github.com/mstuts/ur-engine/internal/transcribe"
)

// Format names accepted by the export API.
const (
	Plain       = "plain"
	Paragraphs  = "paragraphs"
	Timestamped = "timestamped"
)

// minParagraphGap is the segment gap in seconds that starts a new
// paragraph.
const minParagraphGap = 2.0

// speakerGapThreshold is the segment gap in seconds treated as a
// possible speaker change.
const speakerGapThreshold = 3.0

// Known reports whether name is a valid format.
func Known(name string) bool {
	switch name {
	case Plain, Paragraphs, Timestamped:
		return true
	}
	return false
}

// Render formats text and segments using the named format. Formats
// that need timing fall back to plain text when no segments exist.
func Render(name, text string, segments []transcribe.Segment) string {
	switch name {
	case Paragraphs:
		return FormatParagraphs(text, segments)
	case Timestamped:
		return FormatTimestamped(text, segments, true)
	default:
		return text
	}
}

// FormatParagraphs groups segments into paragraphs wherever the gap
// between consecutive segments exceeds minParagraphGap.
func FormatParagraphs(text string, segments []transcribe.Segment) string {
	if len(segments) == 0 {
		return text
	}

	var paragraphs []string
	var current []string
	prevEnd := 0.0

	for _, seg := range segments {
		t := strings.TrimSpace(seg.Text)
		if len(t) < 2 {
			continue
		}
		if seg.Start-prevEnd > minParagraphGap && len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
		current = append(current, t)
		prevEnd = seg.End
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	return strings.Join(paragraphs, "\n\n")
}

// FormatTimestamped renders one line per segment with start/end
// timestamps and, optionally, alternating Party1/Party2 speaker
// labels inferred from segment gaps.
func FormatTimestamped(text string, segments []transcribe.Segment, includeSpeakers bool) string {
	if len(segments) == 0 {
		return text
	}

	var speakers []string
	if includeSpeakers {
		speakers = assignSpeakers(segments)
	}

	var lines []string
	for i, seg := range segments {
		t := strings.TrimSpace(seg.Text)
		if len(t) <= 1 {
			continue
		}
		stamp := fmt.Sprintf("[%s - %s]", formatTimestamp(seg.Start), formatTimestamp(seg.End))
		if speakers != nil {
			lines = append(lines, fmt.Sprintf("%s %s: %s", stamp, speakers[i], t))
		} else {
			lines = append(lines, fmt.Sprintf("%s %s", stamp, t))
		}
	}
	return strings.Join(lines, "\n")
}

// assignSpeakers labels segments Party1/Party2 by alternating on
// gaps above speakerGapThreshold. When the gap pattern looks like a
// single speaker (few significant gaps, short average gap), all
// segments collapse back to Party1.
func assignSpeakers(segments []transcribe.Segment) []string {
	labels := make([]string, len(segments))
	if len(segments) == 0 {
		return labels
	}
	if len(segments) == 1 {
		labels[0] = "Party1"
		return labels
	}

	current := 1
	prev := 1
	prevEnd := 0.0
	speakerChanges := 0
	totalGaps := 0
	significantGaps := 0
	gapSum := 0.0

	for i, seg := range segments {
		gap := seg.Start - prevEnd
		if i > 0 {
			totalGaps++
			gapSum += gap
			if gap > speakerGapThreshold {
				significantGaps++
			}
		}

		switch {
		case i == 0:
			labels[i] = "Party1"
			prev = current
		case gap > speakerGapThreshold:
			if speakerChanges == 0 {
				current = 2
				speakerChanges++
			} else {
				current = (prev % 2) + 1
			}
			labels[i] = fmt.Sprintf("Party%d", current)
			prev = current
		default:
			labels[i] = fmt.Sprintf("Party%d", prev)
		}
		prevEnd = seg.End
	}

	unique := make(map[string]struct{})
	for _, l := range labels {
		unique[l] = struct{}{}
	}
	if len(unique) == 1 {
		return labels
	}

	if totalGaps > 0 {
		gapRatio := float64(significantGaps) / float64(totalGaps)
		avgGap := gapSum / float64(totalGaps)
		if gapRatio < 0.25 || (speakerChanges < 2 && avgGap < speakerGapThreshold*1.5) {
			for i := range labels {
				labels[i] = "Party1"
			}
		}
	}
	return labels
}

// formatTimestamp renders seconds as HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
