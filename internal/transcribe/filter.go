package transcribe

import "strings"

// FilterSegments drops obviously bad segments: empty text, extreme
// word-level repetition (a stuck decoder), and runs of filler
// punctuation. If filtering removes everything, the non-empty
// originals are returned so a noisy result still beats no result.
func FilterSegments(segments []Segment) []Segment {
	var kept []Segment
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if isExtremelyRepetitive(text) {
			continue
		}
		if isNonsensical(text) {
			continue
		}
		seg.Text = text
		kept = append(kept, seg)
	}

	if kept == nil {
		for _, seg := range segments {
			if text := strings.TrimSpace(seg.Text); text != "" {
				seg.Text = text
				kept = append(kept, seg)
			}
		}
	}
	return kept
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// isExtremelyRepetitive reports whether a segment is dominated by a
// repeated word (5+ occurrences) or has almost no unique words.
func isExtremelyRepetitive(text string) bool {
	if len(text) < 6 {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 3 {
		return false
	}

	for _, word := range words {
		if len(word) > 1 && strings.Count(text, word) >= 5 {
			return true
		}
	}

	unique := make(map[string]struct{}, len(words))
	for _, word := range words {
		unique[word] = struct{}{}
	}
	return float64(len(unique)) < float64(len(words))*0.2
}

// isNonsensical reports whether a segment is only punctuation or a
// single repeated character. The Urdu full stop (۔) counts as
// punctuation alongside the ASCII period.
func isNonsensical(text string) bool {
	cleaned := strings.NewReplacer(" ", "", "۔", "", ".", "").Replace(text)
	if len(cleaned) == 0 {
		return true
	}

	runes := []rune(cleaned)
	if len(runes) > 5 {
		same := true
		for _, r := range runes {
			if r != runes[0] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}

	stops := strings.Count(text, "۔")
	return float64(stops) > float64(len([]rune(text)))*0.7
}
