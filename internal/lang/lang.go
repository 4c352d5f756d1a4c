// Package lang maps the language tags accepted by ur-engine to the
// codes each downstream model family expects, and decides which
// pipeline stages run for a given language.
package lang

import (
	"errors"
	"fmt"
	"sort"
)

// Tag identifies a spoken/written language variant. Tags are opaque
// short codes compared by exact string equality.
type Tag string

// Auto is the sentinel tag requesting language auto-detection.
const Auto Tag = "auto"

// Urdu is the fixed translation target of the pipeline.
const Urdu Tag = "ur"

// ErrUnsupported is returned for tags with no mapping entry. Callers
// must not substitute a fallback silently.
var ErrUnsupported = errors.New("unsupported language")

// Codes holds the model-specific codes derived from a Tag.
type Codes struct {
	Whisper string // Whisper language tag
	NLLB    string // NLLB xxx_Scrpt tag
}

// codeTable is the fixed, exhaustive mapping from tags to model codes.
// Balochi has no native Whisper code and is transcribed as Sindhi.
var codeTable = map[Tag]Codes{
	"ur":  {Whisper: "ur", NLLB: "urd_Arab"},
	"en":  {Whisper: "en", NLLB: "eng_Latn"},
	"sd":  {Whisper: "sd", NLLB: "snd_Arab"},
	"ps":  {Whisper: "ps", NLLB: "pus_Arab"},
	"pa":  {Whisper: "pa", NLLB: "pan_Guru"},
	"hi":  {Whisper: "hi", NLLB: "hin_Deva"},
	"bal": {Whisper: "sd", NLLB: "snd_Arab"},
}

var displayNames = map[Tag]string{
	Auto:  "Auto-detect",
	"ur":  "Urdu",
	"en":  "English",
	"sd":  "Sindhi",
	"ps":  "Pashto",
	"pa":  "Punjabi",
	"hi":  "Hindi",
	"bal": "Balochi",
}

// Resolve returns the model codes for a tag, or ErrUnsupported.
// The Auto sentinel has no codes and resolves with an error; detection
// must happen before resolution.
func Resolve(t Tag) (Codes, error) {
	c, ok := codeTable[t]
	if !ok {
		return Codes{}, fmt.Errorf("%w: %q", ErrUnsupported, string(t))
	}
	return c, nil
}

// Known reports whether t has a mapping entry.
func Known(t Tag) bool {
	_, ok := codeTable[t]
	return ok
}

// Name returns the display name for a tag, or the tag itself when
// no name is registered.
func Name(t Tag) string {
	if n, ok := displayNames[t]; ok {
		return n
	}
	return string(t)
}

// Supported returns all mapped tags in sorted order (Auto excluded).
func Supported() []Tag {
	tags := make([]Tag, 0, len(codeTable))
	for t := range codeTable {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
