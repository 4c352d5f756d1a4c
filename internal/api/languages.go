package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mstuts/ur-engine/internal/lang"
	"github.com/mstuts/ur-engine/internal/transcribe"
)

// LanguageInfo describes one selectable input language.
type LanguageInfo struct {
	Tag        string `json:"tag"`
	Name       string `json:"name"`
	Whisper    string `json:"whisper_code"`
	NLLB       string `json:"nllb_code"`
	Translates bool   `json:"translates"`

	// UrduIsNative marks languages whose Urdu view carries the
	// untranslated native transcript.
	UrduIsNative bool `json:"urdu_is_native,omitempty"`
}

type LanguagesHandler struct{}

func NewLanguagesHandler() *LanguagesHandler { return &LanguagesHandler{} }

// Routes registers language and model listing routes.
func (h *LanguagesHandler) Routes(r chi.Router) {
	r.Get("/languages", h.List)
	r.Get("/models", h.Models)
}

// List handles GET /api/v1/languages.
func (h *LanguagesHandler) List(w http.ResponseWriter, r *http.Request) {
	tags := lang.Supported()
	out := make([]LanguageInfo, 0, len(tags))
	for _, t := range tags {
		route, err := lang.RouteFor(t)
		if err != nil {
			continue
		}
		out = append(out, LanguageInfo{
			Tag:          string(t),
			Name:         lang.Name(t),
			Whisper:      route.Codes.Whisper,
			NLLB:         route.Codes.NLLB,
			Translates:   route.Translate,
			UrduIsNative: route.UrduIsNative,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"languages": out,
		"auto":      string(lang.Auto),
	})
}

// Models handles GET /api/v1/models.
func (h *LanguagesHandler) Models(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"models":  transcribe.ModelSizes(),
		"default": transcribe.DefaultModelSize,
	})
}
