package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/mstuts/ur-engine/internal/database"
)

// QueryHandler exposes read-only SQL over the transcript history, for
// asking questions the canned filters cannot (per-language warning
// rates, model-size comparisons). Gated behind RequireAuth.
type QueryHandler struct {
	db *database.DB
}

func NewQueryHandler(db *database.DB) *QueryHandler {
	return &QueryHandler{db: db}
}

// queryLimitDefault caps result sets when the caller sends no limit;
// queryLimitMax is the hard ceiling either way.
const (
	queryLimitDefault = 1000
	queryLimitMax     = 50000
)

type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
	Limit  int    `json:"limit"`
}

func (h *QueryHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req queryRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sql := strings.TrimSpace(req.SQL)
	if sql == "" {
		WriteError(w, http.StatusBadRequest, "sql field is required")
		return
	}

	// One statement per request; the read-only transaction is the real
	// guard, this just produces a clearer error.
	if strings.Contains(sql, ";") {
		log.Warn().Str("sql", sql).Msg("query rejected: semicolons forbidden")
		WriteError(w, http.StatusBadRequest, "multiple statements not allowed (semicolons are forbidden)")
		return
	}

	maxRows := req.Limit
	if maxRows <= 0 {
		maxRows = queryLimitDefault
	}
	if maxRows > queryLimitMax {
		WriteError(w, http.StatusBadRequest, "limit must be <= 50000")
		return
	}

	if req.Params == nil {
		req.Params = []any{}
	}

	log.Info().Str("sql", sql).Int("limit", maxRows).Msg("executing transcript query")

	result, err := h.db.ExecuteReadOnlyQuery(r.Context(), sql, req.Params, maxRows)
	if err != nil {
		log.Warn().Err(err).Str("sql", sql).Msg("transcript query failed")
		WriteErrorDetail(w, http.StatusBadRequest, "query failed", err.Error())
		return
	}

	log.Info().Str("sql", sql).Int("row_count", result.RowCount).Msg("transcript query completed")
	WriteJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) Routes(r chi.Router) {
	r.Post("/query", h.ExecuteQuery)
}
