package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cryptoadvisor/pkg/advisor"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) advise(w http.ResponseWriter, r *http.Request) {
	var payload advicePayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.core.Advise(r.Context(), advisor.AdviceRequest{
		Message:   payload.Prompt,
		Portfolio: payload.Portfolio,
	})
	if err != nil {
		h.logger.Error("advice request failed",
			"holdings", len(payload.Portfolio),
			"err", err,
		)
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) analyzeCoin(w http.ResponseWriter, r *http.Request) {
	var payload coinAnalysisPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.core.AnalyzeCoin(r.Context(), advisor.CoinAnalysisRequest{
		Crypto: payload.Crypto,
		Action: payload.Action,
		Amount: payload.Amount,
	})
	if err != nil {
		h.logger.Error("coin analysis failed",
			"crypto", payload.Crypto,
			"action", payload.Action,
			"err", err,
		)
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) historicalPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.core.GetHistoricalPrices(r.Context(), advisor.HistoricalPricesRequest{
		Ticker:      chi.URLParam(r, "ticker"),
		Granularity: query.Get("granularity"),
		DaysBack:    parseIntDefault(query.Get("days_back"), 0),
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) adviceLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	result, err := h.core.GetAdviceLogs(limit, offset)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Helpers.

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}
