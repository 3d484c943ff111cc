package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

// DataFetcher is the adapter surface the HTTP API uses.
type DataFetcher interface {
	FetchData(ctx context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse
	GetUsageReport() interfaces.UsageReport
	Invalidate(ctx context.Context, ticker string) int
}

// FinancialsHandler serves raw adapter fetches and usage.
type FinancialsHandler struct {
	fetcher DataFetcher
	logger  arbor.ILogger
}

// NewFinancialsHandler creates a new FinancialsHandler
func NewFinancialsHandler(fetcher DataFetcher, logger arbor.ILogger) *FinancialsHandler {
	return &FinancialsHandler{fetcher: fetcher, logger: logger}
}

// FetchHandler handles GET /api/fetch/{ticker}?types=PRICE,STATEMENTS&refresh=true
func (h *FinancialsHandler) FetchHandler(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if strings.TrimSpace(ticker) == "" {
		WriteKindError(w, models.KindInvalidTicker, "ticker is required")
		return
	}

	var types []models.DataType
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			types = append(types, models.DataType(t))
		}
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	resp := h.fetcher.FetchData(r.Context(), models.NewRequest(ticker, refresh, types...))
	status := http.StatusOK
	if !resp.Success {
		status = StatusForKind(resp.Error)
	}

	h.logger.Debug().
		Str("ticker", ticker).
		Bool("success", resp.Success).
		Str("source", resp.SourceUsed).
		Msg("Fetch served")

	WriteJSON(w, status, resp)
}

// UsageHandler handles GET /api/usage
func (h *FinancialsHandler) UsageHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.fetcher.GetUsageReport())
}

// InvalidateHandler handles DELETE /api/cache/{ticker}
func (h *FinancialsHandler) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
	if ticker == "" {
		WriteKindError(w, models.KindInvalidTicker, "ticker is required")
		return
	}

	removed := h.fetcher.Invalidate(r.Context(), ticker)
	h.logger.Info().Str("ticker", ticker).Int("removed", removed).Msg("Cache invalidated")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"removed": removed,
	})
}
