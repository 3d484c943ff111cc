package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/export"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

// Valuator runs a full valuation.
type Valuator interface {
	Run(ctx context.Context, req valuation.Request) (*valuation.Report, error)
}

// ValuationRequest is the POST /api/valuation body. Omitted assumption
// fields keep their configured defaults.
type ValuationRequest struct {
	Ticker        string                 `json:"ticker"`
	FCFType       string                 `json:"fcf_type"`
	Assumptions   *models.DCFAssumptions `json:"assumptions"`
	Sensitivity   bool                   `json:"sensitivity"`
	DiscountRates []float64              `json:"discount_rates"`
	GrowthRates   []float64              `json:"growth_rates"`
	ForceRefresh  bool                   `json:"force_refresh"`
}

// ValuationHandler serves DCF valuations.
type ValuationHandler struct {
	valuator Valuator
	defaults common.ValuationConfig
	logger   arbor.ILogger
}

// NewValuationHandler creates a new ValuationHandler
func NewValuationHandler(valuator Valuator, defaults common.ValuationConfig, logger arbor.ILogger) *ValuationHandler {
	return &ValuationHandler{valuator: valuator, defaults: defaults, logger: logger}
}

// ValuationHandler handles POST /api/valuation. ?format=csv returns the
// sectioned CSV export instead of JSON.
func (h *ValuationHandler) ValuationHandler(w http.ResponseWriter, r *http.Request) {
	assumptions := h.defaults.Assumptions
	body := ValuationRequest{Assumptions: &assumptions}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(body.Ticker) == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	req, err := h.request(body)
	if err != nil {
		WriteKindError(w, models.KindOf(err), err.Error())
		return
	}

	report, err := h.valuator.Run(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("ticker", body.Ticker).Msg("Valuation failed")
		WriteKindError(w, models.KindOf(err), err.Error())
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.ToLower(report.Ticker)+"_valuation.csv"))
		if err := export.WriteCSV(w, export.FromValuation(report)); err != nil {
			h.logger.Error().Err(err).Msg("Failed to write CSV export")
		}
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *ValuationHandler) request(body ValuationRequest) (valuation.Request, error) {
	kind := models.FCFKind(strings.ToUpper(body.FCFType))
	if kind == "" {
		kind = models.FCFKind(h.defaults.FCFType)
	}
	if _, ok := (models.FCFSet{}).Get(kind); !ok {
		return valuation.Request{}, models.Errorf(models.KindInvalidAssumptions, "valuation request", "unknown fcf_type %q", body.FCFType)
	}

	a := h.defaults.Assumptions
	if body.Assumptions != nil {
		a = *body.Assumptions
	}

	req := valuation.Request{
		Ticker:       body.Ticker,
		FCFKind:      kind,
		Assumptions:  a,
		ForceRefresh: body.ForceRefresh,
	}
	if body.Sensitivity {
		req.DiscountRates = body.DiscountRates
		if len(req.DiscountRates) == 0 {
			req.DiscountRates = h.defaults.SensitivityRates
		}
		req.GrowthRates = body.GrowthRates
		if len(req.GrowthRates) == 0 {
			req.GrowthRates = h.defaults.SensitivityGrowth
		}
	}
	return req, nil
}
