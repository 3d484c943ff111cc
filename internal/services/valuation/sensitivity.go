package valuation

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/valuer/internal/models"
)

// SensitivityAnalysis revalues the series for every (discount rate, growth
// rate) pair. The growth axis replaces stage-1 growth. Cells are computed in
// parallel; each writes only its own slot. A cell whose discount rate does
// not exceed terminal growth is marked invalid instead of failing the grid.
func (s *Service) SensitivityAnalysis(ctx context.Context, series models.FCFSeries, a models.DCFAssumptions, market models.MarketContext, discountRates, growthRates []float64) (*models.SensitivityMatrix, error) {
	if len(discountRates) == 0 || len(growthRates) == 0 {
		return nil, models.Errorf(models.KindInvalidAssumptions, "sensitivity analysis", "both rate grids must be non-empty")
	}
	base, _, err := s.baseFCF(series)
	if err != nil {
		return nil, err
	}

	m := &models.SensitivityMatrix{
		DiscountRates: append([]float64(nil), discountRates...),
		GrowthRates:   append([]float64(nil), growthRates...),
		Cells:         make([][]models.SensitivityCell, len(discountRates)),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]models.SensitivityCell, len(growthRates))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range discountRates {
		for j, growth := range growthRates {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				m.Cells[i][j] = cell(base, a, market, r, growth)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

func cell(base models.Amount, a models.DCFAssumptions, market models.MarketContext, discountRate, growth float64) models.SensitivityCell {
	c := models.SensitivityCell{DiscountRate: discountRate, GrowthRate: growth}
	a.DiscountRate = discountRate
	a.GrowthRateStage1 = growth
	if err := a.Validate(); err != nil {
		c.Error = models.KindOf(err)
		return c
	}
	result, err := value(base, a, market)
	if err != nil {
		c.Error = models.KindOf(err)
		return c
	}
	c.FairValue = result.FairValuePerShare
	c.Valid = true
	return c
}
