package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

func TestValuationRequest_FlagsOverrideDefaults(t *testing.T) {
	config = common.NewDefaultConfig()
	require.NoError(t, valueCmd.ParseFlags([]string{"--discount-rate", "0.12", "--fcf-type", "lfcf", "--sensitivity"}))

	req, err := valuationRequest(valueCmd, "AAPL")
	require.NoError(t, err)

	defaults := config.Valuation.Assumptions
	assert.Equal(t, models.LFCF, req.FCFKind)
	assert.Equal(t, 0.12, req.Assumptions.DiscountRate)
	assert.Equal(t, defaults.TerminalGrowthRate, req.Assumptions.TerminalGrowthRate)
	assert.Equal(t, config.Valuation.SensitivityRates, req.DiscountRates)
	assert.Equal(t, config.Valuation.SensitivityGrowth, req.GrowthRates)
}

func TestPrintReport(t *testing.T) {
	upside := 5.0
	report := &valuation.Report{
		Ticker:     "AAPL",
		SourceUsed: "yahoo",
		Degraded:   true,
		Result: &models.DCFResult{
			FCFKind:           models.FCFF,
			EnterpriseValue:   models.Millions(1000),
			FairValuePerShare: 21,
			CurrentPrice:      20,
			UpsidePct:         &upside,
			SensitivityMatrix: &models.SensitivityMatrix{
				DiscountRates: []float64{0.02, 0.1},
				GrowthRates:   []float64{0.05},
				Cells: [][]models.SensitivityCell{
					{{DiscountRate: 0.02, GrowthRate: 0.05}},
					{{DiscountRate: 0.1, GrowthRate: 0.05, FairValue: 21, Valid: true}},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, report))
	out := buf.String()
	assert.Contains(t, out, "yahoo (degraded)")
	assert.Contains(t, out, "+5.0%")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "21.00")
}
