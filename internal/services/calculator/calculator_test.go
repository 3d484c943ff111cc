package calculator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
)

func yearEnd(y int) time.Time {
	return time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC)
}

func rec(year int, values map[models.Field]float64) models.NormalizedFinancialRecord {
	return models.NewRecord("test", "ACME", yearEnd(year), values)
}

// history holds three years in units: 2022 and 2023 produce FCF points.
func history() []models.NormalizedFinancialRecord {
	return []models.NormalizedFinancialRecord{
		rec(2023, map[models.Field]float64{
			models.FieldEBIT:                     150e6,
			models.FieldDepreciationAmortization: 15e6,
			models.FieldCapitalExpenditures:      50e6,
			models.FieldTotalCurrentAssets:       250e6,
			models.FieldTotalCurrentLiabilities:  120e6,
			models.FieldNetIncome:                100e6,
			models.FieldOperatingCashFlow:        160e6,
		}),
		rec(2021, map[models.Field]float64{
			models.FieldEBIT:                     100e6,
			models.FieldIncomeTaxExpense:         20e6,
			models.FieldEBT:                      100e6,
			models.FieldDepreciationAmortization: 10e6,
			models.FieldCapitalExpenditures:      -30e6,
			models.FieldTotalCurrentAssets:       200e6,
			models.FieldTotalCurrentLiabilities:  100e6,
			models.FieldNetIncome:                80e6,
			models.FieldOperatingCashFlow:        120e6,
			models.FieldLongTermDebtIssued:       5e6,
			models.FieldLongTermDebtRepaid:       2e6,
		}),
		rec(2022, map[models.Field]float64{
			models.FieldEBIT:                     120e6,
			models.FieldIncomeTaxExpense:         50e6,
			models.FieldEBT:                      100e6,
			models.FieldDepreciationAmortization: 12e6,
			models.FieldCapitalExpenditures:      -40e6,
			models.FieldTotalCurrentAssets:       230e6,
			models.FieldTotalCurrentLiabilities:  110e6,
			models.FieldNetIncome:                90e6,
			models.FieldOperatingCashFlow:        140e6,
			models.FieldLongTermDebtRepaid:       3e6,
		}),
	}
}

func newService() *Service {
	return NewService(DefaultOptions(), arbor.NewLogger())
}

func assertSeries(t *testing.T, s models.FCFSeries, years []int, millions []float64) {
	t.Helper()
	require.Equal(t, len(years), s.Len())
	for i, p := range s.Values {
		assert.Equal(t, years[i], p.Period.Year())
		assert.Equal(t, models.ScaleMillions, p.Amount.Scale)
		assert.InDelta(t, millions[i], p.Amount.Value, 1e-6)
	}
}

func TestTaxRate(t *testing.T) {
	svc := newService()
	tests := []struct {
		name          string
		values        map[models.Field]float64
		want          float64
		wantDefaulted bool
	}{
		{"effective rate", map[models.Field]float64{models.FieldIncomeTaxExpense: 21, models.FieldEBT: 100}, 0.21, false},
		{"clamped to max", map[models.Field]float64{models.FieldIncomeTaxExpense: 60, models.FieldEBT: 100}, 0.35, false},
		{"negative inputs use magnitudes", map[models.Field]float64{models.FieldIncomeTaxExpense: -10, models.FieldEBT: -50}, 0.2, false},
		{"zero tax", map[models.Field]float64{models.FieldIncomeTaxExpense: 0, models.FieldEBT: 100}, 0, false},
		{"ebt zero", map[models.Field]float64{models.FieldIncomeTaxExpense: 10, models.FieldEBT: 0}, 0.25, true},
		{"ebt absent", map[models.Field]float64{models.FieldIncomeTaxExpense: 10}, 0.25, true},
		{"tax absent", map[models.Field]float64{models.FieldEBT: 100}, 0.25, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, defaulted := svc.TaxRate(rec(2024, tt.values))
			assert.InDelta(t, tt.want, rate, 1e-12)
			assert.Equal(t, tt.wantDefaulted, defaulted)
		})
	}
}

func TestTaxRate_ConfiguredDefaults(t *testing.T) {
	svc := NewService(Options{DefaultTaxRate: 0.3, MaxTaxRate: 0.4}, nil)

	rate, _ := svc.TaxRate(rec(2024, nil))
	assert.Equal(t, 0.3, rate)

	rate, _ = svc.TaxRate(rec(2024, map[models.Field]float64{models.FieldIncomeTaxExpense: 90, models.FieldEBT: 100}))
	assert.Equal(t, 0.4, rate)
}

func TestWorkingCapitalDelta(t *testing.T) {
	h := history()
	delta, ok := WorkingCapitalDelta(h[1], h[2])
	require.True(t, ok)
	assert.Equal(t, 20e6, delta)

	_, ok = WorkingCapitalDelta(rec(2020, nil), h[1])
	assert.False(t, ok)
}

func TestFCFF(t *testing.T) {
	// 2022: 120*(1-0.35) + 12 - 20 - 40 = 30
	// 2023: 150*(1-0.25) + 15 - 10 - 50 = 67.5 (tax defaults without ebt)
	assertSeries(t, newService().FCFF(history()), []int{2022, 2023}, []float64{30, 67.5})
}

func TestFCFE(t *testing.T) {
	// 2022: 90 + 12 - 20 - 40 + (0 - 3) = 39
	// 2023 reports no debt flows and has no point.
	assertSeries(t, newService().FCFE(history()), []int{2022}, []float64{39})

	h := history()
	h[0].Values[models.FieldLongTermDebtIssued] = 4e6 // 2023
	// 2023: 100 + 15 - 10 - 50 + 4 = 59
	assertSeries(t, newService().FCFE(h), []int{2022, 2023}, []float64{39, 59})
}

func TestNetBorrowing(t *testing.T) {
	tests := []struct {
		name   string
		values map[models.Field]float64
		want   float64
		wantOK bool
	}{
		{"both reported", map[models.Field]float64{models.FieldLongTermDebtIssued: 10, models.FieldLongTermDebtRepaid: 4}, 6, true},
		{"repayment sign ignored", map[models.Field]float64{models.FieldLongTermDebtIssued: 10, models.FieldLongTermDebtRepaid: -4}, 6, true},
		{"issued only", map[models.Field]float64{models.FieldLongTermDebtIssued: 10}, 10, true},
		{"repaid only", map[models.Field]float64{models.FieldLongTermDebtRepaid: 3}, -3, true},
		{"explicit zero", map[models.Field]float64{models.FieldLongTermDebtIssued: 0}, 0, true},
		{"neither reported", map[models.Field]float64{models.FieldNetIncome: 1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NetBorrowing(rec(2024, tt.values))
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestLFCF(t *testing.T) {
	assertSeries(t, newService().LFCF(history()), []int{2022, 2023}, []float64{100, 110})
}

func TestSeries_OmitsPeriodsWithoutInputs(t *testing.T) {
	h := history()
	delete(h[2].Values, models.FieldDepreciationAmortization) // 2022

	svc := newService()
	assert.Zero(t, svc.FCFF(h).Len(), "2022 lacks D&A and is the predecessor of 2023")
	assertSeries(t, svc.LFCF(h), []int{2022, 2023}, []float64{100, 110})

	for _, p := range svc.FCFE(h).Values {
		assert.NotZero(t, p.Amount.Value, "series are never zero-filled")
	}
}

func TestCalculateAllFCFTypes(t *testing.T) {
	svc := newService()

	set, err := svc.CalculateAllFCFTypes(history())
	require.NoError(t, err)
	assert.Equal(t, 2, set.FCFF.Len())
	assert.Equal(t, 1, set.FCFE.Len(), "2023 lacks debt flows")
	assert.Equal(t, 2, set.LFCF.Len())

	series, ok := set.Get(models.LFCF)
	require.True(t, ok)
	assert.Equal(t, models.LFCF, series.Kind)
}

func TestCalculateAllFCFTypes_InsufficientData(t *testing.T) {
	svc := newService()
	tests := []struct {
		name    string
		history []models.NormalizedFinancialRecord
	}{
		{"empty", nil},
		{"single period", history()[:1]},
		{"no inputs", []models.NormalizedFinancialRecord{rec(2022, nil), rec(2023, map[models.Field]float64{models.FieldNetIncome: 1})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CalculateAllFCFTypes(tt.history)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInsufficientData))
		})
	}
}

func TestCAGR(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		end    float64
		years  int
		want   float64
		wantOK bool
	}{
		{"two years of 10%", 100, 121, 2, 0.1, true},
		{"decline", 100, 81, 2, -0.1, true},
		{"both negative uses magnitudes", -100, -121, 2, 0.1, true},
		{"to zero", 100, 0, 1, -1, true},
		{"zero start", 0, 50, 3, 0, false},
		{"sign change", -100, 50, 1, 0, false},
		{"no years", 100, 110, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CAGR(tt.start, tt.end, tt.years)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestGrowthRates(t *testing.T) {
	s := models.SeriesFromMillions(models.FCFF, 2024, 1000, 1100, -50, 1331)
	rates := GrowthRates(s)
	require.Len(t, rates, 4)

	assert.Equal(t, "2021-2022", rates[0].Label)
	require.NotNil(t, rates[0].Rate)
	assert.InDelta(t, 0.1, *rates[0].Rate, 1e-12)
	assert.Nil(t, rates[1].Rate, "sign change is undefined")
	assert.Nil(t, rates[2].Rate)

	assert.Equal(t, "CAGR 2021-2024", rates[3].Label)
	assert.Equal(t, 3, rates[3].Years)
	assert.InDelta(t, 0.1, *rates[3].Rate, 1e-12)

	assert.Nil(t, GrowthRates(models.SeriesFromMillions(models.FCFF, 2024, 5)))
}
