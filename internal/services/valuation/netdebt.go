package valuation

import (
	"math"

	"github.com/ternarybob/valuer/internal/models"
)

// Net debt estimation methods. NetDebtFinancing and NetDebtBalanceSheet are
// also the accepted values of [valuation] net_debt_method.
const (
	NetDebtBalanceSheet = "balance_sheet"
	NetDebtFinancing    = "financing_flows"
	NetDebtNone         = "none"
)

// EstimateNetDebt returns net debt and the method that produced it.
//
// The default, NetDebtFinancing, sums debt issued minus debt repaid over the
// history and is zero when no period reports either. NetDebtBalanceSheet
// prefers total debt minus cash of the latest record that has both, then
// falls back to financing flows.
func EstimateNetDebt(history []models.NormalizedFinancialRecord, method string) (models.Amount, string) {
	if method == NetDebtBalanceSheet {
		if amount, ok := balanceSheetNetDebt(history); ok {
			return amount, NetDebtBalanceSheet
		}
	}
	if amount, ok := financingNetDebt(history); ok {
		return amount, NetDebtFinancing
	}
	return models.Units(0), NetDebtNone
}

func balanceSheetNetDebt(history []models.NormalizedFinancialRecord) (models.Amount, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		r := history[i]
		if r.HasAll(models.FieldTotalDebt, models.FieldCashAndEquivalents) {
			return models.Units(r.Values[models.FieldTotalDebt] - r.Values[models.FieldCashAndEquivalents]), true
		}
	}
	return models.Amount{}, false
}

func financingNetDebt(history []models.NormalizedFinancialRecord) (models.Amount, bool) {
	var sum float64
	found := false
	for _, r := range history {
		issued, hasIssued := r.Get(models.FieldLongTermDebtIssued)
		repaid, hasRepaid := r.Get(models.FieldLongTermDebtRepaid)
		if !hasIssued && !hasRepaid {
			continue
		}
		found = true
		sum += issued - math.Abs(repaid)
	}
	return models.Units(sum), found
}
