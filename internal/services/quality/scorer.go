// Package quality scores how complete a normalized record is for a given use.
package quality

import (
	"sort"

	"github.com/ternarybob/valuer/internal/models"
)

// Bucket thresholds on the overall score.
const (
	CompleteThreshold = 0.8
	PartialThreshold  = 0.5
)

// Analysis names a consumer with its own required-field set.
type Analysis string

const (
	AnalysisPrice     Analysis = "price"
	AnalysisFCF       Analysis = "fcf"
	AnalysisDCF       Analysis = "dcf"
	AnalysisBookValue Analysis = "book_value"
)

var (
	priceFields = []models.Field{
		models.FieldCurrentPrice,
	}
	fundamentalFields = []models.Field{
		models.FieldMarketCap,
		models.FieldSharesOutstanding,
		models.FieldTotalRevenue,
		models.FieldNetIncome,
	}
	fcfFields = []models.Field{
		models.FieldOperatingCashFlow,
		models.FieldCapitalExpenditures,
		models.FieldNetIncome,
		models.FieldEBIT,
		models.FieldIncomeTaxExpense,
		models.FieldEBT,
		models.FieldDepreciationAmortization,
		models.FieldTotalCurrentAssets,
		models.FieldTotalCurrentLiabilities,
	}
	bookValueFields = []models.Field{
		models.FieldTotalShareholdersEquity,
		models.FieldSharesOutstanding,
		models.FieldCurrentPrice,
		models.FieldTotalDebt,
		models.FieldCashAndEquivalents,
	}
)

// RequiredFor returns the required-field set for an analysis.
func RequiredFor(a Analysis) []models.Field {
	switch a {
	case AnalysisPrice:
		return union(priceFields)
	case AnalysisFCF:
		return union(fcfFields)
	case AnalysisDCF:
		return union(fcfFields, []models.Field{models.FieldSharesOutstanding, models.FieldCurrentPrice})
	case AnalysisBookValue:
		return union(bookValueFields)
	}
	return nil
}

// RequiredForRequest derives the required set from the data types asked for.
func RequiredForRequest(req models.FinancialDataRequest) []models.Field {
	var sets [][]models.Field
	if req.Wants(models.DataTypePrice) {
		sets = append(sets, priceFields)
	}
	if req.Wants(models.DataTypeFundamentals) {
		sets = append(sets, fundamentalFields)
	}
	if req.Wants(models.DataTypeStatements) {
		sets = append(sets, fcfFields)
	}
	return union(sets...)
}

// Score computes |present ∩ required| / |required| and its bucket. An empty
// required set scores 1 for a record with any value and 0 for an empty one.
func Score(record models.NormalizedFinancialRecord, required []models.Field) models.QualityMetrics {
	required = union(required)

	m := models.QualityMetrics{
		PresentFields: []models.Field{},
		MissingFields: []models.Field{},
	}
	for _, f := range required {
		if record.Has(f) {
			m.PresentFields = append(m.PresentFields, f)
		} else {
			m.MissingFields = append(m.MissingFields, f)
		}
	}

	switch {
	case len(required) > 0:
		m.OverallScore = float64(len(m.PresentFields)) / float64(len(required))
	case len(record.Values) > 0:
		m.OverallScore = 1
	}
	m.CompletenessBucket = BucketFor(m.OverallScore)
	return m
}

// BucketFor maps a score to its completeness bucket.
func BucketFor(score float64) models.CompletenessBucket {
	switch {
	case score >= CompleteThreshold:
		return models.BucketComplete
	case score >= PartialThreshold:
		return models.BucketPartial
	case score > 0:
		return models.BucketMinimal
	}
	return models.BucketEmpty
}

// union de-duplicates and sorts the given sets.
func union(sets ...[]models.Field) []models.Field {
	seen := make(map[models.Field]bool)
	var out []models.Field
	for _, set := range sets {
		for _, f := range set {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
