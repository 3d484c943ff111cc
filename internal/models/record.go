package models

import (
	"sort"
	"time"
)

// Field is a canonical financial field name.
type Field string

const (
	FieldCurrentPrice             Field = "current_price"
	FieldMarketCap                Field = "market_cap"
	FieldSharesOutstanding        Field = "shares_outstanding"
	FieldTotalRevenue             Field = "total_revenue"
	FieldOperatingCashFlow        Field = "operating_cash_flow"
	FieldCapitalExpenditures      Field = "capital_expenditures"
	FieldNetIncome                Field = "net_income"
	FieldEBIT                     Field = "ebit"
	FieldIncomeTaxExpense         Field = "income_tax_expense"
	FieldEBT                      Field = "ebt"
	FieldDepreciationAmortization Field = "depreciation_amortization"
	FieldTotalCurrentAssets       Field = "total_current_assets"
	FieldTotalCurrentLiabilities  Field = "total_current_liabilities"
	FieldLongTermDebtIssued       Field = "long_term_debt_issued"
	FieldLongTermDebtRepaid       Field = "long_term_debt_repaid"
	FieldDividendsPaid            Field = "dividends_paid"
	FieldTotalShareholdersEquity  Field = "total_shareholders_equity"
	FieldTotalDebt                Field = "total_debt"
	FieldCashAndEquivalents       Field = "cash_and_equivalents"
	FieldFinancingCashFlow        Field = "financing_cash_flow"
)

// CanonicalFields lists every field the normalizer can produce.
var CanonicalFields = []Field{
	FieldCurrentPrice, FieldMarketCap, FieldSharesOutstanding, FieldTotalRevenue,
	FieldOperatingCashFlow, FieldCapitalExpenditures, FieldNetIncome, FieldEBIT,
	FieldIncomeTaxExpense, FieldEBT, FieldDepreciationAmortization, FieldTotalCurrentAssets,
	FieldTotalCurrentLiabilities, FieldLongTermDebtIssued, FieldLongTermDebtRepaid,
	FieldDividendsPaid, FieldTotalShareholdersEquity, FieldTotalDebt,
	FieldCashAndEquivalents, FieldFinancingCashFlow,
}

// IsMonetary reports whether values of the field are currency amounts
// (as opposed to counts such as shares outstanding or per-share prices).
func (f Field) IsMonetary() bool {
	return f != FieldSharesOutstanding && f != FieldCurrentPrice
}

// NormalizedFinancialRecord is one provider's view of one reporting period,
// mapped onto canonical fields. Absent fields are unknown, never zero.
// Monetary values are stored in base currency units.
type NormalizedFinancialRecord struct {
	Source          string            `json:"source"`
	Ticker          string            `json:"ticker"`
	CompanyName     string            `json:"company_name,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	ReportPeriodEnd time.Time         `json:"report_period_end"`
	Values          map[Field]float64 `json:"values"`
}

// NewRecord copies values into a new record.
func NewRecord(source, ticker string, periodEnd time.Time, values map[Field]float64) NormalizedFinancialRecord {
	cp := make(map[Field]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return NormalizedFinancialRecord{
		Source:          source,
		Ticker:          ticker,
		ReportPeriodEnd: periodEnd,
		Values:          cp,
	}
}

// Clone returns a copy that shares no map with r.
func (r NormalizedFinancialRecord) Clone() NormalizedFinancialRecord {
	out := r
	if r.Values != nil {
		out.Values = make(map[Field]float64, len(r.Values))
		for k, v := range r.Values {
			out.Values[k] = v
		}
	}
	return out
}

// CloneRecords deep-copies a history slice. A nil slice stays nil.
func CloneRecords(records []NormalizedFinancialRecord) []NormalizedFinancialRecord {
	if records == nil {
		return nil
	}
	out := make([]NormalizedFinancialRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the value and whether it is present.
func (r NormalizedFinancialRecord) Get(f Field) (float64, bool) {
	v, ok := r.Values[f]
	return v, ok
}

// Has reports whether the field is present.
func (r NormalizedFinancialRecord) Has(f Field) bool {
	_, ok := r.Values[f]
	return ok
}

// HasAll reports whether every field is present.
func (r NormalizedFinancialRecord) HasAll(fields ...Field) bool {
	for _, f := range fields {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

// PresentFields returns the present fields sorted by name.
func (r NormalizedFinancialRecord) PresentFields() []Field {
	out := make([]Field, 0, len(r.Values))
	for f := range r.Values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge returns a new record where fields missing from r are taken from other.
// Values already present in r win.
func (r NormalizedFinancialRecord) Merge(other NormalizedFinancialRecord) NormalizedFinancialRecord {
	out := NewRecord(r.Source, r.Ticker, r.ReportPeriodEnd, r.Values)
	out.CompanyName = r.CompanyName
	out.Currency = r.Currency
	for f, v := range other.Values {
		if _, ok := out.Values[f]; !ok {
			out.Values[f] = v
		}
	}
	if out.CompanyName == "" {
		out.CompanyName = other.CompanyName
	}
	if out.Currency == "" {
		out.Currency = other.Currency
	}
	if out.ReportPeriodEnd.IsZero() {
		out.ReportPeriodEnd = other.ReportPeriodEnd
	}
	return out
}

// RawPeriod holds one reporting period with provider-specific field names.
type RawPeriod struct {
	PeriodEnd time.Time              `json:"period_end"`
	Fields    map[string]interface{} `json:"fields"`
}

// RawPayload is the provider-specific result of one fetch, before normalization.
type RawPayload struct {
	Source      string                 `json:"source"`
	Ticker      string                 `json:"ticker"`
	CompanyName string                 `json:"company_name,omitempty"`
	Currency    string                 `json:"currency,omitempty"`
	Snapshot    map[string]interface{} `json:"snapshot,omitempty"`
	Periods     []RawPeriod            `json:"periods,omitempty"`
	CallsUsed   int                    `json:"calls_used"`
}

// Empty reports whether the payload carries no usable data.
func (p *RawPayload) Empty() bool {
	return p == nil || (len(p.Snapshot) == 0 && len(p.Periods) == 0)
}
