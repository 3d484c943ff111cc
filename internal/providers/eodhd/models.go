package eodhd

// FundamentalsResponse is the subset of /fundamentals used for valuation.
type FundamentalsResponse struct {
	General     GeneralInfo `json:"General"`
	Highlights  Highlights  `json:"Highlights"`
	SharesStats SharesStats `json:"SharesStats"`
	Financials  *Financials `json:"Financials"`
}

// GeneralInfo contains general company information.
type GeneralInfo struct {
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Exchange     string `json:"Exchange"`
	CurrencyCode string `json:"CurrencyCode"`
}

// Highlights contains key financial highlights. Values may be numbers,
// numeric strings or null, so they are left untyped.
type Highlights struct {
	MarketCapitalization interface{} `json:"MarketCapitalization"`
	EBITDA               interface{} `json:"EBITDA"`
	EarningsShare        interface{} `json:"EarningsShare"`
}

// SharesStats contains share count information.
type SharesStats struct {
	SharesOutstanding interface{} `json:"SharesOutstanding"`
	SharesFloat       interface{} `json:"SharesFloat"`
}

// Financials contains financial statements.
type Financials struct {
	BalanceSheet    FinancialStatement `json:"Balance_Sheet"`
	CashFlow        FinancialStatement `json:"Cash_Flow"`
	IncomeStatement FinancialStatement `json:"Income_Statement"`
}

// FinancialStatement holds statement rows keyed by period end date.
type FinancialStatement struct {
	CurrencySymbol string                            `json:"currency_symbol"`
	Yearly         map[string]map[string]interface{} `json:"yearly"`
}

// Quote is a /real-time response.
type Quote struct {
	Code          string      `json:"code"`
	Timestamp     interface{} `json:"timestamp"`
	Close         interface{} `json:"close"`
	PreviousClose interface{} `json:"previousClose"`
	Volume        interface{} `json:"volume"`
}
