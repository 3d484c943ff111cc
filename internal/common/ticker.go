package common

import (
	"strings"
)

// Ticker is a parsed, exchange-qualified ticker.
// Format: EXCHANGE:CODE (e.g. "NASDAQ:AAPL", "ASX:BHP"). A bare code uses DefaultExchange.
type Ticker struct {
	Exchange string
	Code     string
	Raw      string
}

type exchangeSymbols struct {
	eodhd string
	yahoo string
	isUS  bool
}

// exchanges maps exchange codes to provider symbol suffixes
var exchanges = map[string]exchangeSymbols{
	"US":     {eodhd: ".US", yahoo: "", isUS: true},
	"NYSE":   {eodhd: ".US", yahoo: "", isUS: true},
	"NASDAQ": {eodhd: ".US", yahoo: "", isUS: true},
	"AMEX":   {eodhd: ".US", yahoo: "", isUS: true},
	"ASX":    {eodhd: ".AU", yahoo: ".AX"},
	"LSE":    {eodhd: ".LSE", yahoo: ".L"},
	"TSX":    {eodhd: ".TO", yahoo: ".TO"},
	"XETRA":  {eodhd: ".XETRA", yahoo: ".DE"},
}

// DefaultExchange is used for tickers without an exchange prefix
var DefaultExchange = "US"

// ParseTicker parses "EXCHANGE:CODE", "EXCHANGE.CODE" (known exchanges only) or "CODE".
// Codes are upper-cased and may contain dots, e.g. "BRK.B".
func ParseTicker(ticker string) Ticker {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Ticker{}
	}

	if idx := strings.Index(ticker, ":"); idx > 0 {
		return Ticker{
			Exchange: strings.ToUpper(ticker[:idx]),
			Code:     strings.ToUpper(ticker[idx+1:]),
			Raw:      ticker,
		}
	}

	if idx := strings.Index(ticker, "."); idx > 0 {
		prefix := strings.ToUpper(ticker[:idx])
		if _, ok := exchanges[prefix]; ok {
			return Ticker{Exchange: prefix, Code: strings.ToUpper(ticker[idx+1:]), Raw: ticker}
		}
	}

	return Ticker{
		Exchange: DefaultExchange,
		Code:     strings.ToUpper(ticker),
		Raw:      ticker,
	}
}

// String returns the exchange-qualified form
func (t Ticker) String() string {
	if t.Exchange == "" || t.Code == "" {
		return t.Code
	}
	return t.Exchange + ":" + t.Code
}

// IsUS reports whether the ticker trades on a US exchange
func (t Ticker) IsUS() bool {
	ex, ok := exchanges[t.Exchange]
	return ok && ex.isUS
}

// EODHDSymbol returns CODE.SUFFIX, e.g. "NASDAQ:AAPL" -> "AAPL.US"
func (t Ticker) EODHDSymbol() string {
	if t.Code == "" {
		return ""
	}
	if ex, ok := exchanges[t.Exchange]; ok {
		return t.Code + ex.eodhd
	}
	return t.Code + "." + t.Exchange
}

// YahooSymbol returns the Yahoo-style symbol also used by FMP and Alpha Vantage,
// e.g. "ASX:BHP" -> "BHP.AX". US share classes use a dash: "BRK.B" -> "BRK-B".
func (t Ticker) YahooSymbol() string {
	if t.Code == "" {
		return ""
	}
	ex, ok := exchanges[t.Exchange]
	if !ok {
		return t.Code
	}
	if ex.isUS {
		return strings.ReplaceAll(t.Code, ".", "-")
	}
	return t.Code + ex.yahoo
}

// ParseTickers parses a list, dropping empty entries
func ParseTickers(tickers []string) []Ticker {
	result := make([]Ticker, 0, len(tickers))
	for _, t := range tickers {
		if parsed := ParseTicker(t); parsed.Code != "" {
			result = append(result, parsed)
		}
	}
	return result
}
