package models

import (
	"sort"
	"strings"
)

// DataType selects which slices of data a request needs.
type DataType string

const (
	DataTypePrice        DataType = "PRICE"
	DataTypeFundamentals DataType = "FUNDAMENTALS"
	DataTypeStatements   DataType = "STATEMENTS"
)

// AllDataTypes lists every data type, sorted the way NewRequest sorts them.
var AllDataTypes = []DataType{DataTypeFundamentals, DataTypePrice, DataTypeStatements}

// FinancialDataRequest is an immutable fetch request.
type FinancialDataRequest struct {
	Ticker       string     `json:"ticker"`
	DataTypes    []DataType `json:"data_types"`
	ForceRefresh bool       `json:"force_refresh"`
}

// NewRequest normalises the ticker and de-duplicates the data types.
// An empty type list means all types.
func NewRequest(ticker string, forceRefresh bool, types ...DataType) FinancialDataRequest {
	if len(types) == 0 {
		types = AllDataTypes
	}
	seen := make(map[DataType]bool, len(types))
	var uniq []DataType
	for _, t := range types {
		t = DataType(strings.ToUpper(strings.TrimSpace(string(t))))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		uniq = append(uniq, t)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	return FinancialDataRequest{
		Ticker:       strings.ToUpper(strings.TrimSpace(ticker)),
		DataTypes:    uniq,
		ForceRefresh: forceRefresh,
	}
}

// Wants reports whether the request includes the data type.
func (r FinancialDataRequest) Wants(t DataType) bool {
	for _, dt := range r.DataTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// TypesKey is the canonical, order-independent form of the data types.
func (r FinancialDataRequest) TypesKey() string {
	parts := make([]string, len(r.DataTypes))
	for i, t := range r.DataTypes {
		parts[i] = string(t)
	}
	sort.Strings(parts)
	return strings.Join(parts, "+")
}
