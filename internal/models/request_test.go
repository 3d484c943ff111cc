package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name      string
		ticker    string
		types     []DataType
		wantTypes []DataType
		wantKey   string
	}{
		{"empty means all", " aapl ", nil, AllDataTypes, "FUNDAMENTALS+PRICE+STATEMENTS"},
		{"all in any order", "AAPL", []DataType{DataTypeStatements, DataTypePrice, DataTypeFundamentals}, AllDataTypes, "FUNDAMENTALS+PRICE+STATEMENTS"},
		{"duplicates and case folded", "msft", []DataType{"price", DataTypePrice, " Price "}, []DataType{DataTypePrice}, "PRICE"},
		{"blank types dropped", "MSFT", []DataType{"", DataTypeStatements}, []DataType{DataTypeStatements}, "STATEMENTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest(tt.ticker, false, tt.types...)
			assert.Equal(t, tt.wantTypes, req.DataTypes)
			assert.Equal(t, tt.wantKey, req.TypesKey())
			assert.NotContains(t, req.Ticker, " ")
		})
	}
}

func TestRecordClone(t *testing.T) {
	rec := NewRecord("fmp", "MSFT", time.Time{}, map[Field]float64{FieldCurrentPrice: 415})
	history := []NormalizedFinancialRecord{rec}

	cp := rec.Clone()
	cp.Values[FieldCurrentPrice] = -1
	assert.Equal(t, 415.0, rec.Values[FieldCurrentPrice])

	hcp := CloneRecords(history)
	hcp[0].Values[FieldCurrentPrice] = -1
	assert.Equal(t, 415.0, history[0].Values[FieldCurrentPrice])

	assert.Nil(t, CloneRecords(nil))
	assert.Nil(t, NormalizedFinancialRecord{}.Clone().Values)
}
