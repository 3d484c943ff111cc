package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodSet_MergesByDate(t *testing.T) {
	p := NewPeriodSet()
	d1 := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	p.Add(d2, map[string]interface{}{"netIncome": 2.0})
	p.Add(d1, map[string]interface{}{"netIncome": 1.0})
	p.Add(d2, map[string]interface{}{"totalCurrentAssets": 5.0, "netIncome": 99.0})
	p.Add(time.Time{}, map[string]interface{}{"ignored": 1.0})
	p.Add(d1, nil)

	periods := p.Periods(0)
	require.Len(t, periods, 2)
	assert.Equal(t, d1, periods[0].PeriodEnd)
	assert.Equal(t, 2.0, periods[1].Fields["netIncome"], "first value for a name wins")
	assert.Equal(t, 5.0, periods[1].Fields["totalCurrentAssets"])

	latest := p.Periods(1)
	require.Len(t, latest, 1)
	assert.Equal(t, d2, latest[0].PeriodEnd)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-09-28", "2024-09-28 00:00:00", "2024-09-28T16:00:00Z", " 2024-09-28 "} {
		got, ok := ParseDate(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDate("28/09/2024")
	assert.False(t, ok)
}
