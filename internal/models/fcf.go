package models

import "time"

// FCFKind selects a free-cash-flow measure.
type FCFKind string

const (
	FCFF FCFKind = "FCFF"
	FCFE FCFKind = "FCFE"
	LFCF FCFKind = "LFCF"
)

// FCFPoint is one period of a free-cash-flow series.
type FCFPoint struct {
	Period time.Time `json:"period"`
	Amount Amount    `json:"amount"`
}

// FCFSeries is a chronologically ordered series. It only contains periods
// whose inputs were all available; nothing is padded.
type FCFSeries struct {
	Kind   FCFKind    `json:"kind"`
	Values []FCFPoint `json:"values"`
}

// Len returns the number of periods.
func (s FCFSeries) Len() int {
	return len(s.Values)
}

// Latest returns the newest point.
func (s FCFSeries) Latest() (FCFPoint, bool) {
	if len(s.Values) == 0 {
		return FCFPoint{}, false
	}
	return s.Values[len(s.Values)-1], true
}

// AmountsIn returns the values converted to the given scale.
func (s FCFSeries) AmountsIn(scale Scale) []float64 {
	out := make([]float64, len(s.Values))
	for i, p := range s.Values {
		out[i] = p.Amount.In(scale)
	}
	return out
}

// SeriesFromMillions builds a series from plain figures in millions. Periods
// are synthetic year ends counting back from the last value. Used by callers
// that supply their own figures (spreadsheets, tests).
func SeriesFromMillions(kind FCFKind, lastYear int, values ...float64) FCFSeries {
	s := FCFSeries{Kind: kind}
	first := lastYear - len(values) + 1
	for i, v := range values {
		s.Values = append(s.Values, FCFPoint{
			Period: time.Date(first+i, time.December, 31, 0, 0, 0, 0, time.UTC),
			Amount: Millions(v),
		})
	}
	return s
}

// FCFSet holds the three series computed from one history.
type FCFSet struct {
	FCFF FCFSeries `json:"fcff"`
	FCFE FCFSeries `json:"fcfe"`
	LFCF FCFSeries `json:"lfcf"`
}

// Get returns the series of the given kind.
func (s FCFSet) Get(kind FCFKind) (FCFSeries, bool) {
	switch kind {
	case FCFF:
		return s.FCFF, true
	case FCFE:
		return s.FCFE, true
	case LFCF:
		return s.LFCF, true
	}
	return FCFSeries{}, false
}

// GrowthRate is a period-over-period (or compound) growth figure. Rate is nil
// when growth is undefined (zero start or sign change).
type GrowthRate struct {
	Label string   `json:"label"`
	Years int      `json:"years"`
	Rate  *float64 `json:"rate,omitempty"`
}
