// Package providers holds helpers shared by the provider clients.
package providers

import (
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/valuer/internal/models"
)

// PeriodSet merges statement rows from several endpoints into one raw period
// per reporting date.
type PeriodSet struct {
	byDate map[time.Time]map[string]interface{}
}

// NewPeriodSet creates an empty set.
func NewPeriodSet() *PeriodSet {
	return &PeriodSet{byDate: make(map[time.Time]map[string]interface{})}
}

// Add merges fields into the period ending at end. Earlier values for the
// same name are kept.
func (p *PeriodSet) Add(end time.Time, fields map[string]interface{}) {
	if end.IsZero() || len(fields) == 0 {
		return
	}
	dst, ok := p.byDate[end]
	if !ok {
		dst = make(map[string]interface{}, len(fields))
		p.byDate[end] = dst
	}
	for k, v := range fields {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

// Len returns the number of distinct periods.
func (p *PeriodSet) Len() int {
	return len(p.byDate)
}

// Periods returns the periods oldest first, keeping at most limit of the most
// recent when limit > 0.
func (p *PeriodSet) Periods(limit int) []models.RawPeriod {
	out := make([]models.RawPeriod, 0, len(p.byDate))
	for end, fields := range p.byDate {
		out = append(out, models.RawPeriod{PeriodEnd: end, Fields: fields})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses the date formats providers use for period ends.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DefaultHistoryYears is how many annual periods providers keep.
const DefaultHistoryYears = 10
