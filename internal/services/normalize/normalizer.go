// Package normalize maps provider payloads onto the canonical field schema.
package normalize

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/valuer/internal/models"
)

//go:embed mappings.yaml
var defaultMappings []byte

var zeroTime time.Time

type mappingFile struct {
	MagnitudeFields []string                   `yaml:"magnitude_fields"`
	Providers       map[string]providerMapping `yaml:"providers"`
}

type providerMapping struct {
	Scale  string              `yaml:"scale"`
	Fields map[string][]string `yaml:"fields"`
}

type table struct {
	scale   models.Scale
	aliases map[models.Field][]string
}

// Normalizer is safe for concurrent use; tables are read-only after construction.
type Normalizer struct {
	tables    map[string]table
	magnitude map[models.Field]bool
}

// New loads the built-in mapping tables.
func New() (*Normalizer, error) {
	return NewFromYAML(defaultMappings)
}

// NewFromYAML loads mapping tables in the mappings.yaml format.
func NewFromYAML(data []byte) (*Normalizer, error) {
	var mf mappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse field mappings: %w", err)
	}

	known := make(map[models.Field]bool, len(models.CanonicalFields))
	for _, f := range models.CanonicalFields {
		known[f] = true
	}

	n := &Normalizer{
		tables:    make(map[string]table, len(mf.Providers)),
		magnitude: make(map[models.Field]bool),
	}
	for _, name := range mf.MagnitudeFields {
		f := models.Field(name)
		if !known[f] {
			return nil, fmt.Errorf("unknown canonical field %q in magnitude_fields", name)
		}
		n.magnitude[f] = true
	}

	for id, pm := range mf.Providers {
		scale, err := parseScale(pm.Scale)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		t := table{scale: scale, aliases: make(map[models.Field][]string, len(pm.Fields))}
		for name, aliases := range pm.Fields {
			f := models.Field(name)
			if !known[f] {
				return nil, fmt.Errorf("provider %s: unknown canonical field %q", id, name)
			}
			t.aliases[f] = aliases
		}
		n.tables[strings.ToLower(id)] = t
	}
	return n, nil
}

// MustNew is New for package initialisation and tests.
func MustNew() *Normalizer {
	n, err := New()
	if err != nil {
		panic(err)
	}
	return n
}

// Sources returns the provider ids with a mapping table.
func (n *Normalizer) Sources() []string {
	ids := make([]string, 0, len(n.tables))
	for id := range n.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Normalize maps raw into one record: the latest reporting period overlaid
// with snapshot values such as price and market cap. Fields the provider did
// not supply are absent, never zero.
func (n *Normalizer) Normalize(raw *models.RawPayload, sourceID string) models.NormalizedFinancialRecord {
	history := n.NormalizeHistory(raw, sourceID)
	snapshot := n.snapshotRecord(raw, sourceID)
	if len(history) == 0 {
		return snapshot
	}
	return snapshot.Merge(history[len(history)-1])
}

// NormalizeHistory maps every reporting period, oldest first.
func (n *Normalizer) NormalizeHistory(raw *models.RawPayload, sourceID string) []models.NormalizedFinancialRecord {
	if raw == nil || len(raw.Periods) == 0 {
		return nil
	}
	t := n.tableFor(sourceID)

	periods := append([]models.RawPeriod(nil), raw.Periods...)
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].PeriodEnd.Before(periods[j].PeriodEnd) })

	out := make([]models.NormalizedFinancialRecord, 0, len(periods))
	for _, p := range periods {
		rec := models.NewRecord(sourceID, strings.ToUpper(raw.Ticker), p.PeriodEnd, n.mapFields(t, p.Fields))
		rec.CompanyName = raw.CompanyName
		rec.Currency = raw.Currency
		out = append(out, rec)
	}
	return out
}

func (n *Normalizer) snapshotRecord(raw *models.RawPayload, sourceID string) models.NormalizedFinancialRecord {
	if raw == nil {
		return models.NewRecord(sourceID, "", zeroTime, nil)
	}
	rec := models.NewRecord(sourceID, strings.ToUpper(raw.Ticker), zeroTime, n.mapFields(n.tableFor(sourceID), raw.Snapshot))
	rec.CompanyName = raw.CompanyName
	rec.Currency = raw.Currency
	return rec
}

// tableFor returns the provider's table, or an identity table keyed by
// canonical names for sources without one (e.g. spreadsheet imports).
func (n *Normalizer) tableFor(sourceID string) table {
	if t, ok := n.tables[strings.ToLower(sourceID)]; ok {
		return t
	}
	t := table{scale: models.ScaleUnits, aliases: make(map[models.Field][]string, len(models.CanonicalFields))}
	for _, f := range models.CanonicalFields {
		t.aliases[f] = []string{string(f)}
	}
	return t
}

func (n *Normalizer) mapFields(t table, fields map[string]interface{}) map[models.Field]float64 {
	values := make(map[models.Field]float64)
	if len(fields) == 0 {
		return values
	}
	for f, aliases := range t.aliases {
		for _, alias := range aliases {
			raw, ok := fields[alias]
			if !ok {
				continue
			}
			v, ok := ParseNumber(raw)
			if !ok {
				continue
			}
			if f.IsMonetary() && t.scale != models.ScaleUnits {
				v = models.Amount{Value: v, Scale: t.scale}.In(models.ScaleUnits)
			}
			if n.magnitude[f] {
				v = math.Abs(v)
			}
			values[f] = v
			break
		}
	}
	return values
}

// ParseNumber converts a provider value to float64. It accepts numbers,
// numeric strings with thousands separators, K/M/B/T suffixes and percent
// signs, and Yahoo-style {"raw": n} objects. Placeholders such as "None",
// "-" and "N/A" report ok=false.
func ParseNumber(v interface{}) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		return parseNumericString(x)
	case map[string]interface{}:
		raw, ok := x["raw"]
		if !ok {
			return 0, false
		}
		return ParseNumber(raw)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var suffixMultipliers = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
	'T': 1e12,
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "-", "none", "null", "n/a", "na", "nan":
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		multiplier = 0.01
	} else if m, ok := suffixMultipliers[strings.ToUpper(s[len(s)-1:])[0]]; ok {
		s = s[:len(s)-1]
		multiplier = m
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f * multiplier, true
}

func parseScale(s string) (models.Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "units":
		return models.ScaleUnits, nil
	case "thousands":
		return models.ScaleThousands, nil
	case "millions":
		return models.ScaleMillions, nil
	case "billions":
		return models.ScaleBillions, nil
	}
	return 0, fmt.Errorf("unknown scale %q", s)
}
