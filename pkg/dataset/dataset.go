// Package dataset loads and normalizes the per-year technology usage data.
//
// A [Dataset] holds an ascending sequence of years and a list of
// technologies, each with a usage series keyed by year string. Usage values
// are integers in [0,10]; absent or malformed entries read as 0.
//
// Decoding is deliberately lenient: a payload that parses but has missing or
// malformed fields yields an empty (or partial) dataset rather than an
// error. Only bytes that cannot be parsed at all fail.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/matzehuels/techmap/pkg/cache"
	"github.com/matzehuels/techmap/pkg/errors"
)

// MaxUsage is the highest usage score.
const MaxUsage = 10

// Dataset is the decoded usage payload.
type Dataset struct {
	Years []int  `json:"years" yaml:"years" bson:"years"`
	Tech  []Tech `json:"tech" yaml:"tech" bson:"tech"`
}

// Tech is one tracked technology and its usage series.
type Tech struct {
	Name   string         `json:"name" yaml:"name" bson:"name"`
	Series map[string]int `json:"series" yaml:"series" bson:"series"`
}

// Usage returns the usage score for year, clamped to [0, MaxUsage].
// Missing years read as 0.
func (t Tech) Usage(year int) int {
	v, ok := t.Series[strconv.Itoa(year)]
	if !ok {
		return 0
	}
	return min(max(v, 0), MaxUsage)
}

// Empty reports whether the dataset has nothing to lay out.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Years) == 0 || len(d.Tech) == 0
}

// HasYear reports whether year is part of the year sequence.
func (d *Dataset) HasYear(year int) bool {
	if d == nil {
		return false
	}
	i := sort.SearchInts(d.Years, year)
	return i < len(d.Years) && d.Years[i] == year
}

// Lookup returns the tech with the given name.
func (d *Dataset) Lookup(name string) (Tech, bool) {
	if d == nil {
		return Tech{}, false
	}
	for _, t := range d.Tech {
		if t.Name == name {
			return t, true
		}
	}
	return Tech{}, false
}

// Latest returns the last year of the sequence, or 0 for an empty dataset.
func (d *Dataset) Latest() int {
	if d == nil || len(d.Years) == 0 {
		return 0
	}
	return d.Years[len(d.Years)-1]
}

// Normalize sorts and deduplicates years, drops unnamed and duplicate techs
// (the first occurrence wins) and clamps usage into [0, MaxUsage]. Series
// keys outside the year sequence are kept but reported as warnings.
func (d *Dataset) Normalize() []string {
	if d == nil {
		return nil
	}
	var warnings []string

	sort.Ints(d.Years)
	years := d.Years[:0]
	for i, y := range d.Years {
		if i > 0 && y == d.Years[i-1] {
			warnings = append(warnings, fmt.Sprintf("duplicate year %d", y))
			continue
		}
		years = append(years, y)
	}
	d.Years = years

	seen := make(map[string]bool, len(d.Tech))
	techs := d.Tech[:0]
	for _, t := range d.Tech {
		if err := errors.ValidateTechName(t.Name); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropping tech %q: %s", t.Name, errors.UserMessage(err)))
			continue
		}
		if seen[t.Name] {
			warnings = append(warnings, fmt.Sprintf("duplicate tech %q ignored", t.Name))
			continue
		}
		seen[t.Name] = true

		keys := make([]string, 0, len(t.Series))
		for k := range t.Series {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := t.Series[k]
			if v < 0 || v > MaxUsage {
				warnings = append(warnings, fmt.Sprintf("%s: usage %d for %s clamped", t.Name, v, k))
				t.Series[k] = min(max(v, 0), MaxUsage)
			}
			y, err := strconv.Atoi(k)
			if err != nil || !d.HasYear(y) {
				warnings = append(warnings, fmt.Sprintf("%s: series key %q is not a dataset year", t.Name, k))
			}
		}
		if t.Series == nil {
			t.Series = map[string]int{}
		}
		techs = append(techs, t)
	}
	d.Tech = techs
	return warnings
}

// Hash returns a content hash used in cache keys.
func (d *Dataset) Hash() string {
	data, _ := json.Marshal(d)
	return cache.Hash(data)
}

// fromLoose builds a dataset from a generically decoded document, skipping
// anything that does not have the expected shape.
func fromLoose(doc any) *Dataset {
	ds := &Dataset{}
	root, ok := asMap(doc)
	if !ok {
		return ds
	}
	if years, ok := root["years"].([]any); ok {
		for _, y := range years {
			if v, ok := asInt(y); ok {
				ds.Years = append(ds.Years, v)
			}
		}
	}
	techs, _ := root["tech"].([]any)
	for _, raw := range techs {
		m, ok := asMap(raw)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		t := Tech{Name: name, Series: map[string]int{}}
		if series, ok := asMap(m["series"]); ok {
			for k, v := range series {
				if n, ok := asInt(v); ok {
					t.Series[k] = n
				}
			}
		}
		ds.Tech = append(ds.Tech, t)
	}
	return ds
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Round(n)), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
