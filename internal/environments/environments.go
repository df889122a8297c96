// Package environments defines the routable backend environments and the
// weight table used to split traffic between them.
//
// The weight table is ordered: the first declared entry is the Default
// Environment, used for bots and as the last-resort fallback. Map iteration
// order never decides it.
package environments

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyTable is returned when a weight table has no entries.
	ErrEmptyTable = errors.New("weight table must contain at least one environment")

	// ErrInvalidWeight is returned for a weight that is not a positive finite number.
	ErrInvalidWeight = errors.New("environment weight must be greater than 0")

	// ErrEmptyName is returned when an entry has no environment name.
	ErrEmptyName = errors.New("environment name cannot be empty")

	// ErrDuplicateName is returned when the same environment is declared twice.
	ErrDuplicateName = errors.New("duplicate environment name")
)

// Resolution is a concrete, routable backend: an environment name and the
// base URL it is currently served from. It is a value type and never mutated.
type Resolution struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Weight is a single weight table entry as declared in configuration.
type Weight struct {
	Name   string  `json:"name" yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// WeightTable is a validated, immutable list of environments with their
// relative traffic weights. Only relative magnitudes matter.
type WeightTable struct {
	entries []Weight
	index   map[string]int
	total   float64
}

// NewWeightTable validates entries and builds a table.
//
// Validation:
//   - at least one entry (ErrEmptyTable)
//   - every name non-empty (ErrEmptyName) and unique (ErrDuplicateName)
//   - every weight > 0 and finite (ErrInvalidWeight); a zero weight is a
//     configuration error, not a 0% share
func NewWeightTable(entries []Weight) (*WeightTable, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	t := &WeightTable{
		entries: make([]Weight, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, ErrEmptyName
		}
		if _, seen := t.index[e.Name]; seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		if !(e.Weight > 0) || math.IsInf(e.Weight, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidWeight, e.Name, e.Weight)
		}
		t.index[e.Name] = len(t.entries)
		t.entries = append(t.entries, e)
		t.total += e.Weight
	}
	return t, nil
}

// MustWeightTable is like NewWeightTable but panics on invalid input.
// Intended for tests and static tables.
func MustWeightTable(entries ...Weight) *WeightTable {
	t, err := NewWeightTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the Default Environment: the first declared entry.
func (t *WeightTable) Default() string { return t.entries[0].Name }

// Has reports whether name is a configured environment.
func (t *WeightTable) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Weight returns the configured weight of name, or 0 if unknown.
func (t *WeightTable) Weight(name string) float64 {
	i, ok := t.index[name]
	if !ok {
		return 0
	}
	return t.entries[i].Weight
}

// Share returns the expected long-run fraction of picks for name.
func (t *WeightTable) Share(name string) float64 {
	return t.Weight(name) / t.total
}

// Total returns the sum of all weights.
func (t *WeightTable) Total() float64 { return t.total }

// Len returns the number of environments.
func (t *WeightTable) Len() int { return len(t.entries) }

// Names returns environment names in declaration order.
func (t *WeightTable) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries in declaration order.
func (t *WeightTable) Entries() []Weight {
	out := make([]Weight, len(t.entries))
	copy(out, t.entries)
	return out
}
