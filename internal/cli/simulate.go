package cli

import (
	"fmt"
	"math"

	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/rollout"
)

// SimulationRow is the tally for one environment.
type SimulationRow struct {
	Name     string  `json:"name" yaml:"name"`
	Expected float64 `json:"expected" yaml:"expected"`
	Picks    int     `json:"picks" yaml:"picks"`
	Observed float64 `json:"observed" yaml:"observed"`
}

// Simulation is the outcome of running a selector offline.
type Simulation struct {
	Selector     string          `json:"selector" yaml:"selector"`
	Trials       int             `json:"trials" yaml:"trials"`
	MaxDeviation float64         `json:"maxDeviation" yaml:"maxDeviation"`
	Rows         []SimulationRow `json:"rows" yaml:"rows"`
}

// Simulate draws trials picks from sel and compares the observed shares
// with the configured ones.
func Simulate(table *environments.WeightTable, sel rollout.Selector, selectorName string, trials int) (*Simulation, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}

	counts := make(map[string]int, table.Len())
	for i := 0; i < trials; i++ {
		counts[sel.Pick()]++
	}

	sim := &Simulation{Selector: selectorName, Trials: trials, Rows: make([]SimulationRow, 0, table.Len())}
	for _, name := range table.Names() {
		row := SimulationRow{
			Name:     name,
			Expected: table.Share(name),
			Picks:    counts[name],
			Observed: float64(counts[name]) / float64(trials),
		}
		sim.MaxDeviation = math.Max(sim.MaxDeviation, math.Abs(row.Observed-row.Expected))
		sim.Rows = append(sim.Rows, row)
	}
	return sim, nil
}
