package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/hollowverse/releasemanager/internal/api"
	"github.com/hollowverse/releasemanager/internal/directory"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintEnvironments outputs a directory snapshot
func PrintEnvironments(w io.Writer, snap *directory.Snapshot, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, snap)
	case FormatYAML:
		return printYAML(w, snap)
	case FormatTable:
		names := make([]string, 0, len(snap.Environments))
		for name := range snap.Environments {
			names = append(names, name)
		}
		sort.Strings(names)

		rows := make([][]string, len(names))
		for i, name := range names {
			rows[i] = []string{name, snap.Environments[name]}
		}
		if err := printTable(w, []string{"Environment", "URL"}, rows); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "etag %s, updated %s\n", snap.ETag, snap.UpdatedAt.Format("2006-01-02 15:04:05"))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEnvironment outputs a single environment
func PrintEnvironment(w io.Writer, env *api.EnvironmentResponse, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, env)
	case FormatYAML:
		return printYAML(w, env)
	case FormatTable:
		share := "-"
		if env.Weighted {
			share = percent(env.Share)
		}
		return printTable(w, []string{"Environment", "URL", "Share"}, [][]string{{env.Name, env.URL, share}})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintWeights outputs the traffic split weight table
func PrintWeights(w io.Writer, weights *api.WeightsResponse, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, weights)
	case FormatYAML:
		return printYAML(w, weights)
	case FormatTable:
		rows := make([][]string, len(weights.Environments))
		for i, e := range weights.Environments {
			name := e.Name
			if name == weights.Default {
				name += " (default)"
			}
			rows[i] = []string{name, strconv.FormatFloat(e.Weight, 'g', -1, 64), percent(e.Share)}
		}
		if err := printTable(w, []string{"Environment", "Weight", "Share"}, rows); err != nil {
			return err
		}
		if weights.Selector != "" {
			_, err := fmt.Fprintf(w, "selector %s\n", weights.Selector)
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintSimulation outputs the result of an offline selection run
func PrintSimulation(w io.Writer, sim *Simulation, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, sim)
	case FormatYAML:
		return printYAML(w, sim)
	case FormatTable:
		rows := make([][]string, len(sim.Rows))
		for i, r := range sim.Rows {
			rows[i] = []string{r.Name, percent(r.Expected), strconv.Itoa(r.Picks), percent(r.Observed)}
		}
		if err := printTable(w, []string{"Environment", "Expected", "Picks", "Observed"}, rows); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d trials, selector %s, max deviation %s\n", sim.Trials, sim.Selector, percent(sim.MaxDeviation))
		return err
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(cells(header)...)
	for _, row := range rows {
		if err := table.Append(cells(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func cells(row []string) []any {
	out := make([]any, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}
