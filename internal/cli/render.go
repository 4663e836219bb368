package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/forgecrew/foreman/internal/domain"
	"github.com/forgecrew/foreman/internal/engine"
)

// renderResult writes a CommandResult to the writer in the requested output
// format and returns an error for unsuccessful results so the CLI exits
// non-zero.
func renderResult(w io.Writer, format string, result domain.CommandResult) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	default:
		fmt.Fprintln(w, result.Message)
		renderData(w, result.Data)
		if result.Error != "" {
			fmt.Fprintf(w, "error: %s\n", result.Error)
		}
	}

	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	return nil
}

// renderData writes the payload in human-readable form.
func renderData(w io.Writer, data any) {
	switch d := data.(type) {
	case nil:
	case engine.ReportData:
		fmt.Fprint(w, d.Text)
	case engine.StatusData:
		renderStatus(w, d)
	default:
		if encoded, err := json.MarshalIndent(d, "", "  "); err == nil {
			fmt.Fprintln(w, string(encoded))
		}
	}
}

// renderStatus formats the status payload as a short text block.
func renderStatus(w io.Writer, d engine.StatusData) {
	state := "stopped"
	switch {
	case d.Paused:
		state = "paused"
	case d.Running:
		state = "running"
	}
	fmt.Fprintf(w, "  engine:    %s\n", state)
	fmt.Fprintf(w, "  phase:     %d (%s), %.0f%% done\n", d.Phase, d.PhaseName, d.PhaseProgress*100)
	fmt.Fprintf(w, "  overall:   %.0f%%\n", d.OverallProgress*100)
	fmt.Fprintf(w, "  tasks:     %d waiting, %d active, %d completed, %d failed\n",
		d.WaitingTasks, d.ActiveTasks, d.CompletedTasks, d.FailedTasks)
	for _, ms := range d.Milestones {
		fmt.Fprintf(w, "  milestone: %-16s %s\n", ms.ID, ms.Status)
	}
}
