package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cprmachine/cprd/internal/model"
	"github.com/cprmachine/cprd/internal/protocol"
)

type stepRow struct {
	ID    int    `json:"id"`
	Phase string `json:"phase"`
	Op    string `json:"op"`
	Title string `json:"title"`
}

func phaseOf(id int) string {
	switch {
	case id <= protocol.SetupLast:
		return "setup"
	case id < protocol.CoreFirst:
		return "position"
	default:
		return "core"
	}
}

func writeSteps(w io.Writer, format string) error {
	steps := protocol.Steps()
	rows := make([]stepRow, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, stepRow{ID: s.ID, Phase: phaseOf(s.ID), Op: s.Op.String(), Title: s.Title})
	}

	if format == "json" {
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tPHASE\tOP\tTITLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Phase, r.Op, r.Title)
	}
	return tw.Flush()
}

func writeStatus(w io.Writer, format string, snap model.StatusSnapshot) error {
	if format == "json" {
		return writeJSON(w, snap)
	}

	title := snap.StepTitle
	if title == "" {
		if s, err := protocol.Lookup(snap.Step); err == nil {
			title = s.Title
		}
	}

	start := "-"
	if snap.Run.RunStart != nil {
		start = snap.Run.RunStart.UTC().Format(time.RFC3339)
	}
	align := "-"
	if a := snap.Alignment; a != nil {
		if a.NoFace {
			align = "no face"
		} else {
			align = fmt.Sprintf("dx=%d dy=%d", a.DX, a.DY)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "state:\t%s\n", snap.State)
	fmt.Fprintf(tw, "step:\t%d %s\n", snap.Step, title)
	fmt.Fprintf(tw, "control:\t%s\n", snap.ControlLabel)
	fmt.Fprintf(tw, "run start:\t%s\n", start)
	fmt.Fprintf(tw, "shocks:\t%d\n", snap.Run.Shocks)
	fmt.Fprintf(tw, "cpr cycles:\t%d\n", snap.Run.CprCycles)
	fmt.Fprintf(tw, "ventilations:\t%d\n", snap.Run.Ventilations)
	fmt.Fprintf(tw, "alignment:\t%s\n", align)
	fmt.Fprintf(tw, "backend:\t%s\n", snap.Backend)
	fmt.Fprintf(tw, "write faults:\t%d\n", snap.WriteFaults)
	fmt.Fprintf(tw, "dropped events:\t%d\n", snap.DroppedEvents)
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
