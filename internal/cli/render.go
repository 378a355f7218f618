package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vigilhq/vigil/internal/health"
	"github.com/vigilhq/vigil/internal/history"
)

// renderReport writes rep to w in the requested format.
func renderReport(w io.Writer, rep *health.Report, format string) error {
	switch format {
	case "json":
		return json.NewEncoder(w).Encode(rep)
	case "text", "":
		renderText(w, rep)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderText(w io.Writer, rep *health.Report) {
	fmt.Fprintf(w, "target %s  score %d (%s)  level %s  %s\n",
		rep.Target, rep.Score, rep.Grade, rep.Level, humanize.Time(rep.Timestamp))
	if rep.Partial {
		fmt.Fprintln(w, "partial: one or more checks did not complete")
	}

	for _, res := range rep.Results {
		marker := " "
		if res.Status != health.StatusOK {
			marker = "!"
		}
		fmt.Fprintf(w, "%s %-10s %-8s", marker, res.Component, res.Status)
		if res.Deduction > 0 {
			fmt.Fprintf(w, " -%-3d", res.Deduction)
		} else {
			fmt.Fprintf(w, "     ")
		}
		fmt.Fprintf(w, " %s\n", res.Message)
	}

	if len(rep.Actions) > 0 {
		fmt.Fprintln(w, "actions:")
		for _, a := range rep.Actions {
			fmt.Fprintf(w, "  %s %s -> %s", a.Action.Type, a.Action.Target, a.Status)
			if a.Attempts > 1 {
				fmt.Fprintf(w, " (%d attempts)", a.Attempts)
			}
			if a.Detail != "" {
				fmt.Fprintf(w, ": %s", a.Detail)
			}
			fmt.Fprintln(w)
		}
	}

	if !rep.Persisted {
		fmt.Fprintln(w, "warning: report was not persisted to history")
	}
}

// renderTrend writes trend statistics in text form.
func renderTrend(w io.Writer, t *history.Trend, window time.Duration) {
	fmt.Fprintf(w, "trend over %s: %d runs, min %d / avg %.1f / max %d, %d below C band\n",
		window, t.Runs, t.MinScore, t.AvgScore, t.MaxScore, t.Below)
}
