package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

func printRecord(w io.Writer, record *domain.DayRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(record)
	case "table", "":
		return printTable(w, record)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func printTable(w io.Writer, record *domain.DayRecord) error {
	fmt.Fprintf(w, "=== %s ===\n", record.Date)
	if !record.Exists {
		fmt.Fprintln(w, "No activity recorded.")
		return nil
	}

	if len(record.Goals) > 0 {
		fmt.Fprintln(w, "Goals:")
		for _, g := range record.Goals {
			fmt.Fprintf(w, "  - %s\n", g)
		}
		fmt.Fprintln(w)
	}

	activities := append([]domain.Activity(nil), record.Activities...)
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Duration > activities[j].Duration
	})

	var total int64
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DURATION\tAPPLICATION\tTITLE\tFIRST SEEN")
	for _, a := range activities {
		total += a.Duration
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatDuration(a.Duration), a.Owner.Name, a.Title, a.TimestampReadable)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %s across %d activities\n", formatDuration(total), len(activities))
	return nil
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func printGoals(w io.Writer, goals []string) {
	if len(goals) == 0 {
		fmt.Fprintln(w, "Goals cleared for today.")
		return
	}
	fmt.Fprintln(w, "Today's goals:")
	for _, g := range goals {
		fmt.Fprintf(w, "  - %s\n", g)
	}
}

func printWindow(w io.Writer, info *domain.WindowInfo) {
	if info == nil {
		fmt.Fprintln(w, "No window has focus.")
		return
	}
	fmt.Fprintf(w, "Title:       %s\n", info.Title)
	fmt.Fprintf(w, "Application: %s\n", info.Owner.Name)
	fmt.Fprintf(w, "Path:        %s\n", info.Owner.Path)
	fmt.Fprintf(w, "PID:         %d\n", info.Owner.ProcessID)
}

func printFailure(w io.Writer, err error) {
	var pf *domain.ProbeFailure
	if !errors.As(err, &pf) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", pf.Kind)
	fmt.Fprintf(w, "  Category: %s\n", pf.Category)
	if pf.Cause != nil && !errors.Is(pf.Cause, pf.Kind) {
		fmt.Fprintf(w, "  Cause:    %v\n", pf.Cause)
	}
	if pf.Remediation != "" {
		fmt.Fprintf(w, "  Fix:      %s\n", pf.Remediation)
	}
}
