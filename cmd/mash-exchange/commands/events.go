// Package commands implements the mash-exchange subcommands.
package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mash-protocol/mash-exchange/pkg/log"
)

// formatEvent writes a one-line representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-8s %-9s nodes=%d links=%d callbacks=%d took=%s",
		ts, event.Scope, event.Direction, event.Outcome,
		event.NodeCount, event.LinkCount, event.CallbackCount, event.Duration)
	if event.Error != "" {
		fmt.Fprintf(w, " error=%q", event.Error)
	}
	fmt.Fprintln(w)
}

// ParseDirectionFlag parses a direction string from command-line flag (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "download", "down":
		return log.DirectionDownload, nil
	case "upload", "up":
		return log.DirectionUpload, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be download or upload)", s)
	}
}

// ParseOutcomeFlag parses an outcome string from command-line flag (case-insensitive).
func ParseOutcomeFlag(s string) (log.Outcome, error) {
	switch strings.ToLower(s) {
	case "success":
		return log.OutcomeSuccess, nil
	case "failure":
		return log.OutcomeFailure, nil
	case "recovered":
		return log.OutcomeRecovered, nil
	default:
		return 0, fmt.Errorf("invalid outcome: %s (must be success, failure, or recovered)", s)
	}
}

// RunEvents prints every event of the log file that matches the filter.
func RunEvents(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// RunStats prints aggregate statistics for the events that match the filter.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var stats log.Stats
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.Add(event)
	}

	fmt.Fprintf(w, "Cycles:     %d\n", stats.Cycles)
	fmt.Fprintf(w, "Failures:   %d\n", stats.Failures)
	fmt.Fprintf(w, "Recoveries: %d\n", stats.Recoveries)
	fmt.Fprintf(w, "Mean:       %s\n", stats.Mean())
	fmt.Fprintf(w, "Max:        %s\n", stats.Max)

	if len(stats.ByScope) > 0 {
		scopes := make([]string, 0, len(stats.ByScope))
		for scope := range stats.ByScope {
			scopes = append(scopes, scope)
		}
		sort.Strings(scopes)

		fmt.Fprintln(w, "\nBy scope:")
		for _, scope := range scopes {
			fmt.Fprintf(w, "  %s: %d\n", scope, stats.ByScope[scope])
		}
	}
	return nil
}
