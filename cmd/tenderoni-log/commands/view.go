// Package commands implements the tenderoni-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	CycleID   string
	Category  *log.Category
	TimeStart *time.Time
	TimeEnd   *time.Time
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		CycleID:   f.CycleID,
		Category:  f.Category,
		TimeStart: f.TimeStart,
		TimeEnd:   f.TimeEnd,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [cycle:id] CATEGORY label
	ts := event.Timestamp.UTC().Format(timestampFormat)

	label := "Unknown"
	switch {
	case event.StateChange != nil:
		label = "State"
	case event.Radio != nil:
		label = event.Radio.Event
	case event.Outcome != nil:
		label = event.Outcome.Outcome
	case event.Error != nil:
		label = "Error"
	}

	fmt.Fprintf(w, "%s [cycle:%s] %-7s %s\n", ts, shortenCycleID(event.CycleID), event.Category, label)

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Radio != nil:
		formatRadioDetails(w, event.Radio)
	case event.Outcome != nil:
		formatOutcomeDetails(w, event.Outcome)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenCycleID returns the first 8 characters of the cycle ID.
func shortenCycleID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	from := sc.OldState
	if from == "" {
		from = "-"
	}
	fmt.Fprintf(w, "  %s -> %s\n", from, sc.NewState)
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatRadioDetails(w io.Writer, r *log.RadioEvent) {
	fmt.Fprintf(w, "  Action: %s  Retry: %d/%d\n", r.Action, r.Retry, r.MaxRetries)
	if r.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", r.Reason)
	}
	if r.Address != "" {
		fmt.Fprintf(w, "  Address: %s\n", r.Address)
	}
	if r.Delay > 0 {
		fmt.Fprintf(w, "  Delay: %s\n", r.Delay)
	}
}

func formatOutcomeDetails(w io.Writer, o *log.OutcomeEvent) {
	fmt.Fprintf(w, "  Retries: %d  Waited: %s\n", o.Retries, o.Duration.Round(time.Millisecond))
	if o.Address != "" {
		fmt.Fprintf(w, "  Address: %s\n", o.Address)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Step: %s\n", e.Step)
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Recovered {
		fmt.Fprintln(w, "  Recovered: yes")
	}
}

// ParseCategoryFlag parses a category string (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, radio, outcome, or error)", s)
	}
	return c, nil
}

// ParseTimeFlag parses an RFC3339 timestamp.
func ParseTimeFlag(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time: %s (must be RFC3339)", s)
	}
	return t, nil
}

// RunView reads the log file and writes formatted events to output.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
