package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Cycles           map[string]*CycleStats
	Outcomes         map[string]int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// CycleStats holds statistics for a single connection cycle.
type CycleStats struct {
	FirstSeen   time.Time
	LastSeen    time.Time
	Events      int
	SSID        string
	Disconnects int
	Outcome     string
	Retries     int
	Address     string
}

// CollectStats reads every event of the log file.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Cycles:           make(map[string]*CycleStats),
		Outcomes:         make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		cycle, ok := stats.Cycles[event.CycleID]
		if !ok {
			cycle = &CycleStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Cycles[event.CycleID] = cycle
		}
		cycle.Events++
		if event.Timestamp.After(cycle.LastSeen) {
			cycle.LastSeen = event.Timestamp
		}
		if event.SSID != "" && cycle.SSID == "" {
			cycle.SSID = event.SSID
		}

		switch {
		case event.Radio != nil && event.Radio.Reason != "":
			cycle.Disconnects++
		case event.Outcome != nil:
			cycle.Outcome = event.Outcome.Outcome
			cycle.Retries = event.Outcome.Retries
			cycle.Address = event.Outcome.Address
			stats.Outcomes[event.Outcome.Outcome]++
		case event.Error != nil:
			stats.Errors++
		}
	}

	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Connection Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryRadio, log.CategoryOutcome, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Outcomes) > 0 {
		names := make([]string, 0, len(stats.Outcomes))
		for name := range stats.Outcomes {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "Outcomes:")
		for _, name := range names {
			fmt.Fprintf(w, "  %-12s %d\n", name+":", stats.Outcomes[name])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Cycles: %d\n", len(stats.Cycles))
	if len(stats.Cycles) > 0 {
		type cycleInfo struct {
			id    string
			stats *CycleStats
		}
		cycles := make([]cycleInfo, 0, len(stats.Cycles))
		for id, cs := range stats.Cycles {
			cycles = append(cycles, cycleInfo{id, cs})
		}
		sort.Slice(cycles, func(i, j int) bool {
			return cycles[i].stats.FirstSeen.Before(cycles[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range cycles {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenCycleID(c.id), c.stats.Events, duration)
			if c.stats.SSID != "" {
				fmt.Fprintf(w, "           SSID: %s\n", c.stats.SSID)
			}
			if c.stats.Disconnects > 0 {
				fmt.Fprintf(w, "           Disconnects: %d\n", c.stats.Disconnects)
			}
			if c.stats.Outcome != "" {
				fmt.Fprintf(w, "           Outcome: %s (retries %d)\n", c.stats.Outcome, c.stats.Retries)
			}
			if c.stats.Address != "" {
				fmt.Fprintf(w, "           Address: %s\n", c.stats.Address)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
