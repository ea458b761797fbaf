package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tenderoni/tenderoni-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "cycle_id", "category", "ssid", "type", "detail", "retry"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		eventType, detail, retry := "unknown", "", ""
		switch {
		case event.StateChange != nil:
			eventType = "state"
			detail = event.StateChange.NewState
		case event.Radio != nil:
			eventType = event.Radio.Event
			detail = event.Radio.Action.String()
			retry = strconv.Itoa(event.Radio.Retry)
		case event.Outcome != nil:
			eventType = "outcome"
			detail = event.Outcome.Outcome
			retry = strconv.Itoa(event.Outcome.Retries)
		case event.Error != nil:
			eventType = "error"
			detail = event.Error.Step
		}

		row := []string{
			event.Timestamp.UTC().Format(timestampFormat),
			event.CycleID,
			event.Category.String(),
			event.SSID,
			eventType,
			detail,
			retry,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
