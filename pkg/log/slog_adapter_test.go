package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func logJSON(t *testing.T, adapter *SlogAdapter, event Event, buf *bytes.Buffer) map[string]any {
	t.Helper()
	buf.Reset()
	adapter.Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterRadioEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	entry := logJSON(t, adapter, testEvent("cycle-7", CategoryRadio), &buf)

	if entry["msg"] != "station" {
		t.Errorf("msg: got %v, want %q", entry["msg"], "station")
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
	if entry["cycle_id"] != "cycle-7" {
		t.Errorf("cycle_id: got %v", entry["cycle_id"])
	}
	if entry["action"] != "RECONNECT" {
		t.Errorf("action: got %v, want RECONNECT", entry["action"])
	}
	if entry["retry"] != float64(1) {
		t.Errorf("retry: got %v, want 1", entry["retry"])
	}
	if entry["reason"] != "AUTH_FAIL" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}

func TestSlogAdapterOutcomeEvent(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	entry := logJSON(t, adapter, testEvent("cycle-7", CategoryOutcome), &buf)

	if entry["category"] != "OUTCOME" {
		t.Errorf("category: got %v", entry["category"])
	}
	if entry["outcome"] != "CONNECTED" {
		t.Errorf("outcome: got %v", entry["outcome"])
	}
	if entry["address"] != "192.168.4.2" {
		t.Errorf("address: got %v", entry["address"])
	}
}

func TestSlogAdapterWithLevel(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogAdapter(slogger).Log(testEvent("c", CategoryState))
	if buf.Len() != 0 {
		t.Errorf("debug event logged at info level: %s", buf.String())
	}

	entry := logJSON(t, NewSlogAdapter(slogger).WithLevel(slog.LevelInfo), testEvent("c", CategoryState), &buf)
	if entry["new_state"] != "CONNECTING" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestMultiLoggerCallsAll(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	multi := NewMultiLogger(a, nil, b)

	multi.Log(testEvent("cycle", CategoryError))

	for i, l := range []*recordingLogger{a, b} {
		if len(l.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(l.events))
			continue
		}
		if l.events[0].Error == nil || !l.events[0].Error.Recovered {
			t.Errorf("logger %d: error payload lost", i)
		}
	}

	NoopLogger{}.Log(testEvent("cycle", CategoryError))
}
