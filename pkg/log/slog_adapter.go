package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes connection events to an slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a SlogAdapter that logs at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter logging at the given level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("cycle_id", event.CycleID),
		slog.String("category", event.Category.String()),
	}
	if event.SSID != "" {
		attrs = append(attrs, slog.String("ssid", event.SSID))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Radio != nil:
		attrs = append(attrs,
			slog.String("event", event.Radio.Event),
			slog.String("action", event.Radio.Action.String()),
			slog.Int("retry", event.Radio.Retry),
			slog.Int("max_retries", event.Radio.MaxRetries),
		)
		if event.Radio.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Radio.Reason))
		}
		if event.Radio.Address != "" {
			attrs = append(attrs, slog.String("address", event.Radio.Address))
		}
		if event.Radio.Delay > 0 {
			attrs = append(attrs, slog.Duration("delay", event.Radio.Delay))
		}
	case event.Outcome != nil:
		attrs = append(attrs,
			slog.String("outcome", event.Outcome.Outcome),
			slog.Int("retries", event.Outcome.Retries),
			slog.Duration("duration", event.Outcome.Duration),
		)
		if event.Outcome.Address != "" {
			attrs = append(attrs, slog.String("address", event.Outcome.Address))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("step", event.Error.Step),
			slog.String("error", event.Error.Message),
			slog.Bool("recovered", event.Error.Recovered),
		)
	}

	a.logger.LogAttrs(context.Background(), a.level, "station", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
