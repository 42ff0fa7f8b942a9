// Package observability is the structured event sink injected into the store,
// its state containers, and async operations. Nothing in the pipeline logs
// through package globals; every component receives an Observer.
//
// Level values follow OpenTelemetry SeverityNumber ranges so events can be
// forwarded to slog handlers or OTel spans without translation tables.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is the severity of an Event.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// String returns the OTel severity text.
func (l Level) String() string {
	switch {
	case l <= 4:
		return "TRACE"
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	case l <= 20:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// SlogLevel maps the level onto slog's four levels.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType names an event. Packages declare their own constants,
// e.g. "store.dispatch.start" or "state.notify".
type EventType string

// Event is one observation. Source names the emitting component
// ("store.Dispatch", "state.Container"); Data holds flat attributes
// describing the pipeline, never the state values themselves.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events. Implementations must not block the pipeline
// and must be safe for concurrent use; dispatches may overlap.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit stamps the event with the current time and forwards it to obs.
// A nil observer drops the event.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source string, data map[string]any) {
	if obs == nil {
		return
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
