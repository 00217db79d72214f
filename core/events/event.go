package events

import (
	"log/slog"

	"mintvault/core/types"
)

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller did not wire an emitter.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// LogEmitter writes every event to a structured logger. The daemon wires this
// so state transitions show up in the service log stream.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if l.Logger == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	args := make([]any, 0, 2*len(payload.Attributes))
	for k, v := range payload.Attributes {
		args = append(args, slog.String(k, v))
	}
	l.Logger.Info(payload.Type, args...)
}

// Recorder captures emitted events in order. Intended for tests.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.Events = append(r.Events, evt)
}
