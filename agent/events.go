package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventRunStart       EventKind = "run_start"
	EventDecision       EventKind = "decision"
	EventActionStart    EventKind = "action_start"
	EventActionEnd      EventKind = "action_end"
	EventLoopDetected   EventKind = "loop_detected"
	EventIterationLimit EventKind = "iteration_limit"
	EventTerminated     EventKind = "terminated"
	EventError          EventKind = "error"
	EventRunEnd         EventKind = "run_end"
)

// Event is emitted by the agent loop as a run progresses.
type Event struct {
	Kind      EventKind      `json:"kind"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers events to the host application via a buffered
// channel. Events are dropped rather than block the loop when the buffer is
// full.
type EventEmitter struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an EventEmitter. A non-positive bufferSize uses 256.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan Event, bufferSize)}
}

// Emit sends an event. It never blocks; events sent after Close are dropped.
func (e *EventEmitter) Emit(kind EventKind, runID string, data map[string]any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- Event{Kind: kind, RunID: runID, Timestamp: time.Now(), Data: data}:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
