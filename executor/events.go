package executor

import (
	"sync"
	"time"
)

type EventType string

const EVENT_STARTED EventType = "Started"
const EVENT_STATE_TRANSITION EventType = "StateTransition"
const EVENT_STATE_EXECUTION EventType = "StateExecution"
const EVENT_CONDITION_EVALUATED EventType = "ConditionEvaluated"
const EVENT_COMPLETED EventType = "Completed"
const EVENT_FAILED EventType = "Failed"

const DEFAULT_MAX_EVENTS = 10000

type ExecutionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunId     string    `json:"runId"`
	Type      EventType `json:"type"`
	Details   string    `json:"details"`
}

// EventLog is shared by every run of an executor. Once full the oldest events are dropped.
type EventLog struct {
	mu        sync.Mutex
	events    []ExecutionEvent
	maxEvents int
}

func NewEventLog(maxEvents int) *EventLog {
	if maxEvents <= 0 {
		maxEvents = DEFAULT_MAX_EVENTS
	}
	return &EventLog{maxEvents: maxEvents}
}

func (l *EventLog) Append(runId string, eventType EventType, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ExecutionEvent{
		Timestamp: time.Now(),
		RunId:     runId,
		Type:      eventType,
		Details:   details,
	})
	if excess := len(l.events) - l.maxEvents; excess > 0 {
		l.events = append(l.events[:0:0], l.events[excess:]...)
	}
}

func (l *EventLog) All() []ExecutionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ExecutionEvent(nil), l.events...)
}

func (l *EventLog) ForRun(runId string) []ExecutionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ExecutionEvent
	for _, e := range l.events {
		if e.RunId == runId {
			out = append(out, e)
		}
	}
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
