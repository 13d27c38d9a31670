package model

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const RUNNING RunStatus = "RUNNING"
const COMPLETED RunStatus = "COMPLETED"
const FAILED RunStatus = "FAILED"
const CANCELLED RunStatus = "CANCELLED"
const PAUSED RunStatus = "PAUSED"

type HistoryEntry struct {
	State     StateId   `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

type WorkflowRun struct {
	Id           string            `json:"id"`
	Workflow     Workflow          `json:"workflow"`
	CurrentState StateId           `json:"currentState"`
	History      []HistoryEntry    `json:"history"`
	Context      map[string]any    `json:"context"`
	Status       RunStatus         `json:"status"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

func NewRunId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func NewWorkflowRun(wf Workflow) *WorkflowRun {
	now := time.Now()
	return &WorkflowRun{
		Id:           NewRunId(),
		Workflow:     wf,
		CurrentState: wf.InitialState,
		History:      []HistoryEntry{{State: wf.InitialState, Timestamp: now}},
		Context:      make(map[string]any),
		Status:       RUNNING,
		StartedAt:    now,
		Metadata:     make(map[string]string),
	}
}

func (r *WorkflowRun) TransitionTo(state StateId) {
	r.History = append(r.History, HistoryEntry{State: state, Timestamp: time.Now()})
	r.CurrentState = state
}

func (r *WorkflowRun) finish(status RunStatus) {
	now := time.Now()
	r.Status = status
	r.CompletedAt = &now
}

func (r *WorkflowRun) Complete() {
	r.finish(COMPLETED)
}

func (r *WorkflowRun) Fail() {
	r.finish(FAILED)
}

func (r *WorkflowRun) Cancel() {
	r.finish(CANCELLED)
}

func (r *WorkflowRun) Pause() {
	r.Status = PAUSED
}

func (r *WorkflowRun) Resume() {
	r.Status = RUNNING
	r.CompletedAt = nil
}

// IsFinished reports whether the run can no longer be resumed.
func (r *WorkflowRun) IsFinished() bool {
	return r.Status == COMPLETED || r.Status == FAILED
}

func (r *WorkflowRun) HistoryStates() []StateId {
	states := make([]StateId, 0, len(r.History))
	for _, h := range r.History {
		states = append(states, h.State)
	}
	return states
}

func (r *WorkflowRun) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Snapshot returns a copy of the run that shares no mutable state with the original.
func (r *WorkflowRun) Snapshot() WorkflowRun {
	out := *r
	out.History = append([]HistoryEntry(nil), r.History...)
	out.Context = CloneVars(r.Context)
	out.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
