package cost

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SessionId string

type SessionStatus string

const SESSION_ACTIVE SessionStatus = "ACTIVE"
const SESSION_COMPLETED SessionStatus = "COMPLETED"
const SESSION_FAILED SessionStatus = "FAILED"
const SESSION_CANCELLED SessionStatus = "CANCELLED"

const DEFAULT_MAX_SESSIONS = 1000

// Tracker correlates API usage with one workflow run.
type Tracker interface {
	StartSession(issueId string) (SessionId, error)
	CompleteSession(id SessionId, status SessionStatus) error
}

type SessionNotFoundError struct {
	Id SessionId
}

func (e SessionNotFoundError) Error() string {
	return fmt.Sprintf("cost session %s not found", e.Id)
}

// ModelPricing is in USD per one million tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

var defaultPricing = map[string]ModelPricing{
	"claude-3-5-sonnet": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku":    {InputPer1M: 0.25, OutputPer1M: 1.25},
}

type ApiCall struct {
	Model        string        `json:"model"`
	InputTokens  int           `json:"inputTokens"`
	OutputTokens int           `json:"outputTokens"`
	Duration     time.Duration `json:"duration"`
	Cost         float64       `json:"cost"`
}

type Session struct {
	Id          SessionId     `json:"id"`
	IssueId     string        `json:"issueId"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Calls       []ApiCall     `json:"calls"`
}

func (s Session) TotalCost() float64 {
	total := 0.0
	for _, c := range s.Calls {
		total += c.Cost
	}
	return total
}

func (s Session) TotalTokens() int {
	total := 0
	for _, c := range s.Calls {
		total += c.InputTokens + c.OutputTokens
	}
	return total
}

type InMemoryTracker struct {
	mu          sync.Mutex
	sessions    map[SessionId]*Session
	pricing     map[string]ModelPricing
	maxSessions int
}

var _ Tracker = new(InMemoryTracker)

func NewInMemoryTracker(maxSessions int) *InMemoryTracker {
	if maxSessions <= 0 {
		maxSessions = DEFAULT_MAX_SESSIONS
	}
	pricing := make(map[string]ModelPricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}
	return &InMemoryTracker{
		sessions:    make(map[SessionId]*Session),
		pricing:     pricing,
		maxSessions: maxSessions,
	}
}

func (t *InMemoryTracker) SetPricing(model string, pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[model] = pricing
}

func (t *InMemoryTracker) StartSession(issueId string) (SessionId, error) {
	if issueId == "" {
		return "", fmt.Errorf("issue id cannot be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) >= t.maxSessions {
		t.evictCompleted()
	}
	if len(t.sessions) >= t.maxSessions {
		return "", fmt.Errorf("too many active cost sessions (%d)", t.maxSessions)
	}
	id := SessionId(uuid.New().String())
	t.sessions[id] = &Session{
		Id:        id,
		IssueId:   issueId,
		Status:    SESSION_ACTIVE,
		StartedAt: time.Now(),
	}
	return id, nil
}

// evictCompleted drops the oldest finished session.
func (t *InMemoryTracker) evictCompleted() {
	var finished []*Session
	for _, s := range t.sessions {
		if s.Status != SESSION_ACTIVE {
			finished = append(finished, s)
		}
	}
	if len(finished) == 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CompletedAt.Before(*finished[j].CompletedAt)
	})
	delete(t.sessions, finished[0].Id)
}

func (t *InMemoryTracker) RecordApiCall(id SessionId, call ApiCall) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return SessionNotFoundError{Id: id}
	}
	if s.Status != SESSION_ACTIVE {
		return fmt.Errorf("cost session %s is already %s", id, s.Status)
	}
	if p, ok := t.pricing[call.Model]; ok && call.Cost == 0 {
		call.Cost = float64(call.InputTokens)*p.InputPer1M/1e6 + float64(call.OutputTokens)*p.OutputPer1M/1e6
	}
	s.Calls = append(s.Calls, call)
	return nil
}

func (t *InMemoryTracker) CompleteSession(id SessionId, status SessionStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return SessionNotFoundError{Id: id}
	}
	if s.Status != SESSION_ACTIVE {
		return fmt.Errorf("cost session %s is already %s", id, s.Status)
	}
	now := time.Now()
	s.Status = status
	s.CompletedAt = &now
	return nil
}

func (t *InMemoryTracker) Session(id SessionId) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *s
	out.Calls = append([]ApiCall(nil), s.Calls...)
	return out, true
}
