package metrics

import (
	"sync"
	"time"

	"github.com/mohitkumar/wfhammer/model"
)

// EstimateMemory is a coarse size estimate of a run used for the memory trend.
func EstimateMemory(contextVars int, historySize int) uint64 {
	return uint64(contextVars)*1024 + uint64(historySize)*256
}

type RunMetrics struct {
	RunId           string                          `json:"runId"`
	WorkflowName    string                          `json:"workflowName"`
	StartedAt       time.Time                       `json:"startedAt"`
	CompletedAt     *time.Time                      `json:"completedAt,omitempty"`
	Status          model.RunStatus                 `json:"status"`
	TransitionCount int                             `json:"transitionCount"`
	StateDurations  map[model.StateId]time.Duration `json:"stateDurations"`
	Error           string                          `json:"error,omitempty"`
	PeakMemory      uint64                          `json:"peakMemory"`
}

func (m RunMetrics) Duration() time.Duration {
	if m.CompletedAt == nil {
		return time.Since(m.StartedAt)
	}
	return m.CompletedAt.Sub(m.StartedAt)
}

type GlobalMetrics struct {
	TotalRuns        int     `json:"totalRuns"`
	CompletedRuns    int     `json:"completedRuns"`
	FailedRuns       int     `json:"failedRuns"`
	CancelledRuns    int     `json:"cancelledRuns"`
	TotalTransitions int     `json:"totalTransitions"`
	SuccessRate      float64 `json:"successRate"`
}

// WorkflowMetrics records per run details for every run an executor drives.
type WorkflowMetrics struct {
	mu      sync.Mutex
	runs    map[string]*RunMetrics
	maxRuns int
	order   []string
	global  GlobalMetrics
	Trends  *ResourceTrends
}

func NewWorkflowMetrics(maxRuns int) *WorkflowMetrics {
	if maxRuns <= 0 {
		maxRuns = 1000
	}
	return &WorkflowMetrics{
		runs:    make(map[string]*RunMetrics),
		maxRuns: maxRuns,
		Trends:  NewResourceTrends(MAX_TREND_DATA_POINTS),
	}
}

func (m *WorkflowMetrics) StartRun(runId string, workflowName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runId]; !ok {
		m.order = append(m.order, runId)
		m.global.TotalRuns++
	}
	m.runs[runId] = &RunMetrics{
		RunId:          runId,
		WorkflowName:   workflowName,
		StartedAt:      time.Now(),
		Status:         model.RUNNING,
		StateDurations: make(map[model.StateId]time.Duration),
	}
	for len(m.order) > m.maxRuns {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
}

func (m *WorkflowMetrics) RecordStateExecution(runId string, state model.StateId, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runs[runId]; ok {
		r.StateDurations[state] += d
	}
}

func (m *WorkflowMetrics) RecordTransition(runId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.global.TotalTransitions++
	if r, ok := m.runs[runId]; ok {
		r.TransitionCount++
	}
}

func (m *WorkflowMetrics) UpdateMemory(runId string, contextVars int, historySize int) {
	estimate := EstimateMemory(contextVars, historySize)
	m.mu.Lock()
	if r, ok := m.runs[runId]; ok && estimate > r.PeakMemory {
		r.PeakMemory = estimate
	}
	m.mu.Unlock()
	m.Trends.Add(TREND_MEMORY, float64(estimate))
}

func (m *WorkflowMetrics) CompleteRun(runId string, status model.RunStatus, errMsg string) {
	m.mu.Lock()
	r, ok := m.runs[runId]
	if !ok {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	r.CompletedAt = &now
	r.Status = status
	r.Error = errMsg
	switch status {
	case model.COMPLETED:
		m.global.CompletedRuns++
	case model.FAILED:
		m.global.FailedRuns++
	case model.CANCELLED:
		m.global.CancelledRuns++
	}
	finished := m.global.CompletedRuns + m.global.FailedRuns + m.global.CancelledRuns
	if finished > 0 {
		m.global.SuccessRate = float64(m.global.CompletedRuns) / float64(finished)
	}
	duration := r.Duration()
	transitions := r.TransitionCount
	m.mu.Unlock()

	m.Trends.Add(TREND_RUN_DURATION, duration.Seconds())
	if duration > 0 {
		m.Trends.Add(TREND_THROUGHPUT, float64(transitions)/duration.Seconds())
	}
}

func (m *WorkflowMetrics) RunMetrics(runId string) (RunMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runId]
	if !ok {
		return RunMetrics{}, false
	}
	out := *r
	out.StateDurations = make(map[model.StateId]time.Duration, len(r.StateDurations))
	for k, v := range r.StateDurations {
		out.StateDurations[k] = v
	}
	return out, true
}

func (m *WorkflowMetrics) Global() GlobalMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global
}
