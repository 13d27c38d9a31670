package executor

import (
	"github.com/mohitkumar/wfhammer/action"
	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/condition"
	"github.com/mohitkumar/wfhammer/cost"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
)

const DEFAULT_MAX_TRANSITIONS = 1000

// RunObserver is notified about run outcomes. Implementations must not block.
type RunObserver interface {
	RunFinished(run model.WorkflowRun, err error)
	ActionFailed(run model.WorkflowRun, state model.StateId, err error)
}

type Options struct {
	MaxTransitions int
	MaxEvents      int
	Collaborators  action.Collaborators
	Storage        persistence.WorkflowStorage
	CostTracker    cost.Tracker
	Metrics        *metrics.WorkflowMetrics
	Collector      *metrics.Collector
	Observers      []RunObserver
}

// WorkflowExecutor drives workflow runs. One executor is shared by all runs; each call drives a
// single run in the caller's goroutine.
type WorkflowExecutor struct {
	caches        *cache.CacheManager
	evaluator     *condition.Evaluator
	events        *EventLog
	collaborators action.Collaborators
	storage       persistence.WorkflowStorage
	costTracker   cost.Tracker
	metrics       *metrics.WorkflowMetrics
	collector     *metrics.Collector
	observers     []RunObserver
	maxTrans      int
}

var _ action.SubWorkflowRunner = new(WorkflowExecutor)

func NewWorkflowExecutor(caches *cache.CacheManager, opts Options) *WorkflowExecutor {
	if opts.MaxTransitions <= 0 {
		opts.MaxTransitions = DEFAULT_MAX_TRANSITIONS
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewWorkflowMetrics(0)
	}
	ex := &WorkflowExecutor{
		caches:      caches,
		evaluator:   condition.NewEvaluator(caches),
		events:      NewEventLog(opts.MaxEvents),
		storage:     opts.Storage,
		costTracker: opts.CostTracker,
		metrics:     opts.Metrics,
		collector:   opts.Collector,
		observers:   opts.Observers,
		maxTrans:    opts.MaxTransitions,
	}
	ex.collaborators = opts.Collaborators
	if ex.collaborators.SubWorkflows == nil {
		ex.collaborators.SubWorkflows = ex
	}
	return ex
}

func (e *WorkflowExecutor) History() []ExecutionEvent {
	return e.events.All()
}

func (e *WorkflowExecutor) HistoryFor(runId string) []ExecutionEvent {
	return e.events.ForRun(runId)
}

func (e *WorkflowExecutor) CachedTransitionPath(from model.StateId, to model.StateId) (model.TransitionPath, bool) {
	return e.caches.GetTransitionPath(model.NewTransitionKey(from, to))
}

func (e *WorkflowExecutor) IsConditionCached(expression string) bool {
	return e.caches.IsConditionCached(expression)
}

func (e *WorkflowExecutor) ConditionCacheStats() (int, int) {
	return e.caches.ConditionStats()
}

func (e *WorkflowExecutor) ClearAllCaches() {
	e.caches.ClearAll()
}

func (e *WorkflowExecutor) Caches() *cache.CacheManager {
	return e.caches
}

func (e *WorkflowExecutor) Metrics() *metrics.WorkflowMetrics {
	return e.metrics
}
