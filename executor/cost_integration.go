package executor

import (
	"fmt"

	"github.com/mohitkumar/wfhammer/cost"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
)

const ISSUE_ID_KEY string = "issue_id"

// sessionReader is implemented by trackers that expose recorded usage.
type sessionReader interface {
	Session(id cost.SessionId) (cost.Session, bool)
}

func issueIdFor(run *model.WorkflowRun) string {
	if id, ok := run.Context[ISSUE_ID_KEY].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("workflow_%s", run.Workflow.Name)
}

// startCostSession opens a cost session for the run. Tracker failures never fail the run.
func (e *WorkflowExecutor) startCostSession(run *model.WorkflowRun) {
	if e.costTracker == nil {
		return
	}
	id, err := e.costTracker.StartSession(issueIdFor(run))
	if err != nil {
		logger.Warn("failed to start cost session", zap.String("runId", run.Id), zap.Error(err))
		return
	}
	run.Metadata[model.COST_SESSION_METADATA] = string(id)
}

func (e *WorkflowExecutor) completeCostSession(run *model.WorkflowRun) {
	if e.costTracker == nil {
		return
	}
	id, ok := run.Metadata[model.COST_SESSION_METADATA]
	if !ok {
		return
	}
	status := cost.SESSION_COMPLETED
	switch run.Status {
	case model.FAILED:
		status = cost.SESSION_FAILED
	case model.CANCELLED:
		status = cost.SESSION_CANCELLED
	}
	if err := e.costTracker.CompleteSession(cost.SessionId(id), status); err != nil {
		logger.Warn("failed to complete cost session", zap.String("runId", run.Id), zap.String("session", id), zap.Error(err))
		return
	}
	reader, ok := e.costTracker.(sessionReader)
	if !ok {
		return
	}
	session, found := reader.Session(cost.SessionId(id))
	if !found {
		return
	}
	e.metrics.Trends.Add(metrics.TREND_COST, session.TotalCost())
	if transitions := len(run.History) - 1; transitions > 0 {
		e.metrics.Trends.Add(metrics.TREND_TOKEN_EFFICIENCY, float64(session.TotalTokens())/float64(transitions))
	}
}
