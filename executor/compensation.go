package executor

import (
	"fmt"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
)

// compensate takes the first registered compensation marker, in key order, moves the run to its
// target and drops the marker. Only one marker is consumed per failure.
func (e *WorkflowExecutor) compensate(p *plan, run *model.WorkflowRun) (bool, error) {
	for _, key := range model.CompensationMarkers(run.Context) {
		target := model.StateId(run.Context[key].(string))
		delete(run.Context, key)
		if _, ok := p.states[target]; !ok {
			logger.Warn("dropping compensation marker with unknown target", zap.String("runId", run.Id), zap.String("marker", key), zap.String("target", string(target)))
			continue
		}
		from := run.CurrentState
		if err := e.performTransition(p, run, target, []string{"compensation"}, e.maxTrans); err != nil {
			return false, err
		}
		e.events.Append(run.Id, EVENT_STATE_EXECUTION, fmt.Sprintf("Compensated failure in state %s by moving to %s", from, target))
		if e.collector != nil {
			e.collector.Compensation()
		}
		logger.Info("compensation state entered", zap.String("runId", run.Id), zap.String("from", string(from)), zap.String("to", string(target)))
		return true, nil
	}
	return false, nil
}
