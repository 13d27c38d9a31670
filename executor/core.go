package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/wfhammer/action"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
)

// StartWorkflow creates a run of wf seeded with vars and drives it until it leaves RUNNING.
// The run is returned whenever one was created, also together with an error.
func (e *WorkflowExecutor) StartWorkflow(ctx context.Context, wf model.Workflow, vars map[string]any) (*model.WorkflowRun, error) {
	run, err := e.PrepareRun(wf, vars)
	if err != nil {
		return nil, err
	}
	return run, e.ExecuteRun(ctx, run)
}

// PrepareRun validates wf and creates its run without driving it.
func (e *WorkflowExecutor) PrepareRun(wf model.Workflow, vars map[string]any) (*model.WorkflowRun, error) {
	p, err := e.compile(wf)
	if err != nil {
		return nil, err
	}
	run := model.NewWorkflowRun(p.workflow)
	for k, v := range model.CloneVars(vars) {
		run.Context[k] = v
	}
	run.Context[model.WORKFLOW_STACK_KEY] = pushWorkflow(workflowStack(run.Context), wf.Name)

	e.events.Append(run.Id, EVENT_STARTED, fmt.Sprintf("Started workflow: %s", wf.Name))
	e.metrics.StartRun(run.Id, wf.Name)
	if !isNested(run.Context) {
		e.startCostSession(run)
	}
	logger.Info("workflow started", zap.String("workflow", wf.Name), zap.String("runId", run.Id))
	return run, nil
}

// ExecuteRun drives a prepared run until it leaves RUNNING.
func (e *WorkflowExecutor) ExecuteRun(ctx context.Context, run *model.WorkflowRun) error {
	p, err := e.compile(run.Workflow)
	if err != nil {
		return err
	}
	return e.drive(ctx, p, run)
}

// RejectRun cancels a prepared run that will never be driven.
func (e *WorkflowExecutor) RejectRun(run *model.WorkflowRun, cause error) error {
	if run.Status != model.RUNNING {
		return newError(WORKFLOW_COMPLETED, "workflow run %s is %s", run.Id, run.Status)
	}
	run.Cancel()
	err := wrapError(CANCELLED, cause, "workflow run %s rejected: %s", run.Id, cause.Error())
	e.events.Append(run.Id, EVENT_FAILED, err.Error())
	logger.Warn("workflow run rejected", zap.String("runId", run.Id), zap.Error(cause))
	e.finish(run, err)
	return err
}

// ResumeWorkflow continues a paused or cancelled run from its current state.
func (e *WorkflowExecutor) ResumeWorkflow(ctx context.Context, run *model.WorkflowRun) error {
	if run.IsFinished() {
		return newError(WORKFLOW_COMPLETED, "workflow run %s already finished with status %s", run.Id, run.Status)
	}
	p, err := e.compile(run.Workflow)
	if err != nil {
		return err
	}
	run.Resume()
	e.events.Append(run.Id, EVENT_STARTED, fmt.Sprintf("Resumed workflow: %s from state %s", run.Workflow.Name, run.CurrentState))
	logger.Info("workflow resumed", zap.String("workflow", run.Workflow.Name), zap.String("runId", run.Id), zap.String("state", string(run.CurrentState)))
	return e.drive(ctx, p, run)
}

// ExecuteSingleCycle runs one step of the loop: the current state's action and at most one
// transition.
func (e *WorkflowExecutor) ExecuteSingleCycle(ctx context.Context, run *model.WorkflowRun) error {
	if run.Status != model.RUNNING {
		return newError(WORKFLOW_COMPLETED, "workflow run %s is %s", run.Id, run.Status)
	}
	p, err := e.compile(run.Workflow)
	if err != nil {
		return err
	}
	return e.cycle(ctx, p, run)
}

func (e *WorkflowExecutor) drive(ctx context.Context, p *plan, run *model.WorkflowRun) error {
	if e.collector != nil {
		e.collector.RunStarted(run.Workflow.Name)
	}
	for run.Status == model.RUNNING {
		if err := e.cycle(ctx, p, run); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkflowExecutor) cycle(ctx context.Context, p *plan, run *model.WorkflowRun) error {
	if ctx.Err() != nil {
		return e.interrupt(ctx, run)
	}
	state, ok := p.states[run.CurrentState]
	if !ok {
		return e.fail(run, newError(STATE_NOT_FOUND, "state '%s' not found in workflow '%s'", run.CurrentState, run.Workflow.Name))
	}
	switch state.StateType() {
	case model.STATE_TYPE_FORK:
		return e.executeFork(ctx, p, run, state)
	case model.STATE_TYPE_CHOICE:
		logger.Debug("evaluating choice state", zap.String("runId", run.Id), zap.String("state", string(state.Id)))
	}

	if act := p.stateActions[state.Id]; act != nil {
		if err := e.executeAction(ctx, run, state.Id, act); err != nil {
			return e.handleActionError(ctx, p, run, err)
		}
	}
	if state.IsTerminal {
		return e.complete(run)
	}

	idx, err := e.nextTransition(p, run, run.CurrentState)
	if err != nil {
		return e.fail(run, err)
	}
	if act := p.transitionActions[idx]; act != nil {
		if err := e.executeAction(ctx, run, state.Id, act); err != nil {
			return e.handleActionError(ctx, p, run, err)
		}
	}
	t := p.transition(idx)
	if err := e.performTransition(p, run, t.To, []string{t.Condition.String()}, e.maxTrans); err != nil {
		return e.fail(run, err)
	}
	return nil
}

func (e *WorkflowExecutor) executeAction(ctx context.Context, run *model.WorkflowRun, state model.StateId, act action.Action) error {
	start := time.Now()
	_, err := act.Execute(ctx, run.Context)
	e.metrics.RecordStateExecution(run.Id, state, time.Since(start))
	if err != nil {
		return err
	}
	e.events.Append(run.Id, EVENT_STATE_EXECUTION, fmt.Sprintf("Executed action in state %s: %s", state, act.Description()))
	return nil
}

// nextTransition returns the index of the first eligible transition out of state, in
// declaration order.
func (e *WorkflowExecutor) nextTransition(p *plan, run *model.WorkflowRun, state model.StateId) (int, error) {
	for _, idx := range p.outgoing[state] {
		t := p.transition(idx)
		ok, err := e.evaluator.Evaluate(t.Condition, run.Context)
		if err != nil {
			return 0, wrapError(EXPRESSION_ERROR, err, "evaluating condition of %s: %s", model.NewTransitionKey(t.From, t.To), err.Error())
		}
		e.events.Append(run.Id, EVENT_CONDITION_EVALUATED, fmt.Sprintf("%s [%s] = %t", model.NewTransitionKey(t.From, t.To), t.Condition, ok))
		if ok {
			return idx, nil
		}
	}
	return 0, newError(INVALID_TRANSITION, "no valid transition found from state '%s'", state)
}

// performTransition moves the run to target. Performing transition number limit+1 is refused.
func (e *WorkflowExecutor) performTransition(p *plan, run *model.WorkflowRun, target model.StateId, conditions []string, limit int) error {
	if len(run.History)-1 >= limit {
		return &ExecutorError{Kind: TRANSITION_LIMIT_EXCEEDED, Limit: limit, Message: "transition limit exceeded"}
	}
	from := run.CurrentState
	run.TransitionTo(target)
	e.events.Append(run.Id, EVENT_STATE_TRANSITION, fmt.Sprintf("Transitioned from %s to %s", from, target))
	e.metrics.RecordTransition(run.Id)
	e.metrics.UpdateMemory(run.Id, len(run.Context), len(run.History))
	if e.collector != nil {
		e.collector.Transition(run.Workflow.Name)
	}

	key := model.NewTransitionKey(from, target)
	if _, ok := e.caches.GetTransitionPath(key); !ok {
		e.caches.PutTransitionPath(model.NewTransitionPath(from, target, conditions))
	}
	if state, ok := p.states[target]; ok {
		if compensation := state.Metadata[model.COMPENSATION_STATE_METADATA]; compensation != "" {
			run.Context[model.CompensationKey(target)] = compensation
		}
	}
	return nil
}

// handleActionError records the failure and then routes the run: a registered compensation state
// first, an ON_FAILURE transition second, otherwise the run fails. Aborts always fail the run.
func (e *WorkflowExecutor) handleActionError(ctx context.Context, p *plan, run *model.WorkflowRun, actionErr error) error {
	if ctx.Err() != nil {
		return e.interrupt(ctx, run)
	}
	state := run.CurrentState
	run.Context[model.LAST_ACTION_RESULT_KEY] = false
	run.Context[model.ERROR_CONTEXT_KEY] = model.ErrorContext{
		ErrorMessage:   actionErr.Error(),
		ErrorState:     state,
		ErrorTimestamp: time.Now(),
		RetryAttempts:  action.RetriesOf(actionErr),
	}.ToMap()
	e.events.Append(run.Id, EVENT_FAILED, fmt.Sprintf("Action failed in state %s: %s", state, actionErr.Error()))
	if e.collector != nil {
		kind, _ := action.ErrorKindOf(actionErr)
		if kind == "" {
			kind = action.EXECUTION_ERROR
		}
		e.collector.ActionError(run.Workflow.Name, string(kind))
	}
	snapshot := run.Snapshot()
	for _, o := range e.observers {
		o.ActionFailed(snapshot, state, actionErr)
	}
	logger.Warn("action failed", zap.String("runId", run.Id), zap.String("state", string(state)), zap.Error(actionErr))

	compensated, err := e.compensate(p, run)
	if err != nil {
		return e.fail(run, err)
	}
	if IsAbort(actionErr) {
		return e.fail(run, wrapError(ABORTED, actionErr, "workflow aborted in state '%s'", state))
	}
	if compensated {
		return nil
	}
	for _, idx := range p.outgoing[state] {
		t := p.transition(idx)
		if t.Condition.Type != model.CONDITION_ON_FAILURE {
			continue
		}
		if err := e.performTransition(p, run, t.To, []string{t.Condition.String()}, e.maxTrans); err != nil {
			return e.fail(run, err)
		}
		return nil
	}
	return e.fail(run, wrapError(ACTION_ERROR, actionErr, "action failed in state '%s'", state))
}

func (e *WorkflowExecutor) complete(run *model.WorkflowRun) error {
	run.Complete()
	e.events.Append(run.Id, EVENT_COMPLETED, fmt.Sprintf("Workflow completed in state %s", run.CurrentState))
	logger.Info("workflow completed", zap.String("workflow", run.Workflow.Name), zap.String("runId", run.Id), zap.Duration("duration", run.Duration()))
	e.finish(run, nil)
	return nil
}

func (e *WorkflowExecutor) fail(run *model.WorkflowRun, err error) error {
	run.Fail()
	e.events.Append(run.Id, EVENT_FAILED, fmt.Sprintf("Workflow failed in state %s: %s", run.CurrentState, err.Error()))
	logger.Error("workflow failed", zap.String("workflow", run.Workflow.Name), zap.String("runId", run.Id), zap.Error(err))
	e.finish(run, err)
	return err
}

// interrupt parks the run after its context was cancelled. A pause request keeps the run
// resumable, anything else cancels it.
func (e *WorkflowExecutor) interrupt(ctx context.Context, run *model.WorkflowRun) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrPauseRequested) {
		run.Pause()
		logger.Info("workflow paused", zap.String("runId", run.Id), zap.String("state", string(run.CurrentState)))
		if e.collector != nil {
			e.collector.RunFinished(run.Workflow.Name, string(run.Status), run.Duration().Seconds())
		}
		return wrapError(PAUSED, cause, "workflow run %s paused in state '%s'", run.Id, run.CurrentState)
	}
	run.Cancel()
	err := wrapError(CANCELLED, cause, "workflow run %s cancelled in state '%s'", run.Id, run.CurrentState)
	e.events.Append(run.Id, EVENT_FAILED, err.Error())
	logger.Info("workflow cancelled", zap.String("runId", run.Id), zap.String("state", string(run.CurrentState)))
	e.finish(run, err)
	return err
}

func (e *WorkflowExecutor) finish(run *model.WorkflowRun, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	e.completeCostSession(run)
	e.metrics.CompleteRun(run.Id, run.Status, errMsg)
	if e.collector != nil {
		e.collector.RunFinished(run.Workflow.Name, string(run.Status), run.Duration().Seconds())
	}
	snapshot := run.Snapshot()
	for _, o := range e.observers {
		o.RunFinished(snapshot, err)
	}
}
