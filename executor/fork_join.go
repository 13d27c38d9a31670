package executor

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// transitionBudget is the number of transitions the branches of one fork may still perform
// together before the run's ceiling is reached.
type transitionBudget struct {
	remaining atomic.Int64
}

func newTransitionBudget(remaining int) *transitionBudget {
	b := &transitionBudget{}
	b.remaining.Store(int64(remaining))
	return b
}

func (b *transitionBudget) take() bool {
	return b.remaining.Add(-1) >= 0
}

// executeFork runs every outgoing branch of a fork state concurrently, each on its own copy of
// the context. All branches must stop at the same join state. Branch writes are merged into the
// run context in declaration order, so for a key written by several branches the last branch wins.
// Branch transitions count toward the run's transition ceiling through a shared budget.
func (e *WorkflowExecutor) executeFork(ctx context.Context, p *plan, run *model.WorkflowRun, fork model.State) error {
	indexes := p.outgoing[fork.Id]
	base := model.CloneVars(run.Context)
	branches := make([]*model.WorkflowRun, len(indexes))
	budget := newTransitionBudget(e.maxTrans - (len(run.History) - 1))

	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range indexes {
		t := p.transition(idx)
		now := time.Now()
		branch := &model.WorkflowRun{
			Id:           run.Id,
			Workflow:     run.Workflow,
			CurrentState: t.To,
			History:      []model.HistoryEntry{{State: t.To, Timestamp: now}},
			Context:      model.CloneVars(base),
			Status:       model.RUNNING,
			StartedAt:    now,
			Metadata:     map[string]string{},
		}
		branches[i] = branch
		g.Go(func() error {
			return e.runBranch(gctx, p, branch, budget)
		})
	}
	logger.Debug("fork dispatched", zap.String("runId", run.Id), zap.String("state", string(fork.Id)), zap.Int("branches", len(branches)))
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return e.interrupt(ctx, run)
		}
		if kind, _ := KindOf(err); kind == TRANSITION_LIMIT_EXCEEDED {
			for _, b := range branches {
				run.History = append(run.History, b.History[:len(b.History)-1]...)
			}
			return e.fail(run, err)
		}
		if IsAbort(err) {
			return e.fail(run, wrapError(ABORTED, err, "workflow aborted in fork '%s'", fork.Id))
		}
		return e.fail(run, wrapError(EXECUTION_FAILED, err, "fork '%s' failed: %s", fork.Id, err.Error()))
	}

	join := branches[0].CurrentState
	for _, b := range branches[1:] {
		if b.CurrentState != join {
			return e.fail(run, newError(EXECUTION_FAILED, "fork '%s' branches stopped at different states: '%s' and '%s'", fork.Id, join, b.CurrentState))
		}
	}

	for _, b := range branches {
		for k, v := range b.Context {
			if k == model.LAST_ACTION_RESULT_KEY {
				continue
			}
			if old, ok := base[k]; ok && reflect.DeepEqual(old, v) {
				continue
			}
			run.Context[k] = v
		}
		run.History = append(run.History, b.History[:len(b.History)-1]...)
	}
	run.Context[model.LAST_ACTION_RESULT_KEY] = true
	e.events.Append(run.Id, EVENT_STATE_EXECUTION, fmt.Sprintf("Joined %d branches of fork %s", len(branches), fork.Id))
	if err := e.performTransition(p, run, join, []string{"fork"}, e.maxTrans); err != nil {
		return e.fail(run, err)
	}
	return nil
}

// runBranch drives one fork branch until it reaches a join or terminal state. Branch failures are
// not compensated; they fail the whole fork.
func (e *WorkflowExecutor) runBranch(ctx context.Context, p *plan, branch *model.WorkflowRun, budget *transitionBudget) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, ok := p.states[branch.CurrentState]
		if !ok {
			return newError(STATE_NOT_FOUND, "state '%s' not found in workflow '%s'", branch.CurrentState, branch.Workflow.Name)
		}
		if state.StateType() == model.STATE_TYPE_JOIN || state.IsTerminal {
			return nil
		}
		if state.StateType() == model.STATE_TYPE_FORK {
			return newError(EXECUTION_FAILED, "nested fork '%s' is not supported inside a branch", state.Id)
		}
		if act := p.stateActions[state.Id]; act != nil {
			if err := e.executeAction(ctx, branch, state.Id, act); err != nil {
				return wrapError(ACTION_ERROR, err, "branch action failed in state '%s'", state.Id)
			}
		}
		idx, err := e.nextTransition(p, branch, state.Id)
		if err != nil {
			return err
		}
		if act := p.transitionActions[idx]; act != nil {
			if err := e.executeAction(ctx, branch, state.Id, act); err != nil {
				return wrapError(ACTION_ERROR, err, "branch action failed in state '%s'", state.Id)
			}
		}
		if !budget.take() {
			return &ExecutorError{Kind: TRANSITION_LIMIT_EXCEEDED, Limit: e.maxTrans, Message: "transition limit exceeded"}
		}
		t := p.transition(idx)
		if err := e.performTransition(p, branch, t.To, []string{t.Condition.String()}, e.maxTrans); err != nil {
			return err
		}
	}
}
