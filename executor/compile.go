package executor

import (
	"encoding/json"
	"fmt"

	"github.com/mohitkumar/wfhammer/action"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

// plan is a validated workflow with its action descriptions parsed and bound. Plans are
// immutable and shared by every run of the same definition.
type plan struct {
	workflow          model.Workflow
	states            map[model.StateId]model.State
	stateActions      map[model.StateId]action.Action
	transitionActions []action.Action
	outgoing          map[model.StateId][]int
}

func (p *plan) transition(idx int) model.Transition {
	return p.workflow.Transitions[idx]
}

func planKey(wf model.Workflow) (string, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%x", wf.Name, murmur3.Sum64(data)), nil
}

// compile turns a definition into a plan, reusing a cached plan for an identical definition.
func (e *WorkflowExecutor) compile(wf model.Workflow) (*plan, error) {
	key, err := planKey(wf)
	if err != nil {
		return nil, wrapError(VALIDATION_FAILED, err, "workflow '%s' can not be encoded", wf.Name)
	}
	if cached, ok := e.caches.GetWorkflow(key); ok {
		return cached.(*plan), nil
	}
	if err := wf.Validate(); err != nil {
		return nil, wrapError(VALIDATION_FAILED, err, "workflow '%s' is invalid: %s", wf.Name, err.Error())
	}
	p := &plan{
		workflow:          wf,
		states:            make(map[model.StateId]model.State, len(wf.States)),
		stateActions:      make(map[model.StateId]action.Action),
		transitionActions: make([]action.Action, len(wf.Transitions)),
		outgoing:          make(map[model.StateId][]int),
	}
	for _, s := range wf.States {
		p.states[s.Id] = s
		act, err := e.bind(s.Description)
		if err != nil {
			return nil, wrapError(VALIDATION_FAILED, err, "state '%s' has an invalid action: %s", s.Id, err.Error())
		}
		if act != nil {
			p.stateActions[s.Id] = act
		}
	}
	for i, t := range wf.Transitions {
		p.outgoing[t.From] = append(p.outgoing[t.From], i)
		if t.Condition.Type == model.CONDITION_CUSTOM {
			if _, err := e.evaluator.Compile(t.Condition.Expression); err != nil {
				return nil, wrapError(VALIDATION_FAILED, err, "transition %s has an invalid condition: %s", model.NewTransitionKey(t.From, t.To), err.Error())
			}
		}
		if t.Action == "" {
			continue
		}
		act, err := e.bind(t.Action)
		if err != nil {
			return nil, wrapError(VALIDATION_FAILED, err, "transition %s has an invalid action: %s", model.NewTransitionKey(t.From, t.To), err.Error())
		}
		p.transitionActions[i] = act
	}
	e.caches.PutWorkflow(key, p)
	logger.Debug("compiled workflow", zap.String("workflow", wf.Name), zap.String("key", key), zap.Int("actions", len(p.stateActions)))
	return p, nil
}

// bind parses a description into an action. Prose without an action keyword yields nil.
func (e *WorkflowExecutor) bind(description string) (action.Action, error) {
	spec, err := action.ParseActionSpec(description)
	if err != nil || spec == nil {
		return nil, err
	}
	return action.NewAction(*spec, e.collaborators)
}
