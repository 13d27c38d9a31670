package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Workflow struct {
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description" yaml:"description"`
	InitialState StateId           `json:"initialState" yaml:"initialState"`
	States       []State           `json:"states" yaml:"states"`
	Transitions  []Transition      `json:"transitions" yaml:"transitions"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type WorkflowRunRequest struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func NewWorkflow(name string, description string, initialState StateId) *Workflow {
	return &Workflow{
		Name:         name,
		Description:  description,
		InitialState: initialState,
		Metadata:     map[string]string{},
	}
}

func (wf *Workflow) AddState(state State) {
	wf.States = append(wf.States, state)
}

func (wf *Workflow) AddTransition(transition Transition) {
	wf.Transitions = append(wf.Transitions, transition)
}

func (wf *Workflow) State(id StateId) (State, bool) {
	for _, s := range wf.States {
		if s.Id == id {
			return s, true
		}
	}
	return State{}, false
}

// TransitionsFrom returns the outgoing transitions of a state in declaration order.
func (wf *Workflow) TransitionsFrom(id StateId) []Transition {
	var out []Transition
	for _, t := range wf.Transitions {
		if t.From == id {
			out = append(out, t)
		}
	}
	return out
}

func (wf *Workflow) StateIds() []string {
	ids := make([]string, 0, len(wf.States))
	for _, s := range wf.States {
		ids = append(ids, string(s.Id))
	}
	sort.Strings(ids)
	return ids
}

func (wf *Workflow) Validate() error {
	var errs []error
	if strings.TrimSpace(wf.Name) == "" {
		errs = append(errs, fmt.Errorf("workflow name cannot be empty"))
	}
	seen := make(map[StateId]bool)
	for _, s := range wf.States {
		if strings.TrimSpace(string(s.Id)) == "" {
			errs = append(errs, fmt.Errorf("state with empty id"))
			continue
		}
		if seen[s.Id] {
			errs = append(errs, fmt.Errorf("state '%s' is declared more than once", s.Id))
		}
		seen[s.Id] = true
	}
	if _, ok := wf.State(wf.InitialState); !ok {
		errs = append(errs, fmt.Errorf("initial state '%s' not found in workflow states, available states: %v", wf.InitialState, wf.StateIds()))
	}
	for i, t := range wf.Transitions {
		if strings.TrimSpace(string(t.From)) == "" {
			errs = append(errs, fmt.Errorf("transition #%d has empty source state id", i))
		} else if !seen[t.From] {
			errs = append(errs, fmt.Errorf("transition references non-existent source state: '%s'", t.From))
		}
		if strings.TrimSpace(string(t.To)) == "" {
			errs = append(errs, fmt.Errorf("transition #%d has empty target state id", i))
		} else if !seen[t.To] {
			errs = append(errs, fmt.Errorf("transition references non-existent target state: '%s'", t.To))
		}
		if t.Condition.Type == CONDITION_CUSTOM && strings.TrimSpace(t.Condition.Expression) == "" {
			errs = append(errs, fmt.Errorf("transition %s requires an expression for its custom condition", NewTransitionKey(t.From, t.To)))
		}
	}
	hasTerminal := false
	for _, s := range wf.States {
		if s.IsTerminal {
			hasTerminal = true
		}
		if s.StateType() == STATE_TYPE_FORK && len(wf.TransitionsFrom(s.Id)) < 2 {
			errs = append(errs, fmt.Errorf("fork state '%s' needs at least two outgoing transitions", s.Id))
		}
	}
	if !hasTerminal {
		errs = append(errs, fmt.Errorf("workflow must have at least one terminal state"))
	}
	return errors.Join(errs...)
}
