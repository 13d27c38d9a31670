package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func simpleWorkflow() *Workflow {
	wf := NewWorkflow("simple", "start to end", "start")
	wf.AddState(State{Id: "start", Description: "Start"})
	wf.AddState(State{Id: "end", Description: "End", IsTerminal: true})
	wf.AddTransition(Transition{From: "start", To: "end", Condition: TransitionCondition{Type: CONDITION_ALWAYS}})
	return wf
}

func TestStateId(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"valid id": func(t *testing.T) {
			id, err := NewStateId("start")
			require.NoError(t, err)
			require.Equal(t, StateId("start"), id)
		},
		"empty id": func(t *testing.T) {
			_, err := NewStateId("")
			require.ErrorIs(t, err, EmptyStateIdError{})
		},
		"whitespace id": func(t *testing.T) {
			_, err := NewStateId("  \t")
			require.Error(t, err)
		},
		"value equality": func(t *testing.T) {
			a, _ := NewStateId("x")
			b, _ := NewStateId("x")
			m := map[StateId]int{a: 1}
			require.Equal(t, 1, m[b])
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestWorkflowValidate(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, wf *Workflow){
		"valid workflow": func(t *testing.T, wf *Workflow) {
			require.NoError(t, wf.Validate())
		},
		"missing initial state": func(t *testing.T, wf *Workflow) {
			wf.InitialState = "nowhere"
			require.ErrorContains(t, wf.Validate(), "initial state 'nowhere' not found")
		},
		"unknown transition target": func(t *testing.T, wf *Workflow) {
			wf.AddTransition(Transition{From: "start", To: "ghost", Condition: TransitionCondition{Type: CONDITION_ALWAYS}})
			require.ErrorContains(t, wf.Validate(), "non-existent target state: 'ghost'")
		},
		"no terminal state": func(t *testing.T, wf *Workflow) {
			wf.States[1].IsTerminal = false
			require.ErrorContains(t, wf.Validate(), "at least one terminal state")
		},
		"custom condition without expression": func(t *testing.T, wf *Workflow) {
			wf.Transitions[0].Condition = TransitionCondition{Type: CONDITION_CUSTOM}
			require.ErrorContains(t, wf.Validate(), "requires an expression")
		},
		"fork with a single branch": func(t *testing.T, wf *Workflow) {
			wf.States[0].Type = STATE_TYPE_FORK
			require.ErrorContains(t, wf.Validate(), "fork state 'start'")
		},
		"duplicate state": func(t *testing.T, wf *Workflow) {
			wf.AddState(State{Id: "end", IsTerminal: true})
			require.ErrorContains(t, wf.Validate(), "declared more than once")
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, simpleWorkflow())
		})
	}
}

func TestWorkflowRunLifecycle(t *testing.T) {
	run := NewWorkflowRun(*simpleWorkflow())
	require.NotEmpty(t, run.Id)
	require.Equal(t, RUNNING, run.Status)
	require.Equal(t, []StateId{"start"}, run.HistoryStates())

	run.TransitionTo("end")
	require.Equal(t, StateId("end"), run.CurrentState)
	require.Equal(t, []StateId{"start", "end"}, run.HistoryStates())

	run.Complete()
	require.True(t, run.IsFinished())
	require.NotNil(t, run.CompletedAt)

	other := NewWorkflowRun(*simpleWorkflow())
	other.Pause()
	require.False(t, other.IsFinished())
	other.Resume()
	require.Equal(t, RUNNING, other.Status)
}

func TestRunIdsAreTimeOrdered(t *testing.T) {
	first := NewRunId()
	time.Sleep(2 * time.Millisecond)
	second := NewRunId()
	require.Less(t, first, second)
}

func TestCompensationMarkers(t *testing.T) {
	vars := map[string]any{
		CompensationKey("b"): "rollback_b",
		CompensationKey("a"): "rollback_a",
		"compensation_for_x": 12,
		"plain":              "value",
	}
	require.Equal(t, []string{"compensation_for_a", "compensation_for_b"}, CompensationMarkers(vars))
	require.True(t, IsReservedKey(CompensationKey("a")))
	require.True(t, IsReservedKey(WORKFLOW_STACK_KEY))
	require.False(t, IsReservedKey("plain"))
}

func TestTransitionPath(t *testing.T) {
	path := NewTransitionPath("a", "b", []string{"always"})
	require.Equal(t, "a -> b", path.Key().String())
	require.False(t, path.IsExpired(time.Minute))
	path.CachedAt = time.Now().Add(-2 * time.Minute)
	require.True(t, path.IsExpired(time.Minute))
}

func TestCloneVars(t *testing.T) {
	vars := map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{"a"}}
	clone := CloneVars(vars)
	clone["nested"].(map[string]any)["k"] = "changed"
	clone["list"].([]any)[0] = "b"
	require.Equal(t, "v", vars["nested"].(map[string]any)["k"])
	require.Equal(t, "a", vars["list"].([]any)[0])
}

func TestRunSnapshotIsIndependent(t *testing.T) {
	run := NewWorkflowRun(*simpleWorkflow())
	run.Context["k"] = map[string]any{"v": 1}
	run.Metadata["m"] = "x"
	snap := run.Snapshot()

	run.TransitionTo("end")
	run.Context["k"].(map[string]any)["v"] = 2
	run.Metadata["m"] = "y"

	require.Len(t, snap.History, 1)
	require.Equal(t, 1, snap.Context["k"].(map[string]any)["v"])
	require.Equal(t, "x", snap.Metadata["m"])
}
