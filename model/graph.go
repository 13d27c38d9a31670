package model

import (
	"sort"
)

// WorkflowGraph answers structural questions about a workflow definition. Edges ignore
// transition conditions.
type WorkflowGraph struct {
	wf    *Workflow
	edges map[StateId][]StateId
}

func NewWorkflowGraph(wf *Workflow) *WorkflowGraph {
	edges := make(map[StateId][]StateId, len(wf.States))
	for _, t := range wf.Transitions {
		if !containsState(edges[t.From], t.To) {
			edges[t.From] = append(edges[t.From], t.To)
		}
	}
	return &WorkflowGraph{wf: wf, edges: edges}
}

func containsState(ids []StateId, id StateId) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortStates(ids []StateId) []StateId {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Successors returns the distinct targets of a state's transitions in declaration order.
func (g *WorkflowGraph) Successors(id StateId) []StateId {
	return g.edges[id]
}

// ReachableFrom returns every state reachable from start, start included, sorted by id.
func (g *WorkflowGraph) ReachableFrom(start StateId) []StateId {
	seen := g.reachable(start)
	out := make([]StateId, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return sortStates(out)
}

func (g *WorkflowGraph) reachable(start StateId) map[StateId]bool {
	seen := map[StateId]bool{}
	stack := []StateId{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current] {
			continue
		}
		seen[current] = true
		for _, next := range g.edges[current] {
			if !seen[next] {
				stack = append(stack, next)
			}
		}
	}
	return seen
}

// Unreachable returns the declared states that cannot be reached from the initial state.
func (g *WorkflowGraph) Unreachable() []StateId {
	seen := g.reachable(g.wf.InitialState)
	var out []StateId
	for _, s := range g.wf.States {
		if !seen[s.Id] {
			out = append(out, s.Id)
		}
	}
	return sortStates(out)
}

// TerminalReachable reports whether any terminal state can be reached from the initial state.
func (g *WorkflowGraph) TerminalReachable() bool {
	seen := g.reachable(g.wf.InitialState)
	for _, s := range g.wf.States {
		if s.IsTerminal && seen[s.Id] {
			return true
		}
	}
	return false
}

// Cycles returns one path per distinct cycle found by a depth first walk over every state.
// Each path starts and ends with the same state. Rotations of the same cycle are reported once.
func (g *WorkflowGraph) Cycles() [][]StateId {
	var cycles [][]StateId
	reported := map[string]bool{}
	visited := map[StateId]bool{}
	var stack []StateId
	onStack := map[StateId]int{}

	var walk func(id StateId)
	walk = func(id StateId) {
		visited[id] = true
		onStack[id] = len(stack)
		stack = append(stack, id)
		for _, next := range g.edges[id] {
			if at, ok := onStack[next]; ok {
				cycle := append(append([]StateId{}, stack[at:]...), next)
				if key := cycleKey(cycle); !reported[key] {
					reported[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if !visited[next] {
				walk(next)
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, id)
	}
	for _, s := range g.wf.States {
		if !visited[s.Id] {
			walk(s.Id)
		}
	}
	return cycles
}

func cycleKey(cycle []StateId) string {
	members := append([]StateId{}, cycle[:len(cycle)-1]...)
	sortStates(members)
	key := ""
	for _, m := range members {
		key += string(m) + "\x00"
	}
	return key
}

func (g *WorkflowGraph) HasCycles() bool {
	return len(g.Cycles()) > 0
}

// Paths returns every simple path from one state to another, at most limit of them when limit
// is positive.
func (g *WorkflowGraph) Paths(from StateId, to StateId, limit int) [][]StateId {
	var paths [][]StateId
	onPath := map[StateId]bool{}
	var path []StateId

	var walk func(id StateId) bool
	walk = func(id StateId) bool {
		path = append(path, id)
		onPath[id] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, id)
		}()
		if id == to {
			paths = append(paths, append([]StateId{}, path...))
			return limit > 0 && len(paths) >= limit
		}
		for _, next := range g.edges[id] {
			if onPath[next] {
				continue
			}
			if walk(next) {
				return true
			}
		}
		return false
	}
	walk(from)
	return paths
}

// TopologicalSort orders states so every transition points forward. It returns false when
// the workflow contains a cycle.
func (g *WorkflowGraph) TopologicalSort() ([]StateId, bool) {
	inDegree := make(map[StateId]int, len(g.wf.States))
	for _, s := range g.wf.States {
		inDegree[s.Id] += 0
	}
	for _, targets := range g.edges {
		for _, to := range targets {
			inDegree[to]++
		}
	}
	var ready []StateId
	for id, d := range inDegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sortStates(ready)

	order := make([]StateId, 0, len(inDegree))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)
		var released []StateId
		for _, next := range g.edges[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				released = append(released, next)
			}
		}
		ready = append(ready, sortStates(released)...)
	}
	if len(order) != len(inDegree) {
		return nil, false
	}
	return order, true
}
