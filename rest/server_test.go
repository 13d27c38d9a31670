package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence/memory"
	"github.com/mohitkumar/wfhammer/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const greetWorkflow = `{
	"name": "greet",
	"initialState": "start",
	"states": [
		{"id": "start", "description": "Set greeting=\"hello ${who}\""},
		{"id": "end", "description": "Log \"done\"", "isTerminal": true}
	],
	"transitions": [
		{"from": "start", "to": "end", "condition": {"type": "on_success"}}
	]
}`

func newTestServer(t *testing.T) http.Handler {
	caches, err := cache.NewCacheManager(cache.DefaultConfig())
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	require.NoError(t, err)
	storage := memory.NewMemoryStorage()
	ex := executor.NewWorkflowExecutor(caches, executor.Options{Storage: storage, Collector: collector})
	wg := &sync.WaitGroup{}
	svc := service.NewWorkflowExecutionService(ex, storage, storage, cache.NewRunCache(time.Minute), 10, wg)
	svc.Start()
	t.Cleanup(func() {
		svc.Stop()
		wg.Wait()
	})
	s, err := NewServer(0, storage, svc, ex, registry)
	require.NoError(t, err)
	return s.Handler
}

func do(h http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestServer(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, h http.Handler){
		"create and get workflow": func(t *testing.T, h http.Handler) {
			rec := do(h, http.MethodPost, "/workflow", greetWorkflow)
			require.Equal(t, http.StatusCreated, rec.Code)

			rec = do(h, http.MethodGet, "/workflow/greet", "")
			require.Equal(t, http.StatusOK, rec.Code)
			var wf model.Workflow
			decode(t, rec, &wf)
			require.Equal(t, model.StateId("start"), wf.InitialState)
			require.Len(t, wf.States, 2)

			rec = do(h, http.MethodGet, "/workflow", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), "greet")
		},
		"invalid workflow": func(t *testing.T, h http.Handler) {
			rec := do(h, http.MethodPost, "/workflow", `{"name": "bad", "initialState": "nowhere"}`)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), "nowhere")

			rec = do(h, http.MethodPost, "/workflow", `not json`)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		},
		"missing workflow": func(t *testing.T, h http.Handler) {
			require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/workflow/ghost", "").Code)
			require.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/workflow/ghost", "").Code)
			require.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/flow/execute", `{"name": "ghost"}`).Code)
		},
		"delete workflow": func(t *testing.T, h http.Handler) {
			require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/workflow", greetWorkflow).Code)
			require.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/workflow/greet", "").Code)
			require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/workflow/greet", "").Code)
		},
		"run workflow": func(t *testing.T, h http.Handler) {
			require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/workflow", greetWorkflow).Code)
			rec := do(h, http.MethodPost, "/flow/execute", `{"name": "greet", "input": {"who": "world"}}`)
			require.Equal(t, http.StatusAccepted, rec.Code)
			var started map[string]string
			decode(t, rec, &started)
			runId := started["runId"]
			require.NotEmpty(t, runId)

			var run model.WorkflowRun
			require.Eventually(t, func() bool {
				rec := do(h, http.MethodGet, "/flow/"+runId, "")
				if rec.Code != http.StatusOK {
					return false
				}
				decode(t, rec, &run)
				return run.Status == model.COMPLETED
			}, 3*time.Second, 10*time.Millisecond)
			require.Equal(t, "hello world", run.Context["greeting"])

			rec = do(h, http.MethodGet, "/flow/"+runId+"/events", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), string(executor.EVENT_COMPLETED))

			rec = do(h, http.MethodPost, "/flow/"+runId+"/resume", "")
			require.Equal(t, http.StatusConflict, rec.Code)

			rec = do(h, http.MethodGet, "/metrics", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), "wfhammer_runs_finished_total")
		},
		"workflow graph": func(t *testing.T, h http.Handler) {
			require.Equal(t, http.StatusCreated, do(h, http.MethodPost, "/workflow", greetWorkflow).Code)
			rec := do(h, http.MethodGet, "/workflow/greet/graph", "")
			require.Equal(t, http.StatusOK, rec.Code)
			var analysis workflowAnalysis
			decode(t, rec, &analysis)
			require.Equal(t, []model.StateId{"end", "start"}, analysis.Reachable)
			require.Empty(t, analysis.Unreachable)
			require.Empty(t, analysis.Cycles)
			require.Equal(t, []model.StateId{"start", "end"}, analysis.TopologicalOrder)
			require.True(t, analysis.TerminalReachable)

			rec = do(h, http.MethodGet, "/workflow/greet/graph?format=mermaid", "")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), "start --> end : on success")
			require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/workflow/ghost/graph", "").Code)
		},
		"unknown run": func(t *testing.T, h http.Handler) {
			require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/flow/nope", "").Code)
		},
		"cache stats": func(t *testing.T, h http.Handler) {
			rec := do(h, http.MethodGet, "/cache/stats", "")
			require.Equal(t, http.StatusOK, rec.Code)
			var stats map[string]cache.CacheStats
			decode(t, rec, &stats)
			require.Contains(t, stats, "workflows")

			require.Equal(t, http.StatusOK, do(h, http.MethodDelete, "/cache", "").Code)
			require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/stats", "").Code)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestServer(t))
		})
	}
}
