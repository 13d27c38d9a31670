package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/service"
	"go.uber.org/zap"
)

func flowStatusFor(err error) int {
	if kind, ok := executor.KindOf(err); ok && kind == executor.VALIDATION_FAILED {
		return http.StatusBadRequest
	}
	if errors.As(err, &service.RunNotActiveError{}) {
		return http.StatusConflict
	}
	if errors.As(err, &service.QueueFullError{}) {
		return http.StatusServiceUnavailable
	}
	return statusFor(err)
}

func (s *Server) HandleRunFlow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var runReq model.WorkflowRunRequest
	if err := json.NewDecoder(r.Body).Decode(&runReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid run request")
		return
	}
	runId, err := s.executionService.StartRun(runReq.Name, runReq.Input)
	if err != nil {
		logger.Error("error running workflow", zap.String("name", runReq.Name), zap.Error(err))
		respondWithError(w, flowStatusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"runId": runId})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	run, err := s.executionService.GetRun(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondOK(w, run)
}

func (s *Server) HandlePauseFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.executionService.PauseRun(mux.Vars(r)["id"]); err != nil {
		respondWithError(w, flowStatusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "pause requested"})
}

func (s *Server) HandleResumeFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.executionService.ResumeRun(mux.Vars(r)["id"]); err != nil {
		respondWithError(w, flowStatusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "resumed"})
}

func (s *Server) HandleCancelFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.executionService.CancelRun(mux.Vars(r)["id"]); err != nil {
		respondWithError(w, flowStatusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "cancel requested"})
}

func (s *Server) HandleFlowEvents(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"events": s.executor.HistoryFor(mux.Vars(r)["id"])})
}

func (s *Server) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondOK(w, s.executor.Caches().Stats())
}

func (s *Server) HandleClearCaches(w http.ResponseWriter, r *http.Request) {
	s.executor.ClearAllCaches()
	respondOK(w, map[string]string{"message": "cleared"})
}

func (s *Server) HandleRunStats(w http.ResponseWriter, r *http.Request) {
	m := s.executor.Metrics()
	respondOK(w, map[string]any{
		"global":               m.Global(),
		"averageDuration":      m.Trends.Average(metrics.TREND_RUN_DURATION),
		"averageThroughput":    m.Trends.Average(metrics.TREND_THROUGHPUT),
		"memoryTrend":          m.Trends.Points(metrics.TREND_MEMORY),
		"costTrend":            m.Trends.Points(metrics.TREND_COST),
		"tokenEfficiencyTrend": m.Trends.Points(metrics.TREND_TOKEN_EFFICIENCY),
	})
}
