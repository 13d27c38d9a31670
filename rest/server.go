package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port             int
	storage          persistence.WorkflowStorage
	executionService *service.WorkflowExecutionService
	executor         *executor.WorkflowExecutor
}

func NewServer(httpPort int, storage persistence.WorkflowStorage, executionService *service.WorkflowExecutionService,
	ex *executor.WorkflowExecutor, gatherer prometheus.Gatherer) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			ReadHeaderTimeout: 10 * time.Second,
		},
		Port:             httpPort,
		storage:          storage,
		executionService: executionService,
		executor:         ex,
	}

	router := mux.NewRouter()
	router.HandleFunc("/workflow", s.HandleCreateWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/workflow", s.HandleListWorkflows).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{name}", s.HandleGetWorkflow).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{name}", s.HandleDeleteWorkflow).Methods(http.MethodDelete)
	router.HandleFunc("/workflow/{name}/graph", s.HandleWorkflowGraph).Methods(http.MethodGet)
	router.HandleFunc("/flow/execute", s.HandleRunFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}/pause", s.HandlePauseFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}/resume", s.HandleResumeFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}/cancel", s.HandleCancelFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}/events", s.HandleFlowEvents).Methods(http.MethodGet)
	router.HandleFunc("/cache/stats", s.HandleCacheStats).Methods(http.MethodGet)
	router.HandleFunc("/cache", s.HandleClearCaches).Methods(http.MethodDelete)
	router.HandleFunc("/stats", s.HandleRunStats).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", zap.String("method", r.Method), zap.String("uri", r.RequestURI))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, payload any) {
	respondWithJSON(w, http.StatusOK, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
