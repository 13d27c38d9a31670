package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/mermaid"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	if errors.As(err, &persistence.NotFoundError{}) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) HandleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var wf model.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid workflow definition")
		return
	}
	if err := wf.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.storage.Save(wf); err != nil {
		logger.Error("error creating workflow", zap.String("name", wf.Name), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error creating workflow")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]string{"message": "created", "name": wf.Name})
}

func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	names, err := s.storage.List()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, map[string]any{"workflows": names})
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	wf, err := s.storage.Load(name)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondOK(w, wf)
}

func (s *Server) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.storage.Delete(name); err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondOK(w, map[string]string{"message": "deleted"})
}

type workflowAnalysis struct {
	Reachable         []model.StateId   `json:"reachable"`
	Unreachable       []model.StateId   `json:"unreachable"`
	Cycles            [][]model.StateId `json:"cycles"`
	TopologicalOrder  []model.StateId   `json:"topologicalOrder,omitempty"`
	TerminalReachable bool              `json:"terminalReachable"`
}

func (s *Server) HandleWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	wf, err := s.storage.Load(name)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(mermaid.RenderDiagram(wf)))
		return
	}
	g := model.NewWorkflowGraph(wf)
	order, _ := g.TopologicalSort()
	respondOK(w, workflowAnalysis{
		Reachable:         g.ReachableFrom(wf.InitialState),
		Unreachable:       g.Unreachable(),
		Cycles:            g.Cycles(),
		TopologicalOrder:  order,
		TerminalReachable: g.TerminalReachable(),
	})
}
