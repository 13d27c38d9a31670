package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

type RunNotActiveError struct {
	RunId  string
	Status model.RunStatus
}

func (e RunNotActiveError) Error() string {
	return fmt.Sprintf("run %s is %s", e.RunId, e.Status)
}

type QueueFullError struct{}

func (e QueueFullError) Error() string {
	return "execution queue is full"
}

type runTask struct {
	run    *model.WorkflowRun
	resume bool
}

// WorkflowExecutionService accepts run requests, queues them on a worker and drives each run on
// its own goroutine. Callers only ever see run snapshots.
type WorkflowExecutionService struct {
	executor   *executor.WorkflowExecutor
	storage    persistence.WorkflowStorage
	runStorage persistence.RunStorage
	runCache   *cache.RunCache
	worker     *util.Worker[runTask]
	wg         *sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	inflight   map[string]context.CancelCauseFunc
}

func NewWorkflowExecutionService(ex *executor.WorkflowExecutor, storage persistence.WorkflowStorage, runStorage persistence.RunStorage,
	runCache *cache.RunCache, capacity int, wg *sync.WaitGroup) *WorkflowExecutionService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WorkflowExecutionService{
		executor:   ex,
		storage:    storage,
		runStorage: runStorage,
		runCache:   runCache,
		wg:         wg,
		ctx:        ctx,
		cancel:     cancel,
		inflight:   make(map[string]context.CancelCauseFunc),
	}
	s.worker = util.NewWorker("workflow-execution-worker", wg, s.handle, capacity)
	return s
}

func (s *WorkflowExecutionService) Start() {
	s.worker.Start()
}

// StartRun validates and queues a run of the named workflow, returning its id.
func (s *WorkflowExecutionService) StartRun(name string, input map[string]any) (string, error) {
	wf, err := s.storage.Load(name)
	if err != nil {
		return "", err
	}
	run, err := s.executor.PrepareRun(*wf, input)
	if err != nil {
		return "", err
	}
	s.save(run)
	if err := s.dispatch(runTask{run: run}); err != nil {
		_ = s.executor.RejectRun(run, err)
		s.save(run)
		return "", err
	}
	logger.Info("queued workflow run", zap.String("workflow", name), zap.String("runId", run.Id))
	return run.Id, nil
}

func (s *WorkflowExecutionService) GetRun(id string) (*model.WorkflowRun, error) {
	if run, ok := s.runCache.GetRun(id); ok {
		snapshot := run.Snapshot()
		return &snapshot, nil
	}
	if s.runStorage == nil {
		return nil, persistence.NotFoundError{Kind: "run", Name: id}
	}
	return s.runStorage.GetRun(id)
}

func (s *WorkflowExecutionService) PauseRun(id string) error {
	return s.interrupt(id, executor.ErrPauseRequested)
}

func (s *WorkflowExecutionService) CancelRun(id string) error {
	return s.interrupt(id, context.Canceled)
}

// ResumeRun queues a paused or cancelled run again.
func (s *WorkflowExecutionService) ResumeRun(id string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if run.Status != model.PAUSED && run.Status != model.CANCELLED {
		return RunNotActiveError{RunId: id, Status: run.Status}
	}
	s.mu.Lock()
	_, running := s.inflight[id]
	s.mu.Unlock()
	if running {
		return RunNotActiveError{RunId: id, Status: model.RUNNING}
	}
	return s.dispatch(runTask{run: run, resume: true})
}

// Stop cancels every in-flight run and stops accepting work.
func (s *WorkflowExecutionService) Stop() error {
	s.cancel()
	s.worker.Stop()
	return nil
}

func (s *WorkflowExecutionService) interrupt(id string, cause error) error {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	s.mu.Unlock()
	if !ok {
		status := model.RunStatus("UNKNOWN")
		if run, err := s.GetRun(id); err == nil {
			status = run.Status
		}
		return RunNotActiveError{RunId: id, Status: status}
	}
	cancel(cause)
	return nil
}

func (s *WorkflowExecutionService) dispatch(task runTask) error {
	if !s.worker.Offer(task) {
		return QueueFullError{}
	}
	return nil
}

func (s *WorkflowExecutionService) handle(task runTask) error {
	ctx, cancel := context.WithCancelCause(s.ctx)
	s.mu.Lock()
	s.inflight[task.run.Id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel(nil)
		var err error
		if task.resume {
			err = s.executor.ResumeWorkflow(ctx, task.run)
		} else {
			err = s.executor.ExecuteRun(ctx, task.run)
		}
		s.save(task.run)
		s.mu.Lock()
		delete(s.inflight, task.run.Id)
		s.mu.Unlock()
		if err != nil {
			logger.Debug("workflow run ended with error", zap.String("runId", task.run.Id), zap.String("status", string(task.run.Status)), zap.Error(err))
		}
	}()
	return nil
}

func (s *WorkflowExecutionService) save(run *model.WorkflowRun) {
	snapshot := run.Snapshot()
	s.runCache.SaveRun(snapshot)
	if s.runStorage == nil {
		return
	}
	if err := s.runStorage.SaveRun(snapshot); err != nil {
		logger.Error("error saving run", zap.String("runId", run.Id), zap.Error(err))
	}
}
