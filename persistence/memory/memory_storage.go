package memory

import (
	"sort"
	"sync"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
)

var _ persistence.WorkflowStorage = new(memoryStorage)
var _ persistence.RunStorage = new(memoryStorage)

type memoryStorage struct {
	mu        sync.RWMutex
	workflows map[string]model.Workflow
	runs      map[string]model.WorkflowRun
}

func NewMemoryStorage() *memoryStorage {
	return &memoryStorage{
		workflows: make(map[string]model.Workflow),
		runs:      make(map[string]model.WorkflowRun),
	}
}

func (s *memoryStorage) Save(wf model.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.Name] = wf
	return nil
}

func (s *memoryStorage) Load(name string) (*model.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[name]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	return &wf, nil
}

func (s *memoryStorage) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[name]; !ok {
		return persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	delete(s.workflows, name)
	return nil
}

func (s *memoryStorage) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.workflows))
	for name := range s.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStorage) SaveRun(run model.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Id] = run.Snapshot()
	return nil
}

func (s *memoryStorage) GetRun(id string) (*model.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "run", Name: id}
	}
	snap := run.Snapshot()
	return &snap, nil
}

func (s *memoryStorage) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	return nil
}
