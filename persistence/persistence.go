package persistence

import (
	"fmt"

	"github.com/mohitkumar/wfhammer/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type NotFoundError struct {
	Kind string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// WorkflowStorage holds workflow definitions by name.
type WorkflowStorage interface {
	Save(wf model.Workflow) error
	Load(name string) (*model.Workflow, error)
	Delete(name string) error
	List() ([]string, error)
}

// RunStorage keeps the latest snapshot of every run.
type RunStorage interface {
	SaveRun(run model.WorkflowRun) error
	GetRun(id string) (*model.WorkflowRun, error)
	DeleteRun(id string) error
}
