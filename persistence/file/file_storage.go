package file

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/mermaid"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

var _ persistence.WorkflowStorage = new(fileWorkflowStorage)

var extensions = []string{".yaml", ".yml", ".json", ".md", ".mmd", ".mermaid"}

// fileWorkflowStorage reads workflow definitions from a directory, one file per workflow
// named after the workflow. Markdown and mermaid files hold a state diagram. New definitions
// are written as yaml.
type fileWorkflowStorage struct {
	dir  string
	yaml util.EncoderDecoder[model.Workflow]
	json util.EncoderDecoder[model.Workflow]
}

func NewFileWorkflowStorage(dir string) (*fileWorkflowStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return &fileWorkflowStorage{
		dir:  dir,
		yaml: util.NewYamlEncoderDecoder[model.Workflow](),
		json: util.NewJsonEncoderDecoder[model.Workflow](),
	}, nil
}

func (fs *fileWorkflowStorage) decoderFor(path string, name string) util.EncoderDecoder[model.Workflow] {
	switch filepath.Ext(path) {
	case ".json":
		return fs.json
	case ".md", ".mmd", ".mermaid":
		return &mermaid.MarkdownEncDec{Name: name}
	}
	return fs.yaml
}

func (fs *fileWorkflowStorage) find(name string) (string, bool) {
	for _, ext := range extensions {
		path := filepath.Join(fs.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func (fs *fileWorkflowStorage) Save(wf model.Workflow) error {
	data, err := fs.yaml.Encode(wf)
	if err != nil {
		return err
	}
	if existing, ok := fs.find(wf.Name); ok && !strings.HasSuffix(existing, ".yaml") {
		if err := os.Remove(existing); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	path := filepath.Join(fs.dir, wf.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("error in writing workflow file", zap.String("path", path), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (fs *fileWorkflowStorage) Load(name string) (*model.Workflow, error) {
	path, ok := fs.find(name)
	if !ok {
		return nil, persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	wf, err := fs.decoderFor(path, name).Decode(data)
	if err != nil {
		return nil, err
	}
	if wf.Name == "" {
		wf.Name = name
	}
	return wf, nil
}

func (fs *fileWorkflowStorage) Delete(name string) error {
	path, ok := fs.find(name)
	if !ok {
		return persistence.NotFoundError{Kind: "workflow", Name: name}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (fs *fileWorkflowStorage) List() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range extensions {
			if ext == known {
				name := strings.TrimSuffix(e.Name(), ext)
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
