package mermaid

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
	"gopkg.in/yaml.v3"
)

var _ util.EncoderDecoder[model.Workflow] = new(MarkdownEncDec)

// RenderDiagram writes a workflow as a stateDiagram-v2 with annotations for fork, join and
// choice states.
func RenderDiagram(wf *model.Workflow) string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "    %s --> %s\n", START_END, wf.InitialState)
	for _, s := range wf.States {
		if kind := s.StateType(); kind != model.STATE_TYPE_NORMAL {
			fmt.Fprintf(&b, "    state %s <<%s>>\n", s.Id, kind)
		}
	}
	for _, t := range wf.Transitions {
		if label := labelFor(t.Condition); label != "" {
			fmt.Fprintf(&b, "    %s --> %s : %s\n", t.From, t.To, label)
		} else {
			fmt.Fprintf(&b, "    %s --> %s\n", t.From, t.To)
		}
	}
	for _, s := range wf.States {
		if s.IsTerminal {
			fmt.Fprintf(&b, "    %s --> %s\n", s.Id, START_END)
		}
	}
	return b.String()
}

func labelFor(cond model.TransitionCondition) string {
	switch cond.Type {
	case model.CONDITION_ALWAYS, "":
		return ""
	case model.CONDITION_NEVER:
		return "never"
	case model.CONDITION_ON_SUCCESS:
		return "on success"
	case model.CONDITION_ON_FAILURE:
		return "on failure"
	}
	return cond.Expression
}

// Render writes a workflow as a markdown document that Parse reads back: yaml front matter,
// the diagram in a mermaid block and one action line per state.
func Render(wf *model.Workflow) ([]byte, error) {
	front, err := yaml.Marshal(FrontMatter{Name: wf.Name, Title: wf.Metadata[TITLE_METADATA], Description: wf.Description})
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString("```mermaid\n")
	b.WriteString(RenderDiagram(wf))
	b.WriteString("```\n\n## Actions\n\n")
	for _, s := range wf.States {
		if s.Description == "" || s.Description == string(s.Id) {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", s.Id, strings.Join(strings.Fields(s.Description), " "))
	}
	return []byte(b.String()), nil
}

// MarkdownEncDec stores workflows as markdown documents with an embedded state diagram.
type MarkdownEncDec struct {
	Name string
}

func (m *MarkdownEncDec) Encode(wf model.Workflow) ([]byte, error) {
	return Render(&wf)
}

func (m *MarkdownEncDec) Decode(data []byte) (*model.Workflow, error) {
	return Parse(string(data), m.Name)
}
