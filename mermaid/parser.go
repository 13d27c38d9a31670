package mermaid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mohitkumar/wfhammer/model"
	"gopkg.in/yaml.v3"
)

const START_END = "[*]"

const DEFAULT_DESCRIPTION = "Workflow from Mermaid state diagram"

const SOURCE_METADATA = "source"
const VERSION_METADATA = "version"
const TITLE_METADATA = "title"
const STATE_TYPE_METADATA = "mermaid_type"

type ParseError struct {
	Line    int
	Message string
}

func (e ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("mermaid parse error at line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("mermaid parse error: %s", e.Message)
}

// FrontMatter is the yaml header of a markdown workflow file.
type FrontMatter struct {
	Name        string `yaml:"name,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type diagram struct {
	version     string
	title       string
	order       []model.StateId
	kinds       map[model.StateId]model.StateType
	labels      map[model.StateId]string
	transitions []edge
}

type edge struct {
	from  string
	to    string
	event string
	line  int
}

var stateIdPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
var annotationPattern = regexp.MustCompile(`^state\s+(\S+)\s+<<(\w+)>>$`)
var aliasPattern = regexp.MustCompile(`^state\s+"([^"]*)"\s+as\s+(\S+)$`)

// Parse builds a workflow from a Mermaid state diagram. The input is either a bare diagram or
// a markdown document with optional yaml front matter, a ```mermaid block and an "## Actions"
// list of "- State: action" lines that become state descriptions.
func Parse(input string, name string) (*model.Workflow, error) {
	front, body, err := splitFrontMatter(input)
	if err != nil {
		return nil, err
	}
	source, err := extractDiagram(body)
	if err != nil {
		return nil, err
	}
	d, err := parseDiagram(source)
	if err != nil {
		return nil, err
	}
	if front.Name != "" {
		name = front.Name
	}
	wf, err := d.toWorkflow(name, extractActions(body), front)
	if err != nil {
		return nil, err
	}
	if err := validateStructure(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func isDiagramHeader(line string) bool {
	return strings.HasPrefix(line, "stateDiagram")
}

func splitFrontMatter(input string) (FrontMatter, string, error) {
	var front FrontMatter
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return front, normalized, nil
	}
	parts := strings.SplitN(normalized[len("---\n"):], "\n---", 2)
	if len(parts) != 2 {
		return front, normalized, nil
	}
	if err := yaml.Unmarshal([]byte(parts[0]), &front); err != nil {
		return front, "", ParseError{Message: "invalid front matter: " + err.Error()}
	}
	return front, strings.TrimPrefix(parts[1], "\n"), nil
}

func extractDiagram(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if isDiagramHeader(trimmed) {
		return trimmed, nil
	}
	var lines []string
	inBlock := false
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if !inBlock && t == "```mermaid" {
			inBlock = true
			continue
		}
		if inBlock && t == "```" {
			break
		}
		if inBlock {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", ParseError{Message: "no mermaid code block found"}
	}
	return strings.Join(lines, "\n"), nil
}

func extractActions(body string) map[model.StateId]string {
	actions := map[model.StateId]string{}
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if strings.EqualFold(t, "## Actions") || strings.EqualFold(t, "### Actions") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(t, "##") {
			break
		}
		if !strings.HasPrefix(t, "-") {
			continue
		}
		entry := strings.TrimSpace(strings.TrimLeft(t, "-"))
		state, act, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		actions[model.StateId(strings.TrimSpace(state))] = strings.TrimSpace(act)
	}
	return actions
}

func parseDiagram(source string) (*diagram, error) {
	d := &diagram{
		kinds:  map[model.StateId]model.StateType{},
		labels: map[model.StateId]string{},
	}
	seen := map[model.StateId]bool{}
	declare := func(id string) {
		if id == START_END || seen[model.StateId(id)] {
			return
		}
		seen[model.StateId(id)] = true
		d.order = append(d.order, model.StateId(id))
	}

	headerSeen := false
	inNote := false
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !headerSeen {
			if !isDiagramHeader(line) {
				return nil, ParseError{Line: lineNo, Message: fmt.Sprintf("expected a state diagram, found '%s'", strings.Fields(line)[0])}
			}
			d.version = "v1"
			if strings.HasPrefix(line, "stateDiagram-v2") {
				d.version = "v2"
			}
			headerSeen = true
			continue
		}
		if inNote {
			if line == "end note" {
				inNote = false
			}
			continue
		}
		switch {
		case strings.Contains(line, "-->"):
			e, err := parseEdge(line, lineNo)
			if err != nil {
				return nil, err
			}
			declare(e.from)
			declare(e.to)
			d.transitions = append(d.transitions, e)
		case line == "title" || strings.HasPrefix(line, "title:") || strings.HasPrefix(line, "title "):
			d.title = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "title"), ":"))
		case strings.HasPrefix(line, "direction "), strings.HasPrefix(line, "classDef "), strings.HasPrefix(line, "class "):
		case strings.HasPrefix(line, "note "):
			if !strings.Contains(line, ":") {
				inNote = true
			}
		case strings.HasSuffix(line, "{") || line == "}" || line == "--":
			return nil, ParseError{Line: lineNo, Message: "composite and concurrent states are not supported"}
		case annotationPattern.MatchString(line):
			m := annotationPattern.FindStringSubmatch(line)
			id := model.StateId(m[1])
			kind := model.ToStateType(m[2])
			if kind == model.STATE_TYPE_NORMAL && !strings.EqualFold(m[2], string(model.STATE_TYPE_NORMAL)) {
				return nil, ParseError{Line: lineNo, Message: fmt.Sprintf("unknown state annotation '<<%s>>'", m[2])}
			}
			declare(m[1])
			d.kinds[id] = kind
		case aliasPattern.MatchString(line):
			m := aliasPattern.FindStringSubmatch(line)
			declare(m[2])
			d.labels[model.StateId(m[2])] = m[1]
		default:
			id, label, hasLabel := strings.Cut(strings.TrimPrefix(line, "state "), ":")
			id = strings.TrimSpace(id)
			if !stateIdPattern.MatchString(id) {
				return nil, ParseError{Line: lineNo, Message: fmt.Sprintf("unrecognized statement '%s'", line)}
			}
			declare(id)
			if hasLabel {
				d.labels[model.StateId(id)] = strings.TrimSpace(label)
			}
		}
	}
	if !headerSeen {
		return nil, ParseError{Message: "empty diagram"}
	}
	return d, nil
}

func parseEdge(line string, lineNo int) (edge, error) {
	from, rest, _ := strings.Cut(line, "-->")
	to, event, _ := strings.Cut(rest, ":")
	e := edge{
		from:  strings.TrimSpace(from),
		to:    strings.TrimSpace(to),
		event: strings.TrimSpace(event),
		line:  lineNo,
	}
	for _, id := range []string{e.from, e.to} {
		if id != START_END && !stateIdPattern.MatchString(id) {
			return edge{}, ParseError{Line: lineNo, Message: fmt.Sprintf("invalid state id '%s'", id)}
		}
	}
	return e, nil
}

func (d *diagram) toWorkflow(name string, actions map[model.StateId]string, front FrontMatter) (*model.Workflow, error) {
	var initial model.StateId
	terminal := map[model.StateId]bool{}
	for _, e := range d.transitions {
		if e.from == START_END && e.to != START_END && initial == "" {
			initial = model.StateId(e.to)
		}
		if e.to == START_END && e.from != START_END {
			terminal[model.StateId(e.from)] = true
		}
	}
	if initial == "" {
		return nil, ParseError{Message: "no initial state found, add a transition from [*]"}
	}
	if len(terminal) == 0 {
		return nil, ParseError{Message: "no terminal states found, at least one state must transition to [*]"}
	}

	description := DEFAULT_DESCRIPTION
	for _, candidate := range []string{front.Description, front.Title, d.title} {
		if candidate != "" {
			description = candidate
			break
		}
	}
	wf := model.NewWorkflow(name, description, initial)
	wf.Metadata[SOURCE_METADATA] = "mermaid"
	wf.Metadata[VERSION_METADATA] = d.version
	if front.Title != "" {
		wf.Metadata[TITLE_METADATA] = front.Title
	} else if d.title != "" {
		wf.Metadata[TITLE_METADATA] = d.title
	}

	for _, id := range d.order {
		kind, annotated := d.kinds[id]
		if !annotated {
			kind = model.STATE_TYPE_NORMAL
		}
		desc := string(id)
		if act, ok := actions[id]; ok {
			desc = act
		} else if label, ok := d.labels[id]; ok && label != "" {
			desc = label
		}
		wf.AddState(model.State{
			Id:             id,
			Description:    desc,
			Type:           kind,
			IsTerminal:     terminal[id],
			AllowsParallel: kind == model.STATE_TYPE_FORK || kind == model.STATE_TYPE_JOIN,
			Metadata:       map[string]string{STATE_TYPE_METADATA: string(kind)},
		})
	}
	for _, e := range d.transitions {
		if e.from == START_END || e.to == START_END {
			continue
		}
		wf.AddTransition(model.Transition{
			From:      model.StateId(e.from),
			To:        model.StateId(e.to),
			Condition: ConditionFor(e.event),
		})
	}
	markChoiceStates(wf)
	return wf, nil
}

// ConditionFor maps a transition label to a condition. Labels that look like expressions are
// custom conditions; keywords select the builtin conditions.
func ConditionFor(event string) model.TransitionCondition {
	if event == "" {
		return model.TransitionCondition{Type: model.CONDITION_ALWAYS}
	}
	if strings.ContainsAny(event, "=!&|.()<>") {
		return model.TransitionCondition{Type: model.CONDITION_CUSTOM, Expression: event}
	}
	lower := strings.ToLower(event)
	words := strings.Fields(lower)
	switch {
	case lower == "always":
		return model.TransitionCondition{Type: model.CONDITION_ALWAYS}
	case lower == "never":
		return model.TransitionCondition{Type: model.CONDITION_NEVER}
	case hasWord(words, "fail", "failure", "error", "invalid"):
		return model.TransitionCondition{Type: model.CONDITION_ON_FAILURE}
	case hasWord(words, "valid", "success"):
		return model.TransitionCondition{Type: model.CONDITION_ON_SUCCESS}
	}
	return model.TransitionCondition{Type: model.CONDITION_CUSTOM, Expression: event}
}

func hasWord(words []string, candidates ...string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

// markChoiceStates turns unannotated states with competing outgoing conditions into choices.
func markChoiceStates(wf *model.Workflow) {
	for i, s := range wf.States {
		if s.Type != model.STATE_TYPE_NORMAL {
			continue
		}
		out := wf.TransitionsFrom(s.Id)
		if len(out) < 2 {
			continue
		}
		always, custom, success, failure := 0, false, false, false
		for _, t := range out {
			switch t.Condition.Type {
			case model.CONDITION_ALWAYS:
				always++
			case model.CONDITION_CUSTOM:
				custom = true
			case model.CONDITION_ON_SUCCESS:
				success = true
			case model.CONDITION_ON_FAILURE:
				failure = true
			}
		}
		if custom || (success && failure) || always < len(out) {
			wf.States[i].Type = model.STATE_TYPE_CHOICE
			wf.States[i].Metadata[STATE_TYPE_METADATA] = string(model.STATE_TYPE_CHOICE)
		}
	}
}

func validateStructure(wf *model.Workflow) error {
	if err := wf.Validate(); err != nil {
		return ParseError{Message: "invalid workflow structure: " + err.Error()}
	}
	g := model.NewWorkflowGraph(wf)
	for _, id := range g.Unreachable() {
		s, _ := wf.State(id)
		if s.Description == "" || s.Description == string(id) {
			return ParseError{Message: fmt.Sprintf("unreachable states found: %v", g.Unreachable())}
		}
	}
	if !g.TerminalReachable() {
		return ParseError{Message: "no terminal states are reachable from the initial state"}
	}
	return nil
}
