package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var variablePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_.-]*)\}`)

// Substitutor renders ${var} references against a run context.
type Substitutor interface {
	Substitute(template string, vars map[string]any) string
}

// VariableSubstitutor leaves unresolved references verbatim.
type VariableSubstitutor struct{}

var _ Substitutor = new(VariableSubstitutor)

func NewVariableSubstitutor() *VariableSubstitutor {
	return &VariableSubstitutor{}
}

func (s *VariableSubstitutor) Substitute(template string, vars map[string]any) string {
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		value, ok := LookupVariable(vars, name)
		if !ok {
			return match
		}
		return ValueToString(value)
	})
}

// LookupVariable resolves a flat key first, then a dotted path such as "issue.title".
func LookupVariable(vars map[string]any, name string) (any, bool) {
	if value, ok := vars[name]; ok {
		return value, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	value, err := jsonpath.JsonPathLookup(vars, "$."+name)
	if err != nil {
		return nil, false
	}
	return value, true
}

func ValueToString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
