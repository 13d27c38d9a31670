package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohitkumar/wfhammer/util"
)

var _ Action = new(SetVariableAction)

type SetVariableAction struct {
	baseAction
	Name  string
	Value string
}

func NewSetVariableAction(name string, value string, substitutor util.Substitutor) *SetVariableAction {
	return &SetVariableAction{
		baseAction: newBaseAction(ACTION_TYPE_SET_VARIABLE, substitutor),
		Name:       name,
		Value:      value,
	}
}

func (a *SetVariableAction) Description() string {
	return fmt.Sprintf("Set variable '%s' to '%s'", a.Name, a.Value)
}

// Execute stores the substituted value, decoded as JSON when it parses as JSON.
func (a *SetVariableAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	raw := a.substitute(a.Value, vars)
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	vars[a.Name] = value
	markSuccess(vars)
	return value, nil
}
