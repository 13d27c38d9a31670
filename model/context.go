package model

import (
	"sort"
	"strings"
	"time"
)

const LAST_ACTION_RESULT_KEY string = "last_action_result"
const CLAUDE_RESPONSE_KEY string = "claude_response"
const WORKFLOW_STACK_KEY string = "_workflow_stack"
const QUIET_KEY string = "_quiet"
const ERROR_CONTEXT_KEY string = "error_context"
const COST_SESSION_METADATA string = "cost_session_id"

const COMPENSATION_KEY_PREFIX string = "compensation_for_"

func CompensationKey(state StateId) string {
	return COMPENSATION_KEY_PREFIX + string(state)
}

func IsCompensationKey(key string) bool {
	return strings.HasPrefix(key, COMPENSATION_KEY_PREFIX)
}

// CompensationMarkers returns the compensation keys present in vars, sorted.
func CompensationMarkers(vars map[string]any) []string {
	var keys []string
	for k, v := range vars {
		if _, ok := v.(string); ok && IsCompensationKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsReservedKey reports keys owned by the executor rather than by workflow authors.
func IsReservedKey(key string) bool {
	return key == LAST_ACTION_RESULT_KEY || key == ERROR_CONTEXT_KEY || strings.HasPrefix(key, "_") || IsCompensationKey(key)
}

func IsQuiet(vars map[string]any) bool {
	quiet, ok := vars[QUIET_KEY].(bool)
	return ok && quiet
}

type ErrorContext struct {
	ErrorMessage   string    `json:"error_message"`
	ErrorState     StateId   `json:"error_state"`
	ErrorTimestamp time.Time `json:"error_timestamp"`
	RetryAttempts  int       `json:"retry_attempts"`
}

func (e ErrorContext) ToMap() map[string]any {
	return map[string]any{
		"error_message":   e.ErrorMessage,
		"error_state":     string(e.ErrorState),
		"error_timestamp": e.ErrorTimestamp.Format(time.RFC3339Nano),
		"retry_attempts":  e.RetryAttempts,
	}
}

// CloneVars copies a context map. Nested maps and slices are copied too so branches never share
// mutable JSON values.
func CloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneVars(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
