package model

import (
	"fmt"
	"time"
)

type ConditionType string

const CONDITION_ALWAYS ConditionType = "always"
const CONDITION_NEVER ConditionType = "never"
const CONDITION_ON_SUCCESS ConditionType = "on_success"
const CONDITION_ON_FAILURE ConditionType = "on_failure"
const CONDITION_CUSTOM ConditionType = "custom"

type TransitionCondition struct {
	Type       ConditionType `json:"type" yaml:"type"`
	Expression string        `json:"expression,omitempty" yaml:"expression,omitempty"`
}

func (c TransitionCondition) String() string {
	if c.Type == CONDITION_CUSTOM {
		return fmt.Sprintf("%s(%s)", c.Type, c.Expression)
	}
	return string(c.Type)
}

type Transition struct {
	From      StateId             `json:"from" yaml:"from"`
	To        StateId             `json:"to" yaml:"to"`
	Condition TransitionCondition `json:"condition" yaml:"condition"`
	Action    string              `json:"action,omitempty" yaml:"action,omitempty"`
	Metadata  map[string]string   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type TransitionKey struct {
	From StateId
	To   StateId
}

func NewTransitionKey(from StateId, to StateId) TransitionKey {
	return TransitionKey{From: from, To: to}
}

func (k TransitionKey) String() string {
	return fmt.Sprintf("%s -> %s", k.From, k.To)
}

// TransitionPath is a resolved edge kept in the transition cache.
type TransitionPath struct {
	From       StateId   `json:"from"`
	To         StateId   `json:"to"`
	Conditions []string  `json:"conditions"`
	CachedAt   time.Time `json:"cachedAt"`
}

func NewTransitionPath(from StateId, to StateId, conditions []string) TransitionPath {
	return TransitionPath{
		From:       from,
		To:         to,
		Conditions: conditions,
		CachedAt:   time.Now(),
	}
}

func (p TransitionPath) Key() TransitionKey {
	return NewTransitionKey(p.From, p.To)
}

func (p TransitionPath) IsExpired(ttl time.Duration) bool {
	return time.Since(p.CachedAt) > ttl
}
