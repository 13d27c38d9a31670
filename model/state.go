package model

import (
	"strings"
)

type EmptyStateIdError struct{}

func (e EmptyStateIdError) Error() string {
	return "state id cannot be empty or whitespace only"
}

type StateId string

func NewStateId(id string) (StateId, error) {
	if strings.TrimSpace(id) == "" {
		return "", EmptyStateIdError{}
	}
	return StateId(id), nil
}

func (s StateId) String() string {
	return string(s)
}

type StateType string

const STATE_TYPE_NORMAL StateType = "normal"
const STATE_TYPE_FORK StateType = "fork"
const STATE_TYPE_JOIN StateType = "join"
const STATE_TYPE_CHOICE StateType = "choice"

func ToStateType(st string) StateType {
	switch {
	case strings.EqualFold(st, string(STATE_TYPE_FORK)):
		return STATE_TYPE_FORK
	case strings.EqualFold(st, string(STATE_TYPE_JOIN)):
		return STATE_TYPE_JOIN
	case strings.EqualFold(st, string(STATE_TYPE_CHOICE)):
		return STATE_TYPE_CHOICE
	}
	return STATE_TYPE_NORMAL
}

// COMPENSATION_STATE_METADATA names the state metadata entry that registers a rollback target
// when the state is entered.
const COMPENSATION_STATE_METADATA string = "compensation_state"

type State struct {
	Id             StateId           `json:"id" yaml:"id"`
	Description    string            `json:"description" yaml:"description"`
	Type           StateType         `json:"type,omitempty" yaml:"type,omitempty"`
	IsTerminal     bool              `json:"isTerminal" yaml:"isTerminal"`
	AllowsParallel bool              `json:"allowsParallel" yaml:"allowsParallel"`
	Metadata       map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (s State) StateType() StateType {
	return ToStateType(string(s.Type))
}
