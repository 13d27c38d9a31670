package action

import (
	"context"
	"fmt"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

var _ Action = new(LogAction)

type LogAction struct {
	baseAction
	Level   LogLevel
	Message string
}

func NewLogAction(level LogLevel, message string, substitutor util.Substitutor) *LogAction {
	if level == "" {
		level = LOG_LEVEL_INFO
	}
	return &LogAction{
		baseAction: newBaseAction(ACTION_TYPE_LOG, substitutor),
		Level:      level,
		Message:    message,
	}
}

func Info(message string) *LogAction {
	return NewLogAction(LOG_LEVEL_INFO, message, nil)
}

func Warning(message string) *LogAction {
	return NewLogAction(LOG_LEVEL_WARNING, message, nil)
}

func Error(message string) *LogAction {
	return NewLogAction(LOG_LEVEL_ERROR, message, nil)
}

func (a *LogAction) Description() string {
	return fmt.Sprintf("Log message: %s", a.Message)
}

func (a *LogAction) Execute(ctx context.Context, vars map[string]any) (any, error) {
	message := a.substitute(a.Message, vars)
	switch a.Level {
	case LOG_LEVEL_ERROR:
		logger.Error(message, zap.String("source", "workflow"))
	case LOG_LEVEL_WARNING:
		logger.Warn(message, zap.String("source", "workflow"))
	default:
		if model.IsQuiet(vars) {
			logger.Debug(message, zap.String("source", "workflow"))
		} else {
			logger.Info(message, zap.String("source", "workflow"))
		}
	}
	markSuccess(vars)
	return message, nil
}
