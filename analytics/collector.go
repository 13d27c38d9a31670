package analytics

import (
	"os"

	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ executor.RunObserver = new(LogFileDataCollector)

// LogFileDataCollector appends one JSON line per run outcome and per action failure.
type LogFileDataCollector struct {
	fileName string
	logFile  *os.File
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(fileEncoder, zapcore.AddSync(logFile), zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logFile:  logFile,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) RecordRunCompleted(run model.WorkflowRun) {
	lc.logger.Info("completed",
		zap.String("name", run.Workflow.Name),
		zap.String("id", run.Id),
		zap.String("status", string(run.Status)),
		zap.String("state", string(run.CurrentState)),
		zap.Int("transitions", len(run.History)-1),
		zap.Duration("duration", run.Duration()))
}

func (lc *LogFileDataCollector) RecordRunFailed(run model.WorkflowRun, reason string) {
	lc.logger.Info("failure",
		zap.String("name", run.Workflow.Name),
		zap.String("id", run.Id),
		zap.String("status", string(run.Status)),
		zap.String("state", string(run.CurrentState)),
		zap.String("reason", reason))
}

func (lc *LogFileDataCollector) RunFinished(run model.WorkflowRun, err error) {
	if err != nil {
		lc.RecordRunFailed(run, err.Error())
		return
	}
	lc.RecordRunCompleted(run)
}

func (lc *LogFileDataCollector) ActionFailed(run model.WorkflowRun, state model.StateId, err error) {
	lc.logger.Info("action_failure",
		zap.String("name", run.Workflow.Name),
		zap.String("id", run.Id),
		zap.String("state", string(state)),
		zap.String("reason", err.Error()))
}

func (lc *LogFileDataCollector) Close() error {
	_ = lc.logger.Sync()
	return lc.logFile.Close()
}
