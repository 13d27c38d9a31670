package executor

import (
	"runtime"
	"sync"
	"time"

	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/util"
	"go.uber.org/zap"
)

type Executor interface {
	Start() error
	Stop() error
	Name() string
}

var _ Executor = new(MaintenanceExecutor)

// MaintenanceExecutor periodically purges expired transition paths and samples process memory.
type MaintenanceExecutor struct {
	executor *WorkflowExecutor
	periodic *util.Periodic
}

func NewMaintenanceExecutor(executor *WorkflowExecutor, interval time.Duration, wg *sync.WaitGroup) *MaintenanceExecutor {
	ex := &MaintenanceExecutor{executor: executor}
	ex.periodic = util.NewPeriodic("maintenance", interval, ex.RunOnce, wg)
	return ex
}

func (ex *MaintenanceExecutor) Name() string {
	return "maintenance-executor"
}

func (ex *MaintenanceExecutor) RunOnce() {
	purged := ex.executor.caches.PurgeExpiredTransitions()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	ex.executor.metrics.Trends.Add(metrics.TREND_MEMORY, float64(mem.HeapAlloc))
	if ex.executor.collector != nil {
		for name, stats := range ex.executor.caches.Stats() {
			ex.executor.collector.CacheEntries(name, stats.Size)
		}
	}
	if purged > 0 {
		logger.Debug("purged expired transition paths", zap.Int("count", purged))
	}
}

func (ex *MaintenanceExecutor) Start() error {
	ex.periodic.Start()
	return nil
}

func (ex *MaintenanceExecutor) Stop() error {
	ex.periodic.Stop()
	return nil
}
