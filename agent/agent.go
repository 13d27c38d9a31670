package agent

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mohitkumar/wfhammer/action"
	"github.com/mohitkumar/wfhammer/analytics"
	"github.com/mohitkumar/wfhammer/cache"
	"github.com/mohitkumar/wfhammer/config"
	"github.com/mohitkumar/wfhammer/cost"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/metrics"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/mohitkumar/wfhammer/persistence"
	"github.com/mohitkumar/wfhammer/persistence/file"
	"github.com/mohitkumar/wfhammer/persistence/memory"
	"github.com/mohitkumar/wfhammer/persistence/redis"
	"github.com/mohitkumar/wfhammer/rest"
	"github.com/mohitkumar/wfhammer/service"
	"github.com/mohitkumar/wfhammer/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Agent struct {
	Config                   config.Config
	collaborators            action.Collaborators
	storage                  persistence.WorkflowStorage
	runStorage               persistence.RunStorage
	closers                  []io.Closer
	caches                   *cache.CacheManager
	registry                 *prometheus.Registry
	collector                *metrics.Collector
	analytics                *analytics.LogFileDataCollector
	executor                 *executor.WorkflowExecutor
	workflowExecutionService *service.WorkflowExecutionService
	maintenanceExecutor      *executor.MaintenanceExecutor
	httpServer               *rest.Server
	shutdown                 bool
	shutdowns                chan struct{}
	shutdownLock             sync.Mutex
	wg                       sync.WaitGroup
}

// New builds every component from config. Collaborators supply the prompt invoker and user input
// provider; the rate limiter and prompt timeout are filled from config when unset.
func New(conf config.Config, collaborators action.Collaborators) (*Agent, error) {
	a := &Agent{
		Config:        conf,
		collaborators: collaborators,
		shutdowns:     make(chan struct{}),
	}
	setup := []func() error{
		a.setupStorage,
		a.setupCaches,
		a.setupMetrics,
		a.setupAnalytics,
		a.setupExecutor,
		a.setupWorkflowExecutionService,
		a.setupMaintenanceExecutor,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		redisConf := redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Password:  a.Config.RedisConfig.Password,
			DB:        a.Config.RedisConfig.DB,
			Namespace: a.Config.RedisConfig.Namespace,
		}
		var workflowEncDec util.EncoderDecoder[model.Workflow] = util.NewJsonEncoderDecoder[model.Workflow]()
		if a.Config.EncoderDecoderType == config.YAML_ENCODER_DECODER {
			workflowEncDec = util.NewYamlEncoderDecoder[model.Workflow]()
		}
		workflowDao := redis.NewRedisWorkflowDao(redisConf, workflowEncDec)
		runDao := redis.NewRedisRunDao(redisConf, a.Config.RunRetention, util.NewJsonEncoderDecoder[model.WorkflowRun]())
		a.closers = append(a.closers, workflowDao, runDao)
		if err := workflowDao.Ping(context.Background()); err != nil {
			_ = a.close()
			return err
		}
		a.storage = workflowDao
		a.runStorage = runDao
	case config.STORAGE_TYPE_FILE:
		fileStorage, err := file.NewFileWorkflowStorage(a.Config.WorkflowDir)
		if err != nil {
			return err
		}
		a.storage = fileStorage
		a.runStorage = memory.NewMemoryStorage()
	case config.STORAGE_TYPE_INMEM, "":
		inmem := memory.NewMemoryStorage()
		a.storage = inmem
		a.runStorage = inmem
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	logger.Info("storage configured", zap.String("type", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) setupCaches() error {
	var err error
	a.caches, err = cache.NewCacheManager(cache.Config{
		ConditionCacheSize:  a.Config.ConditionCacheSize,
		TransitionCacheSize: a.Config.TransitionCacheSize,
		WorkflowCacheSize:   a.Config.WorkflowCacheSize,
		TransitionTTL:       a.Config.TransitionCacheTTL,
	})
	return err
}

func (a *Agent) setupMetrics() error {
	a.registry = prometheus.NewRegistry()
	if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	var err error
	a.collector, err = metrics.NewCollector(a.registry)
	return err
}

func (a *Agent) setupAnalytics() error {
	if a.Config.AnalyticsFile == "" {
		return nil
	}
	var err error
	a.analytics, err = analytics.NewLogFileDataCollector(a.Config.AnalyticsFile)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.analytics)
	return nil
}

func (a *Agent) setupExecutor() error {
	collab := a.collaborators
	if collab.PromptLimiter == nil && a.Config.PromptsPerMinute > 0 {
		collab.PromptLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(a.Config.PromptsPerMinute)), a.Config.PromptsPerMinute)
	}
	if collab.PromptTimeout <= 0 {
		collab.PromptTimeout = a.Config.PromptTimeout
	}
	opts := executor.Options{
		MaxTransitions: a.Config.MaxTransitions,
		MaxEvents:      a.Config.MaxHistorySize,
		Collaborators:  collab,
		Storage:        a.storage,
		Collector:      a.collector,
	}
	if a.Config.CostTracking {
		opts.CostTracker = cost.NewInMemoryTracker(cost.DEFAULT_MAX_SESSIONS)
	}
	if a.analytics != nil {
		opts.Observers = append(opts.Observers, a.analytics)
	}
	a.executor = executor.NewWorkflowExecutor(a.caches, opts)
	return nil
}

func (a *Agent) setupWorkflowExecutionService() error {
	a.workflowExecutionService = service.NewWorkflowExecutionService(a.executor, a.storage, a.runStorage,
		cache.NewRunCache(a.Config.RunRetention), a.Config.ExecutorCapacity, &a.wg)
	return nil
}

func (a *Agent) setupMaintenanceExecutor() error {
	a.maintenanceExecutor = executor.NewMaintenanceExecutor(a.executor, time.Duration(a.Config.MaintenanceInterval)*time.Second, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.storage, a.workflowExecutionService, a.executor, a.registry)
	if err != nil {
		return err
	}
	return nil
}

// RunWorkflow loads a workflow and drives one run to a final state in the calling goroutine.
func (a *Agent) RunWorkflow(ctx context.Context, name string, vars map[string]any) (*model.WorkflowRun, error) {
	wf, err := a.storage.Load(name)
	if err != nil {
		return nil, err
	}
	return a.executor.StartWorkflow(ctx, *wf, vars)
}

func (a *Agent) Executor() *executor.WorkflowExecutor {
	return a.executor
}

func (a *Agent) Storage() persistence.WorkflowStorage {
	return a.storage
}

func (a *Agent) Start() error {
	a.workflowExecutionService.Start()
	if err := a.maintenanceExecutor.Start(); err != nil {
		return err
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.workflowExecutionService.Stop,
		a.maintenanceExecutor.Stop,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return a.close()
}

// Close releases storage connections and the analytics file without starting anything.
func (a *Agent) Close() error {
	return a.close()
}

func (a *Agent) close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// Done is closed once Shutdown starts.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}
