package cache

import (
	"time"

	"github.com/dop251/goja"
	"github.com/mohitkumar/wfhammer/model"
)

const DEFAULT_CONDITION_CACHE_SIZE = 500
const DEFAULT_TRANSITION_CACHE_SIZE = 1000
const DEFAULT_WORKFLOW_CACHE_SIZE = 100
const DEFAULT_TRANSITION_TTL = 5 * time.Minute

type Config struct {
	ConditionCacheSize  int
	TransitionCacheSize int
	WorkflowCacheSize   int
	TransitionTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConditionCacheSize:  DEFAULT_CONDITION_CACHE_SIZE,
		TransitionCacheSize: DEFAULT_TRANSITION_CACHE_SIZE,
		WorkflowCacheSize:   DEFAULT_WORKFLOW_CACHE_SIZE,
		TransitionTTL:       DEFAULT_TRANSITION_TTL,
	}
}

// CacheManager owns the caches shared by every run of an executor.
type CacheManager struct {
	conditions    *LRUCache
	transitions   *LRUCache
	workflows     *LRUCache
	transitionTTL time.Duration
}

func NewCacheManager(conf Config) (*CacheManager, error) {
	conditions, err := NewLRUCache("conditions", conf.ConditionCacheSize)
	if err != nil {
		return nil, err
	}
	transitions, err := NewLRUCache("transitions", conf.TransitionCacheSize)
	if err != nil {
		return nil, err
	}
	workflows, err := NewLRUCache("workflows", conf.WorkflowCacheSize)
	if err != nil {
		return nil, err
	}
	ttl := conf.TransitionTTL
	if ttl <= 0 {
		ttl = DEFAULT_TRANSITION_TTL
	}
	return &CacheManager{
		conditions:    conditions,
		transitions:   transitions,
		workflows:     workflows,
		transitionTTL: ttl,
	}, nil
}

func (m *CacheManager) GetCondition(expression string) (*goja.Program, bool) {
	value, ok := m.conditions.Get(expression)
	if !ok {
		return nil, false
	}
	return value.(*goja.Program), true
}

func (m *CacheManager) PutCondition(expression string, program *goja.Program) {
	m.conditions.Put(expression, program)
}

func (m *CacheManager) IsConditionCached(expression string) bool {
	return m.conditions.Contains(expression)
}

func (m *CacheManager) ConditionStats() (int, int) {
	stats := m.conditions.Stats()
	return stats.Size, stats.Capacity
}

// GetTransitionPath treats expired entries as misses and drops them.
func (m *CacheManager) GetTransitionPath(key model.TransitionKey) (model.TransitionPath, bool) {
	value, ok := m.transitions.Get(key)
	if !ok {
		return model.TransitionPath{}, false
	}
	path := value.(model.TransitionPath)
	if path.IsExpired(m.transitionTTL) {
		m.transitions.Remove(key)
		return model.TransitionPath{}, false
	}
	return path, true
}

func (m *CacheManager) PutTransitionPath(path model.TransitionPath) {
	m.transitions.Put(path.Key(), path)
}

func (m *CacheManager) PurgeExpiredTransitions() int {
	purged := 0
	for _, key := range m.transitions.Keys() {
		value, ok := m.transitions.lru.Peek(key)
		if !ok {
			continue
		}
		if value.(model.TransitionPath).IsExpired(m.transitionTTL) {
			m.transitions.Remove(key)
			purged++
		}
	}
	return purged
}

func (m *CacheManager) GetWorkflow(key string) (any, bool) {
	return m.workflows.Get(key)
}

func (m *CacheManager) PutWorkflow(key string, value any) {
	m.workflows.Put(key, value)
}

func (m *CacheManager) Stats() map[string]CacheStats {
	return map[string]CacheStats{
		"conditions":  m.conditions.Stats(),
		"transitions": m.transitions.Stats(),
		"workflows":   m.workflows.Stats(),
	}
}

func (m *CacheManager) ClearAll() {
	m.conditions.Clear()
	m.transitions.Clear()
	m.workflows.Clear()
}
