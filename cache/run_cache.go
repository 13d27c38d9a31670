package cache

import (
	"time"

	"github.com/mohitkumar/wfhammer/model"
	c "github.com/patrickmn/go-cache"
)

// RunCache keeps snapshots of recent runs. Entries expire after the retention period.
type RunCache struct {
	cache     *c.Cache
	retention time.Duration
}

func NewRunCache(retention time.Duration) *RunCache {
	return &RunCache{
		cache:     c.New(retention, 10*time.Minute),
		retention: retention,
	}
}

func (ch *RunCache) SaveRun(run model.WorkflowRun) {
	ch.cache.Set(run.Id, run, c.DefaultExpiration)
}

func (ch *RunCache) GetRun(runId string) (model.WorkflowRun, bool) {
	value, found := ch.cache.Get(runId)
	if !found {
		return model.WorkflowRun{}, false
	}
	return value.(model.WorkflowRun), true
}

func (ch *RunCache) Delete(runId string) {
	ch.cache.Delete(runId)
}

func (ch *RunCache) Len() int {
	return ch.cache.ItemCount()
}
