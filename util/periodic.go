package util

import (
	"fmt"
	"sync"
	"time"

	"github.com/mohitkumar/wfhammer/logger"
	"go.uber.org/zap"
)

const DEFAULT_PERIOD = 30 * time.Second

// Periodic calls fn on a fixed interval until stopped. A panicking call is logged and the next
// tick still fires.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func()
	wg       *sync.WaitGroup
	stop     chan struct{}
	once     sync.Once
}

func NewPeriodic(name string, interval time.Duration, fn func(), wg *sync.WaitGroup) *Periodic {
	if interval <= 0 {
		interval = DEFAULT_PERIOD
	}
	return &Periodic{
		name:     name,
		interval: interval,
		fn:       fn,
		wg:       wg,
		stop:     make(chan struct{}),
	}
}

func (p *Periodic) Interval() time.Duration {
	return p.interval
}

func (p *Periodic) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.tick(); err != nil {
					logger.Error("periodic task failed", zap.String("task", p.name), zap.Error(err))
				}
			case <-p.stop:
				logger.Info("stopping periodic task", zap.String("task", p.name))
				return
			}
		}
	}()
	logger.Info("periodic task started", zap.String("task", p.name), zap.Duration("interval", p.interval))
}

func (p *Periodic) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	p.fn()
	return nil
}

func (p *Periodic) Stop() {
	p.once.Do(func() {
		close(p.stop)
	})
}
