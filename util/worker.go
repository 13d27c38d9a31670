package util

import (
	"fmt"
	"sync"

	"github.com/mohitkumar/wfhammer/logger"
	"go.uber.org/zap"
)

// Worker drains a bounded queue on a single goroutine and hands tasks to the handler in order.
type Worker[T any] struct {
	name    string
	wg      *sync.WaitGroup
	handler func(T) error
	tasks   chan T
	stop    chan struct{}
	once    sync.Once
}

func NewWorker[T any](name string, wg *sync.WaitGroup, handler func(T) error, capacity int) *Worker[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Worker[T]{
		name:    name,
		wg:      wg,
		handler: handler,
		tasks:   make(chan T, capacity),
		stop:    make(chan struct{}),
	}
}

func (w *Worker[T]) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case task := <-w.tasks:
				if err := w.handle(task); err != nil {
					logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Error(err))
				}
			case <-w.stop:
				logger.Info("stopping worker", zap.String("worker", w.name), zap.Int("dropped", len(w.tasks)))
				return
			}
		}
	}()
}

func (w *Worker[T]) handle(task T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return w.handler(task)
}

// Offer queues a task without blocking. It returns false when the queue is full or the worker
// has been stopped.
func (w *Worker[T]) Offer(task T) bool {
	select {
	case <-w.stop:
		return false
	default:
	}
	select {
	case w.tasks <- task:
		return true
	default:
		return false
	}
}

func (w *Worker[T]) Pending() int {
	return len(w.tasks)
}

func (w *Worker[T]) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
}
