package async

import (
	"errors"
	"sync"
)

// ErrExecutorClosed is returned when submitting to a closed executor.
var ErrExecutorClosed = errors.New("async: executor closed")

// Executor runs submitted tasks on its own goroutines.
type Executor interface {
	// Submit queues task. It fails with ErrExecutorClosed after Close.
	Submit(task func()) error
	// Close stops accepting tasks and waits for queued ones to finish.
	Close() error
}

const queueSize = 64

type poolExecutor struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func()
	wg     sync.WaitGroup
}

// NewSerialExecutor returns an executor with a single worker, so tasks run
// one at a time in submission order.
func NewSerialExecutor() Executor {
	return NewPoolExecutor(1)
}

// NewPoolExecutor returns an executor with a fixed number of workers.
// Values below one are treated as one.
func NewPoolExecutor(workers int) Executor {
	if workers < 1 {
		workers = 1
	}

	e := &poolExecutor{tasks: make(chan func(), queueSize)}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.work()
	}
	return e
}

func (e *poolExecutor) work() {
	defer e.wg.Done()
	for task := range e.tasks {
		task()
	}
}

func (e *poolExecutor) Submit(task func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}
	e.tasks <- task
	return nil
}

func (e *poolExecutor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
