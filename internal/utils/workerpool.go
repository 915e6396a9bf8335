// Package utils holds small pieces of machinery shared by the
// collaborator packages. WorkerPool is lifted from the teacher's
// internal/worker.go, which internal/net/server.go already imported as
// "fenrir/internal/utils" — this package is that import target, plus the
// AddTask method the teacher's server.go calls but the original
// WorkerPool never defined.
package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// TaskChanSize bounds the backlog of accepted connections awaiting a
// free worker, matching the teacher's TASK_CHAN_SIZE.
const TaskChanSize = 100

// WorkerFunction processes one task; t.Dying() signals shutdown.
type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool is a fixed-size goroutine pool draining a task channel under
// a tomb.Tomb, the teacher's exact shape in internal/worker.go.
type WorkerPool struct {
	n     int
	tasks chan any
	work  WorkerFunction
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		tasks: make(chan any, TaskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task (typically a net.Conn) for the next free
// worker. The teacher's internal/net/server.go calls this directly; the
// original internal/worker.go never defined it, leaving callers to reach
// into the unexported tasks channel.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

// Setup keeps a full pool of workers running until t starts dying.
func (pool *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunction) {
	pool.work = work
	log.Info().Int("activeWorkers", pool.n).Msg("adding workers")
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

// worker waits on tasks and actions them one at a time.
func (pool *WorkerPool) worker(t *tomb.Tomb, work WorkerFunction) error {
	log.Info().Msg("worker starting")
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
