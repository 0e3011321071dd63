// Package netutil holds the small pieces of TCP server plumbing shared by
// internal/netio that aren't specific to the wire protocol itself: a
// tomb.v2-supervised, bounded worker pool for handling accepted
// connections.
package netutil

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 256

// WorkerFunc handles one unit of work pulled off the pool. Returning a
// non-nil error kills the owning tomb.
type WorkerFunc func(t *tomb.Tomb, task any) error

// WorkerPool is a fixed-size pool of goroutines draining a shared task
// channel. Tasks are typically net.Conn values handed off by the listener
// accept loop in internal/netio.
type WorkerPool struct {
	size  int
	tasks chan any
	work  WorkerFunc
}

func NewWorkerPool(size int) WorkerPool {
	return WorkerPool{
		size:  size,
		tasks: make(chan any, taskChanSize),
	}
}

// AddTask enqueues a unit of work for the next free worker.
func (p *WorkerPool) AddTask(task any) {
	p.tasks <- task
}

// Setup starts and maintains size workers under t, each running work,
// restarting a replacement whenever one exits (work returned nil, meaning it
// finished a task and is ready for another). Blocks until t is dying.
func (p *WorkerPool) Setup(t *tomb.Tomb, work WorkerFunc) {
	p.work = work
	log.Info().Int("workers", p.size).Msg("starting worker pool")
	active := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if active < p.size {
				t.Go(func() error {
					err := p.worker(t)
					active--
					return err
				})
				active++
			}
		}
	}
}

func (p *WorkerPool) worker(t *tomb.Tomb) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-p.tasks:
		if err := p.work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting on error")
			return err
		}
	}
	return nil
}
