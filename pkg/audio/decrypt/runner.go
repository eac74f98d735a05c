// ABOUTME: Serialized task runner backing the decode stage
// ABOUTME: Executes posted funcs one at a time on a single goroutine
package decrypt

import "sync"

// taskRunner executes posted funcs strictly in order on one goroutine.
// It is the decoder's serialized task context: every public operation
// and every marshaled decryptor callback runs through it.
type taskRunner struct {
	tasks    chan func()
	quit     chan struct{}
	quitOnce sync.Once
}

func newTaskRunner() *taskRunner {
	r := &taskRunner{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *taskRunner) loop() {
	for {
		// Prefer quit over further tasks once shutdown has begun.
		select {
		case <-r.quit:
			r.drain()
			return
		default:
		}

		select {
		case <-r.quit:
			r.drain()
			return
		case f := <-r.tasks:
			f()
		}
	}
}

// drain runs tasks that were accepted before shutdown. An accepted
// task is never silently lost; it runs, and it is the task's job to
// notice the stopped state.
func (r *taskRunner) drain() {
	for {
		select {
		case f := <-r.tasks:
			f()
		default:
			return
		}
	}
}

// TryPost queues f for execution. It returns false if the runner has
// shut down, in which case f will never run.
func (r *taskRunner) TryPost(f func()) bool {
	select {
	case <-r.quit:
		return false
	default:
	}

	select {
	case r.tasks <- f:
		return true
	case <-r.quit:
		return false
	}
}

// Post queues f, dropping it after shutdown. Callers that owe a
// completion use TryPost and handle rejection themselves.
func (r *taskRunner) Post(f func()) {
	r.TryPost(f)
}

// Shutdown stops the loop. Tasks already accepted still run before the
// loop exits; later posts are rejected. Safe to call from within a
// task.
func (r *taskRunner) Shutdown() {
	r.quitOnce.Do(func() { close(r.quit) })
}
