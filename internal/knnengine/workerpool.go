package knnengine

import "sync"

// workerPool is the long-lived worker pool of spec.md §4.2: workers are
// goroutines that block on an empty task channel and run closures handed to
// them until the pool is shut down. Using a channel in place of a hand-rolled
// mutex/condvar pair is the idiomatic Go realization the design notes call
// out explicitly (§9 "Worker pool"); the happens-before relationship between
// a block's tasks and its copy-out step is still provided, here by the
// per-block sync.WaitGroup in runBlock rather than by the pool itself — the
// pool only owns worker lifetime across blocks, not per-block completion.
type workerPool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
}

func newWorkerPool(workers int) *workerPool {
	p := &workerPool{
		workers: workers,
		tasks:   make(chan func(), workers*2),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

// submit enqueues a task. Workers dequeue in FIFO order and run disjoint
// row-ranges of the shared scratch buffers, so no additional locking is
// needed around the scratch contents themselves.
func (p *workerPool) submit(fn func()) {
	p.tasks <- fn
}

// shutdown closes the task channel (the shutdown signal every worker
// observes on its next wakeup) and joins all workers.
func (p *workerPool) shutdown() {
	close(p.tasks)
	p.wg.Wait()
}
