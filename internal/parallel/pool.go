// Package parallel runs workgroups of a draw on a fixed set of goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines executing workgroups.
//
// The pool distributes work items across multiple workers, each with their own
// queue. In the default mode workers steal from other queues when their own
// queue is empty, which balances load when workgroups differ in cost.
//
// An ordered pool never steals. Items are queued round-robin in submission
// order and every worker runs its queue in FIFO order, so the lowest
// unfinished item is always running or at the head of an idle worker's queue.
// Items that block until every lower item reached some point, like ordered
// streamout reservations, therefore cannot deadlock.
//
// Thread safety: WorkerPool is safe for concurrent use, but ordered guarantees
// hold only within one ExecuteAll call at a time.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	workQueues []chan func()

	// stealing lets idle workers pull from other queues.
	stealing bool

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewWorkerPool creates a work-stealing pool with the specified number of
// workers. If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	return newPool(workers, true)
}

// NewOrderedWorkerPool creates a pool that runs each worker's items in
// submission order without stealing.
func NewOrderedWorkerPool(workers int) *WorkerPool {
	return newPool(workers, false)
}

func newPool(workers int, stealing bool) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Buffer size: 2-4x workers helps hide latency
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		stealing:   stealing,
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			// No work available anywhere, block on own queue
			select {
			case <-p.done:
				p.drainQueue(myQueue)
				return
			case work := <-myQueue:
				if work != nil {
					work()
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available or the pool is ordered.
func (p *WorkerPool) steal(myID int) func() {
	if !p.stealing {
		return nil
	}
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work across workers and waits for all to complete.
// Item i goes to worker i % Workers().
// If the pool is closed, this is a no-op.
func (p *WorkerPool) ExecuteAll(work []func()) {
	if len(work) == 0 || !p.running.Load() {
		return
	}

	var completionWG sync.WaitGroup
	completionWG.Add(len(work))

	for i, fn := range work {
		workerID := i % p.workers

		wrappedWork := func() {
			defer completionWG.Done()
			fn()
		}

		select {
		case p.workQueues[workerID] <- wrappedWork:
		case <-p.done:
			// Pool is closing; the item never runs.
			completionWG.Done()
		}
	}

	completionWG.Wait()
}

// Close gracefully shuts down the pool.
// It stops accepting new work, waits for all queued work to complete,
// and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Ordered reports whether the pool runs items without stealing.
func (p *WorkerPool) Ordered() bool {
	return !p.stealing
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
