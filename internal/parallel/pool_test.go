package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
	if pool.Ordered() {
		t.Error("NewWorkerPool should steal")
	}
}

func TestWorkerPool_CreateZeroWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewOrderedWorkerPool(n)
		expected := runtime.GOMAXPROCS(0)
		if pool.Workers() != expected {
			t.Errorf("Workers(%d) = %d, want %d (GOMAXPROCS)", n, pool.Workers(), expected)
		}
		if !pool.Ordered() {
			t.Error("NewOrderedWorkerPool should not steal")
		}
		pool.Close()
	}
}

// =============================================================================
// ExecuteAll Tests
// =============================================================================

func TestWorkerPool_ExecuteAll(t *testing.T) {
	for _, pool := range []*WorkerPool{NewWorkerPool(4), NewOrderedWorkerPool(4)} {
		var counter atomic.Int64
		numTasks := 100

		work := make([]func(), numTasks)
		for i := range work {
			work[i] = func() {
				counter.Add(1)
			}
		}

		pool.ExecuteAll(work)
		pool.Close()

		if counter.Load() != int64(numTasks) {
			t.Errorf("ordered=%v: counter = %d, want %d", pool.Ordered(), counter.Load(), numTasks)
		}
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// Should not panic or block
	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

// TestWorkerPool_OrderedDependencies runs items that each wait for the item
// before them, the way ordered reservations do. Far more items than workers
// and queue slots must still complete.
func TestWorkerPool_OrderedDependencies(t *testing.T) {
	pool := NewOrderedWorkerPool(3)
	defer pool.Close()

	const n = 200
	var (
		mu    sync.Mutex
		cond  = sync.NewCond(&mu)
		next  int
		order []int
	)
	work := make([]func(), n)
	for i := range work {
		work[i] = func() {
			mu.Lock()
			defer mu.Unlock()
			for next != i {
				cond.Wait()
			}
			order = append(order, i)
			next++
			cond.Broadcast()
		}
	}

	done := make(chan struct{})
	go func() {
		pool.ExecuteAll(work)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ordered items deadlocked")
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d", i, v)
		}
	}
	if len(order) != n {
		t.Errorf("completed %d items, want %d", len(order), n)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)

	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after close")
	}
}

func TestWorkerPool_OperationsAfterClose(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()

	var executed atomic.Bool
	pool.ExecuteAll([]func(){
		func() { executed.Store(true) },
	})

	// Give time for potential incorrect execution
	time.Sleep(50 * time.Millisecond)

	if executed.Load() {
		t.Error("Work was executed on closed pool")
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	numGoroutines := 10
	numTasksPerGoroutine := 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			work := make([]func(), numTasksPerGoroutine)
			for i := range work {
				work[i] = func() { counter.Add(1) }
			}
			pool.ExecuteAll(work)
		}()
	}
	wg.Wait()

	want := int64(numGoroutines * numTasksPerGoroutine)
	if counter.Load() != want {
		t.Errorf("counter = %d, want %d", counter.Load(), want)
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for i := range 5 {
		newPool := NewWorkerPool
		if i%2 == 1 {
			newPool = NewOrderedWorkerPool
		}
		pool := newPool(4)
		work := make([]func(), 100)
		for j := range work {
			work[j] = func() {}
		}
		pool.ExecuteAll(work)
		pool.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	final := runtime.NumGoroutine()

	// Allow for some variance (test framework goroutines, etc.)
	if final > baseline+2 {
		t.Errorf("goroutine count: baseline=%d, final=%d (leak detected)", baseline, final)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_ExecuteAll(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	work := make([]func(), 64)
	for i := range work {
		work[i] = func() {}
	}

	b.ResetTimer()
	for range b.N {
		pool.ExecuteAll(work)
	}
}
