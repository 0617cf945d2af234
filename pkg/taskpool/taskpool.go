// Package taskpool implements the fixed worker pool and future state
// machine (C8). The worker loop (wait-while-empty, pop, run, publish) is
// grounded on the teacher's internal/chanworker pump/work split — pump
// buffers incoming work in a list while workers drain it concurrently —
// generalized here to track result/cancellation state per task instead of
// chanworker's fire-and-forget callback. Worker lifecycle join uses
// golang.org/x/sync/errgroup in place of chanworker's manual done-channel
// fan-in, since errgroup is already part of the pack's dependency set and
// gives the same "wait for every worker, surface the first error" shape
// with less bookkeeping.
package taskpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/strada-lang/runtime/pkg/sequence"
	"github.com/strada-lang/runtime/pkg/value"
)

// State is a Future's lifecycle stage.
type State int

const (
	Pending State = iota
	Running
	Completed
	Cancelled
	TimedOut
)

// ErrCancelled and ErrTimedOut are the sentinel errors Await/AwaitTimeout
// surface for a future that never produced a result.
var (
	ErrCancelled = errors.New("future was cancelled")
	ErrTimedOut  = errors.New("future timed out")
)

// Closure is the unit of work submitted to a Pool. A thrown value (per
// pkg/exception's panic/recover convention) is captured as the future's
// error rather than crashing the worker.
type Closure func() (*value.Value, error)

// Future tracks one submitted task's outcome.
type Future struct {
	mu              sync.Mutex
	state           State
	result          *value.Value
	err             error
	done            chan struct{}
	cancelRequested bool
	closure         Closure
}

func newFuture(c Closure) *Future {
	return &Future{state: Pending, done: make(chan struct{}), closure: c}
}

// IsDone reports whether the future has left PENDING/RUNNING.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == Completed || f.state == Cancelled || f.state == TimedOut
}

// State returns the future's current lifecycle stage.
func (f *Future) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Cancel requests cancellation. Cooperative: a task that has already
// started running completes normally; only a still-PENDING task is
// prevented from running.
func (f *Future) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Pending {
		f.cancelRequested = true
	}
}

func (f *Future) publish(state State, result *value.Value, err error) {
	f.mu.Lock()
	if f.state == Completed || f.state == Cancelled || f.state == TimedOut {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.result = result
	f.err = err
	f.mu.Unlock()
	close(f.done)
}

// Await blocks until the future resolves, returning an incref'd result or
// the stored error.
func (f *Future) Await() (*value.Value, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultLocked()
}

// AwaitTimeout is like Await but gives up after d, transitioning the
// future to TIMEOUT if it hasn't already resolved.
func (f *Future) AwaitTimeout(d time.Duration) (*value.Value, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.resultLocked()
	case <-time.After(d):
		f.publish(TimedOut, nil, ErrTimedOut)
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.resultLocked()
	}
}

func (f *Future) resultLocked() (*value.Value, error) {
	switch f.state {
	case Completed:
		if f.err != nil {
			return nil, f.err
		}
		value.Incref(f.result)
		return f.result, nil
	case Cancelled:
		return nil, ErrCancelled
	case TimedOut:
		return nil, ErrTimedOut
	default:
		return nil, nil
	}
}

// backlogFactor bounds the number of futures a pool will hold queued or
// in-flight at once, as a multiple of its worker count: Submit blocks past
// this point instead of growing the queue without limit.
const backlogFactor = 64

// Pool is a fixed-size worker pool draining a FIFO task queue.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Future
	running bool
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
}

// NewPool starts n workers (default 4 when n<=0, per spec.md §4.7).
func NewPool(n int) *Pool {
	if n <= 0 {
		n = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(ctx)
	p := &Pool{
		running: true,
		group:   g,
		ctx:     ctx,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(int64(n * backlogFactor)),
	}
	p.cond = sync.NewCond(&p.mu)

	value.ActivateThreading()
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p.workerLoop()
			return nil
		})
	}
	return p
}

func (p *Pool) workerLoop() {
	for {
		p.mu.Lock()
		for p.running && len(p.queue) == 0 {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		f := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		f.mu.Lock()
		if f.cancelRequested {
			f.mu.Unlock()
			f.publish(Cancelled, nil, ErrCancelled)
			p.sem.Release(1)
			continue
		}
		f.state = Running
		closure := f.closure
		f.mu.Unlock()

		result, err := runClosure(closure)

		f.mu.Lock()
		cancelled := f.cancelRequested
		f.mu.Unlock()
		if cancelled {
			f.publish(Cancelled, nil, ErrCancelled)
		} else if err != nil {
			f.publish(Completed, nil, err)
		} else {
			f.publish(Completed, result, nil)
		}
		p.sem.Release(1)
	}
}

// runClosure invokes c, converting a thrown value (panic, per
// pkg/exception's convention) into an error result instead of crashing
// the worker goroutine.
func runClosure(c Closure) (result *value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.New("task panicked")
			}
		}
	}()
	return c()
}

// Submit enqueues closure and returns its Future. Blocks if the pool
// already has backlogFactor*workers futures queued or in flight.
func (p *Pool) Submit(closure Closure) *Future {
	p.sem.Acquire(p.ctx, 1)
	f := newFuture(closure)
	p.mu.Lock()
	p.queue = append(p.queue, f)
	p.mu.Unlock()
	p.cond.Signal()
	return f
}

// Shutdown stops accepting new predicate-wait cycles, wakes every worker,
// and joins them via the pool's errgroup.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.cond.Broadcast()
	p.cancel()
	p.group.Wait()
}

// All awaits each future in order, returning a fresh sequence of results.
// At the first future whose Await returns an error, All stops and returns
// that error with no sequence; later futures are not awaited.
func All(futures []*Future) (*value.Value, error) {
	out := sequence.New()
	seq := sequence.Payload(out)
	for _, f := range futures {
		result, err := f.Await()
		if err != nil {
			return nil, err
		}
		seq.PushTake(result)
	}
	return out, nil
}

// Race polls is_done across futures with small sleeps (per spec.md §4.7),
// then cancels the rest and awaits the winner.
func Race(futures []*Future) (*value.Value, error) {
	const pollInterval = 200 * time.Microsecond
	for {
		for _, f := range futures {
			if f.IsDone() {
				for _, other := range futures {
					if other != f {
						other.Cancel()
					}
				}
				return f.Await()
			}
		}
		time.Sleep(pollInterval)
	}
}
