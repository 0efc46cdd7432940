package socket

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/event"
)

// Completer accepts completed records for delivery to a handler.
//
// Post returns false when the record was not taken (the completer is
// closed); the caller keeps ownership in that case.
type Completer interface {
	Post(rec *event.Record) bool
}

// CompletionFunc handles one completed record.
type CompletionFunc func(rec *event.Record)

// Dispatcher delivers completed records to a fixed pool of worker goroutines.
//
// Posting never blocks: records are appended to an unbounded FIFO and picked up
// by the next idle worker. A panic inside the handler is recovered and logged so
// a single bad completion cannot take a worker down.
type Dispatcher struct {
	handler CompletionFunc
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue
	closed  bool
	started bool

	wg     sync.WaitGroup
	posted atomic.Uint64
	done   atomic.Uint64
}

// NewDispatcher creates a dispatcher with the given number of workers.
// A non-positive count selects runtime.NumCPU().
func NewDispatcher(workers int, handler CompletionFunc) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	d := &Dispatcher{
		handler: handler,
		workers: workers,
		pending: queue.New(),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the workers. Calling Start more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
}

// Post queues rec for a worker. It returns false once the dispatcher is closed.
func (d *Dispatcher) Post(rec *event.Record) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.pending.Add(rec)
	d.posted.Add(1)
	d.mu.Unlock()

	d.cond.Signal()
	return true
}

// Close stops accepting new records, lets the workers drain what is already
// queued and waits for them to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	d.cond.Broadcast()
	d.wg.Wait()

	// Never started: nobody will consume what is queued.
	if !started {
		d.mu.Lock()
		var orphans []*event.Record
		for d.pending.Length() > 0 {
			orphans = append(orphans, d.pending.Remove().(*event.Record))
		}
		d.mu.Unlock()

		for _, rec := range orphans {
			discard(rec)
		}
	}
}

// discard hands an undeliverable record back to its owner, or closes and
// releases it when it has none.
func discard(rec *event.Record) {
	if h, ok := rec.UserToken.(CompletionHandler); ok {
		h.HandleCompletion(rec)
		return
	}
	if rec.Conn != nil {
		_ = rec.Conn.Close()
	}
	rec.Release()
}

// Pending returns the number of queued records not yet picked up.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Length()
}

// Processed returns the number of records handed to the handler so far.
func (d *Dispatcher) Processed() uint64 {
	return d.done.Load()
}

// Workers returns the size of the worker pool.
func (d *Dispatcher) Workers() int {
	return d.workers
}

func (d *Dispatcher) run(id int) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for d.pending.Length() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.pending.Length() == 0 {
			d.mu.Unlock()
			return
		}
		rec := d.pending.Remove().(*event.Record)
		d.mu.Unlock()

		d.dispatch(id, rec)
	}
}

func (d *Dispatcher) dispatch(id int, rec *event.Record) {
	defer d.done.Add(1)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Completion worker %d: panic handling %s: %v", id, rec.Op, r)
		}
	}()

	d.handler(rec)
}
