// Package lane serializes event processing per item identifier. Each
// identifier gets an ordered work queue (a "lane") with its own worker
// goroutine; lanes run concurrently relative to each other, so one slow
// item never stalls another, and no global lock serializes unrelated work.
package lane

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsync/internal/domain/catalog"
	"github.com/kailas-cloud/shopsync/internal/metrics"
)

// ErrClosed is returned by Submit after the dispatcher has shut down.
var ErrClosed = errors.New("lane dispatcher closed")

// Defaults for lane sizing.
const (
	DefaultQueueSize = 64
	DefaultIdleAfter = 5 * time.Minute
)

// Handler processes one event. It must handle its own retries; a returned
// error is logged but does not stop the lane.
type Handler func(ctx context.Context, ev catalog.ChangeEvent) error

// Dispatcher routes events to per-identifier lanes. Lanes are created
// lazily on first event and retired after sitting idle, so the lane map
// does not grow with every identifier ever seen.
type Dispatcher struct {
	handler   Handler
	queueSize int
	idleAfter time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	lanes  map[string]*laneState
	closed bool

	quit   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type laneState struct {
	ch chan catalog.ChangeEvent
	// pending counts queued plus in-flight events; guarded by Dispatcher.mu.
	// A lane retires only at pending == 0.
	pending int
}

// Config holds dispatcher tuning.
type Config struct {
	QueueSize int
	IdleAfter time.Duration
}

// NewDispatcher creates a dispatcher invoking handler for every event.
func NewDispatcher(handler Handler, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultIdleAfter
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:   handler,
		queueSize: cfg.QueueSize,
		idleAfter: cfg.IdleAfter,
		logger:    logger,
		lanes:     make(map[string]*laneState),
		quit:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit queues an event on its item's lane, creating the lane if needed.
// Events for one identifier are processed strictly in submission order.
// Submit blocks when the lane's queue is full (backpressure).
func (d *Dispatcher) Submit(ev catalog.ChangeEvent) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}

	ls, ok := d.lanes[ev.ItemID]
	if !ok {
		ls = &laneState{ch: make(chan catalog.ChangeEvent, d.queueSize)}
		d.lanes[ev.ItemID] = ls
		metrics.LanesActive.Inc()
		d.wg.Add(1)
		go d.run(ev.ItemID, ls)
	}
	ls.pending++
	d.mu.Unlock()

	ls.ch <- ev
	return nil
}

// Lanes returns the number of live lanes.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Close stops accepting events, drains every lane, and waits for all
// workers to finish. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	d.wg.Wait()
	d.cancel()

	d.mu.Lock()
	for id := range d.lanes {
		delete(d.lanes, id)
	}
	d.mu.Unlock()
	metrics.LanesActive.Set(0)
}

// run is the lane worker: strictly sequential within the lane.
func (d *Dispatcher) run(itemID string, ls *laneState) {
	defer d.wg.Done()

	idle := time.NewTimer(d.idleAfter)
	defer idle.Stop()

	for {
		select {
		case ev := <-ls.ch:
			d.handle(itemID, ls, ev)
			resetTimer(idle, d.idleAfter)

		case <-d.quit:
			d.drain(itemID, ls)
			return

		case <-idle.C:
			if d.retire(itemID, ls) {
				return
			}
			idle.Reset(d.idleAfter)
		}
	}
}

// drain processes every event already accepted for this lane, then exits.
// Accepted means Submit passed the closed check, so pending accounts for
// events still in flight toward the queue.
func (d *Dispatcher) drain(itemID string, ls *laneState) {
	for {
		d.mu.Lock()
		n := ls.pending
		d.mu.Unlock()
		if n == 0 {
			return
		}
		d.handle(itemID, ls, <-ls.ch)
	}
}

func (d *Dispatcher) handle(itemID string, ls *laneState, ev catalog.ChangeEvent) {
	defer func() {
		d.mu.Lock()
		ls.pending--
		d.mu.Unlock()
	}()

	if err := d.handler(d.ctx, ev); err != nil {
		d.logger.Error("lane handler failed",
			zap.String("item_id", itemID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

// retire removes an idle lane. Returns false if an event raced in, in
// which case the worker keeps running.
func (d *Dispatcher) retire(itemID string, ls *laneState) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || ls.pending > 0 {
		return false
	}
	delete(d.lanes, itemID)
	metrics.LanesActive.Dec()
	return true
}

func resetTimer(t *time.Timer, dur time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(dur)
}
