// Package dispatch drains the request queue toward the collector, one
// request in flight at a time, with fixed backoff after a failed delivery.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/queue"
	"github.com/nimogit/beacon/internal/request"
)

// State of the dispatcher's delivery machine.
type State int

const (
	// StateIdle means no delivery is in flight and none is blocked.
	StateIdle State = iota
	// StateDispatching means exactly one request has been handed to the
	// transport and its outcome has not been absorbed yet.
	StateDispatching
	// StateBackoff means the last delivery failed and new attempts wait
	// for the backoff deadline.
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

type result struct {
	req *request.Request
	ok  bool
}

// Dispatcher pops the queue head and hands it to the transport. It is driven
// by the heartbeat tick: each Tick absorbs at most one completed delivery,
// clears an expired backoff, and starts at most one new delivery. The single
// state field guarantees at most one outstanding transport call, which in
// turn guarantees the collector observes requests in queue order.
//
// Failure policy: the failed request goes back to the queue head and the
// backoff deadline is set to now + failTimeout. The interval is fixed, not
// exponential; repeated failures do not lengthen it.
type Dispatcher struct {
	queue       *queue.Queue
	transport   Transport
	failTimeout time.Duration

	mu           sync.Mutex
	state        State
	backoffUntil time.Time
	results      chan result

	ctx    context.Context
	cancel context.CancelFunc

	// Now is the dispatcher's clock; replaced in tests.
	Now func() time.Time
}

// New creates a dispatcher draining q through transport.
func New(q *queue.Queue, transport Transport, failTimeout time.Duration) *Dispatcher {
	if failTimeout <= 0 {
		failTimeout = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:       q,
		transport:   transport,
		failTimeout: failTimeout,
		results:     make(chan result, 1),
		ctx:         ctx,
		cancel:      cancel,
		Now:         time.Now,
	}
}

// Tick advances the state machine once. Safe to call from the heartbeat
// loop; the transport call itself runs on its own goroutine and reports back
// through a channel consumed by a later tick, so Tick never blocks on
// network I/O.
func (d *Dispatcher) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case res := <-d.results:
		d.completeLocked(res)
	default:
	}

	now := d.Now()
	if d.state == StateBackoff && !now.Before(d.backoffUntil) {
		d.state = StateIdle
	}

	if d.state != StateIdle {
		return
	}

	head := d.queue.PopHead()
	if head == nil {
		return
	}

	d.state = StateDispatching
	go func() {
		ok := d.transport.Send(d.ctx, head.Values())
		d.results <- result{req: head, ok: ok}
	}()
}

// State returns the current delivery state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// BackoffUntil returns the deadline before which no delivery is attempted.
// Zero when the dispatcher is not backing off.
func (d *Dispatcher) BackoffUntil() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backoffUntil
}

// Close cancels any in-flight transport call and absorbs its outcome before
// returning. The queue pop persisted when the delivery started, so a failed
// or cancelled delivery must be requeued here or the request would vanish
// from the on-disk queue.
func (d *Dispatcher) Close() {
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateDispatching {
		d.completeLocked(<-d.results)
	}
}

func (d *Dispatcher) completeLocked(res result) {
	if res.ok {
		log.Debugf("delivered %s request", res.req.Kind())
		d.state = StateIdle
		return
	}

	d.queue.RequeueHead(res.req)
	d.backoffUntil = d.Now().Add(d.failTimeout)
	d.state = StateBackoff
	log.Warnf("delivery of %s request failed, backing off until %s",
		res.req.Kind(), d.backoffUntil.Format(time.RFC3339))
}
