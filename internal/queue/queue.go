// Package queue implements the ordered, durable sequence of requests
// awaiting delivery to the collector.
package queue

import (
	"sync"
	"time"

	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/internal/storage"
)

// Queue is a FIFO of pending requests with one exception: a request whose
// delivery failed is reinserted at the head, so it is retried before any
// younger data. Every mutation persists the full queue through the store,
// keeping the on-disk and in-memory queues convergent.
type Queue struct {
	mu      sync.Mutex
	store   *storage.Store
	pending []*request.Request

	appKey   string
	deviceID string
	geo      request.Geo

	// Now is the clock used to stamp requests; replaced in tests.
	Now func() time.Time
}

// New creates a queue bound to the store, replaying any persisted requests
// from a previous run.
func New(store *storage.Store, appKey string) *Queue {
	q := &Queue{
		store:  store,
		appKey: appKey,
		Now:    time.Now,
	}

	if !store.Get(storage.KeyQueue, &q.pending) {
		q.pending = nil
	}
	if n := len(q.pending); n > 0 {
		log.Infof("replaying %d pending request(s) from previous run", n)
	}

	return q
}

// SetDeviceID sets the identifier stamped onto enqueued requests.
func (q *Queue) SetDeviceID(id string) {
	q.mu.Lock()
	q.deviceID = id
	q.mu.Unlock()
}

// SetGeo sets the optional location metadata copied into every request.
func (q *Queue) SetGeo(geo request.Geo) {
	q.mu.Lock()
	q.geo = geo
	q.mu.Unlock()
}

// Enqueue enriches the request and appends it to the tail. A missing app key
// or device identifier makes the request undeliverable, so it is dropped and
// logged rather than queued.
func (q *Queue) Enqueue(r *request.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.appKey == "" {
		log.Error("dropping request: app key is not configured")
		return
	}
	if q.deviceID == "" {
		log.Error("dropping request: device identifier is not set")
		return
	}

	r.Enrich(q.appKey, q.deviceID, q.Now(), q.geo)
	q.pending = append(q.pending, r)
	q.persistLocked()

	log.Debugf("queued %s request, %d pending", r.Kind(), len(q.pending))
}

// PopHead removes and returns the oldest request, or nil when empty.
func (q *Queue) PopHead() *request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}

	head := q.pending[0]
	q.pending = q.pending[1:]
	q.persistLocked()

	return head
}

// RequeueHead reinserts a request at the front of the queue. Used exclusively
// on delivery failure so the retried request keeps its place ahead of newer
// data.
func (q *Queue) RequeueHead(r *request.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append([]*request.Request{r}, q.pending...)
	q.persistLocked()
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Snapshot returns a copy of the pending requests, oldest first.
func (q *Queue) Snapshot() []*request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*request.Request, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *Queue) persistLocked() {
	q.store.Set(storage.KeyQueue, q.pending)
}
