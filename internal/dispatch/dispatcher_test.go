package dispatch

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimogit/beacon/internal/queue"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/internal/storage"
)

// fakeTransport answers scripted results and records every delivery it sees.
type fakeTransport struct {
	mu      sync.Mutex
	script  []bool
	calls   []url.Values
	release chan struct{} // when non-nil, Send blocks until closed
}

func (f *fakeTransport) Send(ctx context.Context, values url.Values) bool {
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, values)
	if len(f.script) == 0 {
		return true
	}
	ok := f.script[0]
	f.script = f.script[1:]
	return ok
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestDispatcher(t *testing.T, ft *fakeTransport) (*Dispatcher, *queue.Queue) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "beacon.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	q := queue.New(store, "app-key")
	q.SetDeviceID("dev-1")

	d := New(q, ft, time.Minute)
	t.Cleanup(d.Close)
	return d, q
}

// waitDelivered blocks until the in-flight transport call has reported back,
// so the next Tick deterministically absorbs its outcome.
func waitDelivered(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(d.results) == 1
	}, time.Second, time.Millisecond)
}

func TestSuccessfulDeliveryDrainsQueue(t *testing.T) {
	ft := &fakeTransport{}
	d, q := newTestDispatcher(t, ft)

	q.Enqueue(&request.Request{BeginSession: 1})
	q.Enqueue(&request.Request{EndSession: 1})

	d.Tick()
	assert.Equal(t, StateDispatching, d.State())
	assert.Equal(t, 1, q.Len())

	waitDelivered(t, d)
	d.Tick() // absorb success, dispatch second request
	assert.Equal(t, StateDispatching, d.State())
	assert.Equal(t, 0, q.Len())

	waitDelivered(t, d)
	d.Tick()
	assert.Equal(t, StateIdle, d.State())

	require.Equal(t, 2, ft.callCount())
	assert.Equal(t, "1", ft.calls[0].Get("begin_session"))
	assert.Equal(t, "1", ft.calls[1].Get("end_session"))
}

func TestFailureRequeuesAtHeadAndBacksOff(t *testing.T) {
	ft := &fakeTransport{script: []bool{false, true, true}}
	d, q := newTestDispatcher(t, ft)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	d.Now = func() time.Time { return now }

	q.Enqueue(&request.Request{BeginSession: 1})
	q.Enqueue(&request.Request{EndSession: 1})

	d.Tick()
	waitDelivered(t, d)
	d.Tick() // absorb failure

	assert.Equal(t, StateBackoff, d.State())
	assert.Equal(t, now.Add(time.Minute), d.BackoffUntil())
	require.Equal(t, 2, q.Len(), "failed request must be requeued")
	assert.Equal(t, "begin_session", q.Snapshot()[0].Kind(), "failed request must sit at the head")

	// Still inside the backoff window: nothing is dispatched.
	now = now.Add(30 * time.Second)
	d.Tick()
	assert.Equal(t, StateBackoff, d.State())
	assert.Equal(t, 1, ft.callCount())

	// Past the deadline: the same request is retried before newer data.
	now = now.Add(31 * time.Second)
	d.Tick()
	assert.Equal(t, StateDispatching, d.State())

	waitDelivered(t, d)
	d.Tick()

	require.GreaterOrEqual(t, ft.callCount(), 2)
	assert.Equal(t, "1", ft.calls[1].Get("begin_session"), "retry must repeat the failed request")
}

func TestSingleInFlightDelivery(t *testing.T) {
	ft := &fakeTransport{release: make(chan struct{})}
	d, q := newTestDispatcher(t, ft)

	q.Enqueue(&request.Request{BeginSession: 1})
	q.Enqueue(&request.Request{EndSession: 1})

	d.Tick()
	d.Tick()
	d.Tick()

	assert.Equal(t, StateDispatching, d.State())
	assert.Equal(t, 1, q.Len(), "only one request may leave the queue while another is in flight")

	close(ft.release)
	waitDelivered(t, d)
	d.Tick()
	assert.Equal(t, 0, q.Len())
}

func TestCloseRequeuesInFlightFailure(t *testing.T) {
	ft := &fakeTransport{script: []bool{false}}
	d, q := newTestDispatcher(t, ft)

	q.Enqueue(&request.Request{BeginSession: 1})

	d.Tick()
	require.Equal(t, 0, q.Len(), "the in-flight request has left the queue")

	d.Close()

	require.Equal(t, 1, q.Len(), "a failed in-flight delivery must survive Close")
	assert.Equal(t, "begin_session", q.Snapshot()[0].Kind())
}

func TestCloseAfterSuccessLeavesQueueDrained(t *testing.T) {
	ft := &fakeTransport{}
	d, q := newTestDispatcher(t, ft)

	q.Enqueue(&request.Request{BeginSession: 1})

	d.Tick()
	d.Close()

	assert.Equal(t, 0, q.Len())
}

func TestTickOnEmptyQueueStaysIdle(t *testing.T) {
	ft := &fakeTransport{}
	d, _ := newTestDispatcher(t, ft)

	d.Tick()
	d.Tick()

	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, 0, ft.callCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "dispatching", StateDispatching.String())
	assert.Equal(t, "backoff", StateBackoff.String())
}
