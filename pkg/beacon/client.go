// Package beacon is a telemetry client. It buffers analytics events and
// session signals locally, persists them across process restarts, and
// forwards them to a remote collector over HTTP under a strict
// one-request-in-flight discipline.
package beacon

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimogit/beacon/internal/common"
	"github.com/nimogit/beacon/internal/dispatch"
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/metrics"
	"github.com/nimogit/beacon/internal/queue"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/internal/storage"
	"github.com/nimogit/beacon/pkg/errors"
)

// Default tuning. All of it can be overridden through Config.
const (
	DefaultHeartbeatInterval     = 500 * time.Millisecond
	DefaultSessionUpdateInterval = 60 * time.Second
	DefaultFailTimeout           = 60 * time.Second
	DefaultRequestTimeout        = 30 * time.Second
	DefaultEventBatchSize        = 10
)

// Config configures a Client. ServerURL and AppKey are required; everything
// else has a sensible default.
type Config struct {
	// ServerURL is the base URL of the collector, e.g. "https://stats.example.com".
	ServerURL string
	// AppKey identifies the application at the collector.
	AppKey string

	// DeviceID overrides the stable device identifier. When empty, an
	// identifier persisted by a previous run is reused, or a fresh UUID is
	// generated and persisted.
	DeviceID string

	// AppVersion is reported in metrics and crash reports.
	AppVersion string
	// MetricOverrides replace or extend the computed metric snapshot.
	MetricOverrides map[string]string

	// StatePath overrides the location of the persisted state file.
	// Defaults to <state dir>/beacon.json.
	StatePath string

	// Salt enables the checksum256 request parameter when non-empty.
	Salt string

	// Optional location metadata copied into every request.
	CountryCode string
	City        string
	IPAddress   string

	HeartbeatInterval     time.Duration
	SessionUpdateInterval time.Duration
	// FailTimeout is the fixed backoff applied after a failed delivery.
	FailTimeout    time.Duration
	RequestTimeout time.Duration
	// EventBatchSize caps how many buffered events fold into one request.
	EventBatchSize int

	// Transport replaces the HTTP transport; used in tests.
	Transport dispatch.Transport

	// DisableHeartbeat turns off the background tick loop. The owner must
	// then drive the client through Tick, e.g. short-lived CLI processes.
	DisableHeartbeat bool
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.SessionUpdateInterval <= 0 {
		cfg.SessionUpdateInterval = DefaultSessionUpdateInterval
	}
	if cfg.FailTimeout <= 0 {
		cfg.FailTimeout = DefaultFailTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.EventBatchSize <= 0 {
		cfg.EventBatchSize = DefaultEventBatchSize
	}
	return cfg
}

// Client owns the full pipeline: store, queue, batcher, dispatcher and the
// heartbeat scheduler driving them. Producer methods are synchronous and
// never block on network I/O; delivery happens on the heartbeat cadence.
type Client struct {
	cfg     Config
	store   *storage.Store
	queue   *queue.Queue
	disp    *dispatch.Dispatcher
	metrics *metrics.Provider

	mu       sync.Mutex
	deviceID string
	optOut   bool

	// Event batcher: unordered append buffer, drained oldest-first.
	events []request.Event
	timed  map[string]int64

	// Session state.
	sessionStarted bool
	autoExtend     bool
	trackTime      bool
	lastBeat       time.Time
	storedDuration time.Duration

	// View tracking.
	lastView           string
	lastViewTime       time.Time
	lastViewStored     time.Duration
	firstView          bool
	conversionReported bool

	// Pending user property patch, flushed by SaveUserProperties.
	userPatch map[string]interface{}

	started time.Time
	stop    chan struct{}
	done    chan struct{}

	// now is the client's clock; replaced in tests.
	now func() time.Time
}

// New creates a Client, replaying persisted queue and timed-event state from
// a previous run, and starts the heartbeat scheduler.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.ConfigError("Server URL is required", "ServerURL")
	}
	if cfg.AppKey == "" {
		return nil, errors.ConfigError("App key is required", "AppKey")
	}
	cfg = cfg.withDefaults()

	statePath := cfg.StatePath
	if statePath == "" {
		dir, err := common.EnsureStateDir()
		if err != nil {
			return nil, err
		}
		statePath = filepath.Join(dir, "beacon.json")
	}

	store, err := storage.Open(statePath)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		store:     store,
		metrics:   metrics.NewProvider(cfg.AppVersion, cfg.MetricOverrides),
		timed:     make(map[string]int64),
		userPatch: make(map[string]interface{}),
		trackTime: true,
		firstView: true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	c.started = c.now()

	store.Get(storage.KeyOptOut, &c.optOut)
	store.Get(storage.KeyTimedEvents, &c.timed)
	if c.timed == nil {
		c.timed = make(map[string]int64)
	}

	if err := c.initDeviceID(cfg.DeviceID); err != nil {
		_ = store.Close()
		return nil, err
	}

	c.queue = queue.New(store, cfg.AppKey)
	c.queue.SetDeviceID(c.deviceID)
	c.queue.SetGeo(request.Geo{
		CountryCode: cfg.CountryCode,
		City:        cfg.City,
		IPAddress:   cfg.IPAddress,
	})

	transport := cfg.Transport
	if transport == nil {
		transport = dispatch.NewHTTPTransport(cfg.ServerURL, cfg.Salt, cfg.RequestTimeout)
	}
	c.disp = dispatch.New(c.queue, transport, cfg.FailTimeout)

	if cfg.DisableHeartbeat {
		close(c.done)
	} else {
		go c.heartbeat()
	}

	return c, nil
}

// Shutdown stops the scheduler, folds any buffered events into the queue and
// flushes the store to disk. Undelivered requests stay queued for the next
// run.
func (c *Client) Shutdown() error {
	select {
	case <-c.stop:
		return nil // already shut down
	default:
	}
	close(c.stop)
	<-c.done

	c.mu.Lock()
	for len(c.events) > 0 {
		c.flushEventsLocked()
	}
	c.mu.Unlock()

	c.disp.Close()
	return c.store.Close()
}

// Tick runs one scheduler beat: session auto-extension, batcher flush, then
// one dispatcher step, in that order. Called automatically by the heartbeat
// loop; exposed for owners that disabled it.
func (c *Client) Tick() {
	now := c.now()

	c.mu.Lock()
	if c.sessionStarted && c.autoExtend && c.trackTime {
		if elapsed := now.Sub(c.lastBeat); elapsed > c.cfg.SessionUpdateInterval {
			seconds := int64(elapsed.Seconds())
			c.lastBeat = now
			c.enqueueLocked(&request.Request{SessionDuration: request.Int64(seconds)})
		}
	}
	c.flushEventsLocked()
	c.mu.Unlock()

	c.disp.Tick()
}

// QueueLen returns the number of requests awaiting delivery.
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// DispatchState reports what the dispatcher is currently doing.
func (c *Client) DispatchState() dispatch.State {
	return c.disp.State()
}

// DeviceID returns the stable device identifier in use.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// SetOptOut enables or disables tracking. While opted out every producer
// call is a silent no-op. The flag persists across restarts.
func (c *Client) SetOptOut(optOut bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optOut = optOut
	c.store.Set(storage.KeyOptOut, optOut)
}

// heartbeat is the single cooperative loop driving all periodic work. The
// timer is re-armed only after a tick completes, so ticks never overlap;
// that property is what serializes deliveries without extra locking.
func (c *Client) heartbeat() {
	defer close(c.done)

	timer := time.NewTimer(c.cfg.HeartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-timer.C:
			c.Tick()
			timer.Reset(c.cfg.HeartbeatInterval)
		}
	}
}

func (c *Client) initDeviceID(override string) error {
	if override != "" {
		c.deviceID = override
		return c.store.SetSync(storage.KeyDeviceID, override)
	}

	var stored string
	if c.store.Get(storage.KeyDeviceID, &stored) && stored != "" {
		c.deviceID = stored
		return nil
	}

	c.deviceID = uuid.NewString()
	log.Infof("generated device identifier %s", c.deviceID)
	// Identity must hit the disk before any request references it.
	return c.store.SetSync(storage.KeyDeviceID, c.deviceID)
}

// enqueueLocked hands a request to the durable queue. Callers hold c.mu.
func (c *Client) enqueueLocked(r *request.Request) {
	c.queue.Enqueue(r)
}

func (c *Client) persistTimedLocked() {
	c.store.Set(storage.KeyTimedEvents, c.timed)
}
