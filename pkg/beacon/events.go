package beacon

import (
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
)

// Event is a single analytics event. Key is required; Count defaults to 1.
// Sum and Dur are optional and omitted when nil.
type Event struct {
	Key          string
	Count        int64
	Sum          *float64
	Dur          *float64
	Segmentation map[string]interface{}
}

// Float64 returns a pointer to v, for Event.Sum and Event.Dur.
func Float64(v float64) *float64 {
	return &v
}

// RecordEvent buffers an event. Events are folded into outbound requests by
// the scheduler, at most EventBatchSize per request, preserving insertion
// order. An event without a key is dropped and logged.
func (c *Client) RecordEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if ev.Key == "" {
		log.Error("dropping event: key is required")
		return
	}

	c.bufferEventLocked(ev)
}

// StartEvent begins timing a duration event. A second start for the same key
// before the matching end is a no-op.
func (c *Client) StartEvent(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if key == "" {
		log.Error("cannot start timed event: key is required")
		return
	}
	if _, exists := c.timed[key]; exists {
		log.Warnf("timed event %q already started", key)
		return
	}

	c.timed[key] = c.now().Unix()
	c.persistTimedLocked()
}

// EndEvent finishes a timed event started with StartEvent, computing its
// duration. Ending an event that was never started is a no-op.
func (c *Client) EndEvent(key string) {
	c.EndEventWith(Event{Key: key})
}

// EndEventWith is EndEvent with extra event data (count, sum, segmentation)
// attached to the recorded event. The duration is always computed from the
// recorded start.
func (c *Client) EndEventWith(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}

	start, exists := c.timed[ev.Key]
	if !exists {
		log.Warnf("timed event %q was never started", ev.Key)
		return
	}

	delete(c.timed, ev.Key)
	c.persistTimedLocked()

	ev.Dur = Float64(float64(c.now().Unix() - start))
	c.bufferEventLocked(ev)
}

// CancelEvent discards a started timed event without recording anything.
func (c *Client) CancelEvent(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.timed[key]; !exists {
		return
	}
	delete(c.timed, key)
	c.persistTimedLocked()
}

// bufferEventLocked stamps and appends an event to the batcher buffer.
// Callers hold c.mu.
func (c *Client) bufferEventLocked(ev Event) {
	internal := request.Event{
		Key:          ev.Key,
		Count:        ev.Count,
		Sum:          ev.Sum,
		Dur:          ev.Dur,
		Segmentation: ev.Segmentation,
	}
	internal.Stamp(c.now())
	c.events = append(c.events, internal)
}

// flushEventsLocked folds up to EventBatchSize buffered events into one
// request, leaving the remainder for the next tick. Callers hold c.mu.
func (c *Client) flushEventsLocked() {
	if len(c.events) == 0 {
		return
	}

	n := len(c.events)
	if n > c.cfg.EventBatchSize {
		n = c.cfg.EventBatchSize
	}

	batch := make([]request.Event, n)
	copy(batch, c.events[:n])
	c.events = c.events[n:]

	c.enqueueLocked(&request.Request{Events: batch})
}
