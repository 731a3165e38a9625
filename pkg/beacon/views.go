package beacon

import (
	"github.com/nimogit/beacon/internal/log"
)

const viewEventKey = "[CLY]_view"

// RecordView reports a visit to the named view or screen. The duration of
// the previously open view, if any, is reported at the same time; the new
// view stays open until the next RecordView or EndSession.
func (c *Client) RecordView(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if name == "" {
		log.Error("dropping view: name is required")
		return
	}

	c.reportViewDurationLocked()

	segmentation := map[string]interface{}{
		"name":    name,
		"visit":   1,
		"segment": c.metrics.OS(),
	}
	if c.firstView {
		segmentation["start"] = 1
		c.firstView = false
	}

	c.lastView = name
	c.lastViewTime = c.now()
	c.lastViewStored = 0

	c.bufferEventLocked(Event{Key: viewEventKey, Segmentation: segmentation})
}

// reportViewDurationLocked closes the open view, recording the time it was
// on screen minus any paused interval. Callers hold c.mu.
func (c *Client) reportViewDurationLocked() {
	if c.lastView == "" {
		return
	}

	var seconds float64
	if c.trackTime {
		seconds = c.now().Sub(c.lastViewTime).Seconds()
	} else {
		seconds = c.lastViewStored.Seconds()
	}
	if seconds < 0 {
		seconds = 0
	}

	c.bufferEventLocked(Event{
		Key: viewEventKey,
		Dur: Float64(seconds),
		Segmentation: map[string]interface{}{
			"name":    c.lastView,
			"segment": c.metrics.OS(),
		},
	})

	c.lastView = ""
	c.lastViewStored = 0
}
