package beacon

import (
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
)

// BeginSession starts a session and emits a begin_session request carrying
// the metrics snapshot. The session auto-extends on the heartbeat cadence
// until EndSession. Calling BeginSession while a session is active is a
// no-op.
func (c *Client) BeginSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if c.sessionStarted {
		log.Warn("session already started")
		return
	}

	c.sessionStarted = true
	c.autoExtend = true
	c.lastBeat = c.now()
	c.storedDuration = 0

	c.enqueueLocked(&request.Request{
		BeginSession: 1,
		Metrics:      c.metrics.Snapshot(),
	})
}

// SessionDuration reports seconds of additional session time explicitly.
// No-op when no session is active.
func (c *Client) SessionDuration(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if !c.sessionStarted {
		log.Warn("cannot extend session: no session is active")
		return
	}

	c.lastBeat = c.now()
	c.enqueueLocked(&request.Request{SessionDuration: request.Int64(seconds)})
}

// EndSession ends the active session, reporting the time elapsed since the
// last extension. Any pending view duration is flushed first.
func (c *Client) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endSessionLocked(int64(c.now().Sub(c.lastBeat).Seconds()))
}

// EndSessionDuration is EndSession with an explicit duration in seconds.
func (c *Client) EndSessionDuration(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endSessionLocked(seconds)
}

func (c *Client) endSessionLocked(seconds int64) {
	if c.optOut {
		return
	}
	if !c.sessionStarted {
		log.Warn("cannot end session: no session is active")
		return
	}
	if seconds < 0 {
		seconds = 0
	}

	c.reportViewDurationLocked()

	c.enqueueLocked(&request.Request{
		EndSession:      1,
		SessionDuration: request.Int64(seconds),
	})

	c.sessionStarted = false
	c.autoExtend = false
	c.storedDuration = 0
}

// StopTime pauses duration accounting for the session and the current view.
// Wall-clock time spent paused is excluded from both once StartTime resumes.
func (c *Client) StopTime() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.trackTime {
		return
	}
	now := c.now()

	c.trackTime = false
	c.storedDuration = now.Sub(c.lastBeat)
	if c.lastView != "" {
		c.lastViewStored = now.Sub(c.lastViewTime)
	}
}

// StartTime resumes duration accounting paused by StopTime. The reference
// timestamps are rebased backward by the frozen durations, so tracked time
// is continuous across the pause.
func (c *Client) StartTime() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.trackTime {
		return
	}
	now := c.now()

	c.trackTime = true
	c.lastBeat = now.Add(-c.storedDuration)
	c.storedDuration = 0
	if c.lastView != "" {
		c.lastViewTime = now.Add(-c.lastViewStored)
		c.lastViewStored = 0
	}
}

// ReportConversion attributes this install to an advertising campaign. Only
// the first call per client lifetime emits a request.
func (c *Client) ReportConversion(campaignID, campaignUser string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.optOut {
		return
	}
	if c.conversionReported {
		log.Warn("campaign conversion already reported")
		return
	}
	if campaignID == "" {
		log.Error("dropping conversion: campaign id is required")
		return
	}

	c.conversionReported = true
	c.enqueueLocked(&request.Request{
		CampaignID:   campaignID,
		CampaignUser: campaignUser,
	})
}
