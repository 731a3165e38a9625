package beacon

import (
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/internal/storage"
)

// ChangeDeviceID switches the device identifier.
//
// With merge, the collector is asked to merge the old identity into the new
// one: a request carrying old_device_id is queued under the new identifier.
// Without merge the identities stay separate: the active session (if any) is
// ended under the old identifier first, and the caller is expected to begin
// a new session when appropriate.
func (c *Client) ChangeDeviceID(newID string, merge bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if newID == "" {
		log.Error("rejecting device id change: new id is required")
		return
	}
	if newID == c.deviceID {
		return
	}

	oldID := c.deviceID

	if !merge && c.sessionStarted {
		c.endSessionLocked(int64(c.now().Sub(c.lastBeat).Seconds()))
	}

	c.deviceID = newID
	c.queue.SetDeviceID(newID)
	if err := c.store.SetSync(storage.KeyDeviceID, newID); err != nil {
		log.Errorf("failed to persist device id change: %v", err)
	}

	if merge {
		c.enqueueLocked(&request.Request{OldDeviceID: oldID})
	}
}
