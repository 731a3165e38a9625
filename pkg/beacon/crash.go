package beacon

import (
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/pkg/errors"
)

// RecordError queues a crash report for a handled error. Fatal reports
// additionally flush the store synchronously, so the report survives a
// process that exits right after.
func (c *Client) RecordError(err error, fatal bool, custom map[string]interface{}) {
	if err == nil {
		return
	}
	c.recordCrash(err.Error(), "", fatal, custom)
}

// RecoverPanic is meant to be deferred at the top of main or a goroutine.
// It converts a panic into a fatal crash report, flushes the store so the
// report survives the exit, then re-raises the panic.
//
//	defer client.RecoverPanic()
func (c *Client) RecoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	report := errors.NewPanicReport(r)
	c.recordCrash(report.Value, report.Stack, true, nil)

	panic(r)
}

func (c *Client) recordCrash(message, stack string, fatal bool, custom map[string]interface{}) {
	c.mu.Lock()

	if c.optOut {
		c.mu.Unlock()
		return
	}

	errText := message
	if stack != "" {
		errText = message + "\n" + stack
	}

	c.enqueueLocked(&request.Request{Crash: &request.Crash{
		OS:         c.metrics.OS(),
		OSVersion:  c.metrics.OSVersion(),
		AppVersion: c.metrics.AppVersion(),
		Error:      errText,
		Nonfatal:   !fatal,
		Run:        int64(c.now().Sub(c.started).Seconds()),
		Custom:     custom,
	}})
	c.mu.Unlock()

	if fatal {
		// The process may be about to die; this is the one path that
		// blocks on the disk.
		if err := c.store.Flush(); err != nil {
			log.Errorf("failed to flush crash report: %v", err)
		}
	}
}
