package errors

import (
	"fmt"
	"runtime"
)

// PanicReport describes a recovered panic in a form suitable for crash
// reporting.
type PanicReport struct {
	Value string
	Stack string
}

// NewPanicReport builds a report for a value returned by recover, capturing
// the stack of the panicking goroutine. Call it from the deferred function
// that recovered, before the stack unwinds further.
func NewPanicReport(value interface{}) PanicReport {
	return PanicReport{
		Value: fmt.Sprintf("%v", value),
		Stack: panicStack(),
	}
}

// PanicHandler receives a report for every panic captured by CapturePanics.
type PanicHandler func(report PanicReport)

// CapturePanics runs fn, converting a panic into an AppError after notifying
// the handler. The panic is swallowed, so this is only appropriate for
// callers that can carry on without the failed work.
func CapturePanics(handler PanicHandler, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		report := NewPanicReport(r)
		if handler != nil {
			handler(report)
		}

		err = New(ErrCodeInternal, fmt.Sprintf("Recovered from panic: %s", report.Value)).
			WithSeverity(SeverityCritical).
			WithContext("stack", report.Stack)
	}()

	return fn()
}

// panicStack captures the stack of the panicking goroutine
func panicStack() string {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
