// Package lifetime models the extend-lifetime contract of worker event
// handling: the platform may suspend or terminate the worker between
// events, so any asynchronous work started from a handler must be
// registered on the triggering event or it may never complete.
package lifetime

import "sync"

// Event is the lifetime-extension token passed into event handlers.
// Handlers register asynchronous work with WaitUntil; the platform (or a
// test) calls Wait to keep the worker alive until all registered work is
// done.
type Event struct {
	wg sync.WaitGroup
}

func NewEvent() *Event {
	return &Event{}
}

// WaitUntil runs fn asynchronously and extends the event's lifetime
// until it returns.
func (e *Event) WaitUntil(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// Wait blocks until all registered work has completed.
func (e *Event) Wait() {
	e.wg.Wait()
}
