package transport

import "errors"

// ErrQueueFull is returned by Engine.Publish when the outbound queue
// has no room for another request; callers get a distinct failure
// back rather than blocking.
var ErrQueueFull = errors.New("transport: outbound queue full")
