package session

import (
	"sync"
)

type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateChecking
	StateConnected
	StateCompleted
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a connection state notification. Err is set for a failed signaling flow.
type Status struct {
	State ConnectionState
	Err   error
}

// subscriberBuffer is the number of notifications a slow subscriber may lag behind
// before further ones are dropped for it.
const subscriberBuffer = 16

// StateCell holds the latest Status and broadcasts every change to its subscribers.
type StateCell struct {
	mx     sync.Mutex
	status Status
	subs   map[chan Status]struct{}
	closed bool
}

func (c *StateCell) Get() Status {
	c.mx.Lock()
	defer c.mx.Unlock()

	return c.status
}

func (c *StateCell) Set(status Status) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.closed {
		return
	}

	c.status = status

	for ch := range c.subs {
		select {
		case ch <- status:
		default:
		}
	}
}

// Subscribe returns a channel receiving every following Status and a function to
// stop the subscription. The channel is closed on unsubscribe or on Close().
func (c *StateCell) Subscribe() (<-chan Status, func()) {
	c.mx.Lock()
	defer c.mx.Unlock()

	ch := make(chan Status, subscriberBuffer)

	if c.closed {
		close(ch)

		return ch, func() {}
	}

	if c.subs == nil {
		c.subs = make(map[chan Status]struct{})
	}

	c.subs[ch] = struct{}{}

	return ch, func() {
		c.mx.Lock()
		defer c.mx.Unlock()

		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// Close publishes status as the last one and releases all subscribers.
func (c *StateCell) Close(status Status) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.status = status

	for ch := range c.subs {
		select {
		case ch <- status:
		default:
		}

		close(ch)
	}

	c.subs = nil
}
