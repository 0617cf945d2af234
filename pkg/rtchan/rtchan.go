// Package rtchan implements bounded/unbounded FIFO channels (C9): a
// slice-backed queue guarded by one mutex with not_full/not_empty condvars,
// matching the send/recv/close pseudocode in spec.md §4.8 almost line for
// line. Unbounded channels use a capacity of 0 to mean "never block on
// send."
package rtchan

import (
	"errors"
	"sync"

	"github.com/strada-lang/runtime/pkg/value"
)

// ErrClosed is returned by Send/TrySend against a closed channel.
var ErrClosed = errors.New("send on closed channel")

// Channel is the backing payload of CHANNEL-tagged values.
type Channel struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	queue    []*value.Value
	capacity int // 0 means unbounded
	closed   bool
}

func init() {
	value.RegisterDestructor(value.Channel, func(v *value.Value) {
		c, _ := v.Payload().(*Channel)
		if c == nil {
			return
		}
		c.release()
	})
}

// New returns a channel wrapped in an owning CHANNEL value. capacity<=0
// means unbounded.
func New(capacity int) *value.Value {
	c := &Channel{capacity: capacity}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	return value.NewTagged(value.Channel, c)
}

func from(v *value.Value) *Channel {
	c, _ := v.Payload().(*Channel)
	return c
}

// Payload exposes the backing Channel for a given CHANNEL value, or nil.
func Payload(v *value.Value) *Channel { return from(v) }

func (c *Channel) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.queue {
		value.Decref(v)
	}
	c.queue = nil
}

// Send blocks while a bounded channel is full and open, then enqueues v
// (incrementing it). Returns ErrClosed if the channel is closed.
func (c *Channel) Send(v *value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	for c.capacity > 0 && len(c.queue) >= c.capacity && !c.closed {
		c.notFull.Wait()
	}
	if c.closed {
		return ErrClosed
	}
	value.Incref(v)
	c.queue = append(c.queue, v)
	c.notEmpty.Signal()
	return nil
}

// Recv blocks while the channel is empty and open, then dequeues a value
// (ownership transferred to the caller). Returns (undef, false) once the
// channel is empty and closed.
func (c *Channel) Recv() (*value.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if len(c.queue) == 0 {
		return value.UndefSingleton, false
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	c.notFull.Signal()
	return v, true
}

// TrySend is Send without blocking: fails immediately if bounded-and-full.
func (c *Channel) TrySend(v *value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.capacity > 0 && len(c.queue) >= c.capacity {
		return errFull
	}
	value.Incref(v)
	c.queue = append(c.queue, v)
	c.notEmpty.Signal()
	return nil
}

// TryRecv is Recv without blocking: fails immediately if empty-and-open.
func (c *Channel) TryRecv() (*value.Value, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		if c.closed {
			return value.UndefSingleton, false, nil
		}
		return nil, false, errEmpty
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	c.notFull.Signal()
	return v, true, nil
}

var (
	errFull  = errors.New("channel full")
	errEmpty = errors.New("channel empty")
)

// Close marks the channel closed and wakes every waiter so each rechecks
// its predicate (proceed on a now-available item, or exit for
// end-of-stream/send-on-closed).
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// Len reports the number of queued values.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// IsClosed reports whether Close has been called.
func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
