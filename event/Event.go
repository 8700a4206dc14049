// Package event implements the lifecycle notifications of a training
// loop. Each lifecycle point has its own typed Channel to which any
// number of listeners can subscribe. Listeners are purely observers:
// they cannot change the control flow of the loop that emits to them.
package event

// Subscription identifies a listener registered on a Channel
type Subscription struct {
	channel string
	id      uint64
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Channel is a named lifecycle notification carrying payloads of type
// T. Listeners are called synchronously, in registration order, on the
// goroutine that calls Emit.
//
// A Channel is not safe for concurrent use.
type Channel[T any] struct {
	name      string
	next      uint64
	listeners []listener[T]
}

// NewChannel returns a new Channel with no listeners
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name}
}

// Name returns the name of the Channel
func (c *Channel[T]) Name() string {
	return c.name
}

// On registers fn to be called on every Emit and returns a
// Subscription that can be used to remove it
func (c *Channel[T]) On(fn func(T)) Subscription {
	if fn == nil {
		panic("on: nil listener")
	}
	c.next++
	c.listeners = append(c.listeners, listener[T]{id: c.next, fn: fn})
	return Subscription{channel: c.name, id: c.next}
}

// Off removes the listener registered with s. It returns whether the
// listener was found.
func (c *Channel[T]) Off(s Subscription) bool {
	if s.channel != c.name {
		return false
	}
	for i, l := range c.listeners {
		if l.id == s.id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every listener with data
func (c *Channel[T]) Emit(data T) {
	for _, l := range c.listeners {
		l.fn(data)
	}
}

// Len returns the number of registered listeners
func (c *Channel[T]) Len() int {
	return len(c.listeners)
}
