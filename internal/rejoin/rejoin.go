// Package rejoin keeps at most one pending rejoin notification per topic.
package rejoin

import "sync"

type Coordinator struct {
	mu      sync.Mutex
	pending map[string]func()
}

func New() *Coordinator {
	return &Coordinator{pending: map[string]func(){}}
}

// Subscribe arms fn for topic, replacing any pending subscription.
func (c *Coordinator) Subscribe(topic string, fn func()) {
	c.mu.Lock()
	c.pending[topic] = fn
	c.mu.Unlock()
}

func (c *Coordinator) Cancel(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[topic]
	delete(c.pending, topic)
	return ok
}

// Fire consumes the pending subscription for topic and runs it. It reports
// false when nothing was pending, which includes a rejoin already in flight.
func (c *Coordinator) Fire(topic string) bool {
	c.mu.Lock()
	fn, ok := c.pending[topic]
	delete(c.pending, topic)
	c.mu.Unlock()
	if !ok {
		return false
	}
	fn()
	return true
}

func (c *Coordinator) Pending(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[topic]
	return ok
}

// Reset drops every pending subscription.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.pending = map[string]func(){}
	c.mu.Unlock()
}
