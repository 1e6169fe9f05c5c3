// Package transporttest provides an in-memory transport for exercising the
// session manager without a network. Join acknowledgements are scripted per
// topic and delivered synchronously from Receive.
package transporttest

import (
	"encoding/json"
	"sync"

	"lasagna/transport"
)

type Network struct {
	mu          sync.Mutex
	sockets     []*Socket
	channels    map[string][]*Channel
	joinReplies map[string][]string
}

func NewNetwork() *Network {
	return &Network{
		channels:    map[string][]*Channel{},
		joinReplies: map[string][]string{},
	}
}

// ScriptJoin queues join acknowledgement statuses for topic. Joins past the
// end of the script are acknowledged with transport.StatusOK.
func (n *Network) ScriptJoin(topic string, statuses ...string) {
	n.mu.Lock()
	n.joinReplies[topic] = append(n.joinReplies[topic], statuses...)
	n.mu.Unlock()
}

func (n *Network) Dialer() transport.Dialer {
	return func(url string, params transport.Params) transport.Socket {
		s := &Socket{network: n, url: url, params: params.Clone()}
		n.mu.Lock()
		n.sockets = append(n.sockets, s)
		n.mu.Unlock()
		return s
	}
}

func (n *Network) Sockets() []*Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Socket(nil), n.sockets...)
}

func (n *Network) LastSocket() *Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sockets) == 0 {
		return nil
	}
	return n.sockets[len(n.sockets)-1]
}

// Channels returns every channel ever created for topic, oldest first.
func (n *Network) Channels(topic string) []*Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Channel(nil), n.channels[topic]...)
}

func (n *Network) LastChannel(topic string) *Channel {
	chans := n.Channels(topic)
	if len(chans) == 0 {
		return nil
	}
	return chans[len(chans)-1]
}

// JoinCount sums join attempts across every channel created for topic.
func (n *Network) JoinCount(topic string) int {
	total := 0
	for _, ch := range n.Channels(topic) {
		total += ch.JoinCalls()
	}
	return total
}

func (n *Network) nextJoinStatus(topic string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	queue := n.joinReplies[topic]
	if len(queue) == 0 {
		return transport.StatusOK
	}
	n.joinReplies[topic] = queue[1:]
	return queue[0]
}

type Socket struct {
	network *Network
	url     string
	params  transport.Params

	mu              sync.Mutex
	connected       bool
	connectCalls    int
	disconnectCalls int
	onOpen          []func()
	onClose         []func()
	onError         []func(error)
}

func (s *Socket) URL() string { return s.url }

func (s *Socket) Params() transport.Params { return s.params.Clone() }

func (s *Socket) Connect() {
	s.mu.Lock()
	s.connected = true
	s.connectCalls++
	callbacks := append([]func(){}, s.onOpen...)
	s.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

func (s *Socket) Disconnect(cb func()) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.disconnectCalls++
	callbacks := append([]func(){}, s.onClose...)
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
	if !wasConnected {
		return
	}
	for _, fn := range callbacks {
		fn()
	}
}

func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Socket) OnOpen(cb func()) {
	s.mu.Lock()
	s.onOpen = append(s.onOpen, cb)
	s.mu.Unlock()
}

func (s *Socket) OnClose(cb func()) {
	s.mu.Lock()
	s.onClose = append(s.onClose, cb)
	s.mu.Unlock()
}

func (s *Socket) OnError(cb func(error)) {
	s.mu.Lock()
	s.onError = append(s.onError, cb)
	s.mu.Unlock()
}

func (s *Socket) Channel(topic string, params transport.Params) transport.Channel {
	ch := &Channel{
		network:  s.network,
		topic:    topic,
		params:   params.Clone(),
		handlers: map[string][]handlerEntry{},
	}
	s.network.mu.Lock()
	s.network.channels[topic] = append(s.network.channels[topic], ch)
	s.network.mu.Unlock()
	return ch
}

// FailWith reports err to every registered error callback.
func (s *Socket) FailWith(err error) {
	s.mu.Lock()
	callbacks := append([]func(error){}, s.onError...)
	s.mu.Unlock()
	for _, cb := range callbacks {
		cb(err)
	}
}

func (s *Socket) ConnectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls
}

func (s *Socket) DisconnectCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectCalls
}

// CallbackCounts reports how many open, close and error callbacks are wired.
func (s *Socket) CallbackCounts() (open, closed, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.onOpen), len(s.onClose), len(s.onError)
}

type handlerEntry struct {
	ref     transport.Ref
	handler transport.Handler
}

type PushCall struct {
	Event   string
	Payload any
}

type Channel struct {
	network *Network
	topic   string
	params  transport.Params

	mu         sync.Mutex
	nextRef    transport.Ref
	handlers   map[string][]handlerEntry
	joinCalls  int
	leaveCalls int
	pushes     []PushCall
	onClose    []func()
	onError    []func(error)
}

func (c *Channel) Topic() string { return c.topic }

func (c *Channel) Params() transport.Params { return c.params.Clone() }

func (c *Channel) Join() transport.Push {
	c.mu.Lock()
	c.joinCalls++
	c.mu.Unlock()
	return &Push{status: c.network.nextJoinStatus(c.topic)}
}

func (c *Channel) Leave() transport.Push {
	c.mu.Lock()
	c.leaveCalls++
	c.mu.Unlock()
	return &Push{status: transport.StatusOK}
}

func (c *Channel) Push(event string, payload any) transport.Push {
	c.mu.Lock()
	c.pushes = append(c.pushes, PushCall{Event: event, Payload: payload})
	c.mu.Unlock()
	return &Push{status: transport.StatusOK}
}

func (c *Channel) On(event string, handler transport.Handler) transport.Ref {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRef++
	c.handlers[event] = append(c.handlers[event], handlerEntry{ref: c.nextRef, handler: handler})
	return c.nextRef
}

func (c *Channel) Off(event string, refs ...transport.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(refs) == 0 {
		delete(c.handlers, event)
		return
	}
	kept := c.handlers[event][:0]
	for _, entry := range c.handlers[event] {
		drop := false
		for _, ref := range refs {
			if entry.ref == ref {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, entry)
		}
	}
	c.handlers[event] = kept
}

func (c *Channel) OnClose(cb func()) {
	c.mu.Lock()
	c.onClose = append(c.onClose, cb)
	c.mu.Unlock()
}

func (c *Channel) OnError(cb func(error)) {
	c.mu.Lock()
	c.onError = append(c.onError, cb)
	c.mu.Unlock()
}

// Emit delivers an inbound event to the handlers currently bound to it.
func (c *Channel) Emit(event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	c.mu.Lock()
	entries := append([]handlerEntry(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, entry := range entries {
		entry.handler(raw)
	}
}

func (c *Channel) HandlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[event])
}

func (c *Channel) JoinCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinCalls
}

func (c *Channel) LeaveCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveCalls
}

func (c *Channel) Pushes() []PushCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PushCall(nil), c.pushes...)
}

// CallbackCounts reports how many close and error callbacks are wired.
func (c *Channel) CallbackCounts() (closed, errs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.onClose), len(c.onError)
}

type Push struct {
	status string
}

func (p *Push) Receive(status string, cb func(json.RawMessage)) transport.Push {
	if status == p.status && cb != nil {
		cb(json.RawMessage("{}"))
	}
	return p
}
