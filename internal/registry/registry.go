package registry

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"lasagna/transport"
)

// Callbacks are the caller's optional channel lifecycle hooks. A nil field
// means the caller did not ask for that hook.
type Callbacks struct {
	OnClose func()
	OnError func(err error)
}

// Ref is the caller-facing id of one event binding. It stays stable when the
// underlying transport channel is rebuilt.
type Ref = uuid.UUID

type Binding struct {
	Ref          Ref
	TransportRef transport.Ref
	Handler      transport.Handler
}

type Handle struct {
	Topic     string
	Params    transport.Params
	Callbacks Callbacks
	Channel   transport.Channel
	OnJoin    func()
	Bindings  map[string][]Binding
}

func NewHandle(topic string, params transport.Params, callbacks Callbacks, channel transport.Channel) *Handle {
	return &Handle{
		Topic:     topic,
		Params:    params.Clone(),
		Callbacks: callbacks,
		Channel:   channel,
		Bindings:  map[string][]Binding{},
	}
}

// AddBinding records handler under event and returns its new caller ref.
func (h *Handle) AddBinding(event string, transportRef transport.Ref, handler transport.Handler) Ref {
	ref := uuid.New()
	h.Bindings[event] = append(h.Bindings[event], Binding{Ref: ref, TransportRef: transportRef, Handler: handler})
	return ref
}

// RemoveBinding drops the binding with ref and returns it.
func (h *Handle) RemoveBinding(event string, ref Ref) (Binding, bool) {
	bindings := h.Bindings[event]
	idx := slices.IndexFunc(bindings, func(b Binding) bool { return b.Ref == ref })
	if idx < 0 {
		return Binding{}, false
	}
	removed := bindings[idx]
	bindings = slices.Delete(slices.Clone(bindings), idx, idx+1)
	if len(bindings) == 0 {
		delete(h.Bindings, event)
	} else {
		h.Bindings[event] = bindings
	}
	return removed, true
}

// CloneBindings deep-copies the binding table.
func (h *Handle) CloneBindings() map[string][]Binding {
	out := make(map[string][]Binding, len(h.Bindings))
	for event, bindings := range h.Bindings {
		out[event] = slices.Clone(bindings)
	}
	return out
}

// Registry maps topics to their single live handle.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func New() *Registry {
	return &Registry{handles: map[string]*Handle{}}
}

// Put stores h and returns the handle it replaced, if any.
func (r *Registry) Put(h *Handle) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.handles[h.Topic]
	r.handles[h.Topic] = h
	return prev, ok
}

// Snapshot returns a copy of the handle for topic that the caller may read
// without holding the registry lock.
func (r *Registry) Snapshot(topic string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[topic]
	if !ok {
		return Handle{}, false
	}
	out := *h
	out.Params = h.Params.Clone()
	out.Bindings = h.CloneBindings()
	return out, true
}

// Update runs fn on the live handle for topic while holding the registry lock.
// fn must not call back into the registry.
func (r *Registry) Update(topic string, fn func(h *Handle)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[topic]
	if !ok {
		return false
	}
	fn(h)
	return true
}

func (r *Registry) Delete(topic string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[topic]
	if ok {
		delete(r.handles, topic)
	}
	return h, ok
}

// Reset empties the registry and returns the removed handles.
func (r *Registry) Reset() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.handles = map[string]*Handle{}
	return out
}

func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handles))
	for topic := range r.handles {
		topics = append(topics, topic)
	}
	slices.Sort(topics)
	return topics
}
