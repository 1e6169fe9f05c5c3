package lasagna

import (
	"github.com/google/uuid"

	"lasagna/internal/logging"
	"lasagna/internal/registry"
	"lasagna/transport"
)

// RegisterEventHandler binds handler to event on topic's channel. The
// returned ref identifies this binding for UnregisterEventHandler and stays
// valid across rejoin cycles.
func (c *Client) RegisterEventHandler(topic string, event string, handler transport.Handler) (Ref, bool) {
	if handler == nil {
		return uuid.Nil, false
	}
	snap, ok := c.channels.Snapshot(topic)
	if !ok {
		return uuid.Nil, false
	}
	transportRef := snap.Channel.On(event, handler)

	var ref Ref
	recorded := c.channels.Update(topic, func(h *registry.Handle) {
		if h.Channel != snap.Channel {
			return
		}
		ref = h.AddBinding(event, transportRef, handler)
	})
	if !recorded || ref == uuid.Nil {
		// The channel was replaced while binding.
		snap.Channel.Off(event, transportRef)
		return uuid.Nil, false
	}
	c.logger.Debug("event handler registered",
		logging.Field("topic", topic),
		logging.Field("event", event),
	)
	return ref, true
}

// UnregisterEventHandler removes the single binding identified by ref.
func (c *Client) UnregisterEventHandler(topic string, event string, ref Ref) bool {
	var (
		ch      transport.Channel
		removed registry.Binding
		found   bool
	)
	c.channels.Update(topic, func(h *registry.Handle) {
		ch = h.Channel
		removed, found = h.RemoveBinding(event, ref)
	})
	if !found {
		return false
	}
	ch.Off(event, removed.TransportRef)
	return true
}

// UnregisterAllEventHandlers removes every caller binding for event. The
// client's own kick and ban bindings are kept.
func (c *Client) UnregisterAllEventHandlers(topic string, event string) {
	var (
		ch       transport.Channel
		bindings []registry.Binding
	)
	if !c.channels.Update(topic, func(h *registry.Handle) {
		ch = h.Channel
		bindings = h.Bindings[event]
		delete(h.Bindings, event)
	}) {
		return
	}
	if event != EventKicked && event != EventBanned {
		ch.Off(event)
		return
	}
	if len(bindings) == 0 {
		return
	}
	refs := make([]transport.Ref, 0, len(bindings))
	for _, b := range bindings {
		refs = append(refs, b.TransportRef)
	}
	ch.Off(event, refs...)
}

// restoreBindings re-attaches bindings to topic's current channel, keeping
// their caller refs.
func (c *Client) restoreBindings(topic string, bindings map[string][]registry.Binding) {
	if len(bindings) == 0 {
		return
	}
	snap, ok := c.channels.Snapshot(topic)
	if !ok {
		return
	}
	restored := make(map[string][]registry.Binding, len(bindings))
	for event, list := range bindings {
		for _, b := range list {
			b.TransportRef = snap.Channel.On(event, b.Handler)
			restored[event] = append(restored[event], b)
		}
	}
	c.channels.Update(topic, func(h *registry.Handle) {
		if h.Channel != snap.Channel {
			return
		}
		for event, list := range restored {
			h.Bindings[event] = append(h.Bindings[event], list...)
		}
	})
}
