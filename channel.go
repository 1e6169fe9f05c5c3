package lasagna

import (
	"context"
	"encoding/json"

	"lasagna/internal/authpolicy"
	"lasagna/internal/logging"
	"lasagna/internal/registry"
	"lasagna/transport"
)

// ChannelInfo is a read-only view of a registered channel.
type ChannelInfo struct {
	Topic     string
	Params    Params
	HasOnJoin bool
	// Bindings counts caller event handlers per event.
	Bindings map[string]int
}

// InitChannel creates the transport channel for topic and registers it,
// replacing any channel already registered under topic. For topics that
// require auth it makes sure params carry a usable credential, fetching one
// when absent or stale.
func (c *Client) InitChannel(ctx context.Context, topic string, params Params, callbacks ChannelCallbacks) bool {
	if topic == "" {
		return false
	}
	sock, epoch := c.currentSession()
	if sock == nil {
		c.logger.Debug("cannot init channel: socket not initialized", logging.Field("topic", topic))
		return false
	}

	params = params.Clone()
	if authpolicy.ShouldAuth(topic) {
		current, _ := params.String(CredentialKey)
		jwt, ok := c.resolveCredential(ctx, current, CredentialRequest{Kind: KindChannel, Params: params.Clone(), Topic: topic})
		if !ok {
			return false
		}
		params = params.With(CredentialKey, jwt)
	}
	if !c.sessionUnchanged(sock, epoch) {
		c.logger.Debug("channel init dropped: socket disconnected during credential fetch", logging.Field("topic", topic))
		return false
	}

	c.LeaveChannel(topic)

	ch := sock.Channel(topic, params)
	if callbacks.OnError != nil {
		ch.OnError(callbacks.OnError)
	}
	if callbacks.OnClose != nil {
		ch.OnClose(callbacks.OnClose)
	}
	ch.On(EventBanned, func(json.RawMessage) {
		if !c.isCurrentChannel(topic, ch) {
			return
		}
		c.logger.Info("banned from channel", logging.Field("topic", topic))
		c.LeaveChannel(topic)
	})
	ch.On(EventKicked, func(json.RawMessage) {
		if !c.isCurrentChannel(topic, ch) {
			return
		}
		c.logger.Info("kicked from channel; rejoining", logging.Field("topic", topic))
		c.rejoins.Fire(topic)
	})

	if prev, replaced := c.channels.Put(registry.NewHandle(topic, params, callbacks, ch)); replaced {
		// A concurrent InitChannel registered first; last write wins.
		prev.Channel.Leave()
	}
	c.rejoins.Subscribe(topic, func() { c.rejoinCycle(topic) })

	c.logger.Debug("channel initialized", logging.Field("topic", topic))
	return true
}

// JoinChannel joins the channel registered for topic. onJoin runs on the
// transport's ok acknowledgement and is replayed after every rejoin cycle.
// A join refused while the stored credential is stale triggers a rejoin with
// a fresh credential; refusals on auth-exempt topics are left alone.
func (c *Client) JoinChannel(topic string, onJoin func()) bool {
	if topic == "" {
		return false
	}
	var ch transport.Channel
	if !c.channels.Update(topic, func(h *registry.Handle) {
		h.OnJoin = onJoin
		ch = h.Channel
	}) {
		c.logger.Debug("join ignored: channel not initialized", logging.Field("topic", topic))
		return false
	}

	ch.Join().
		Receive(transport.StatusOK, func(json.RawMessage) {
			c.logger.Debug("channel joined", logging.Field("topic", topic))
			if onJoin != nil {
				onJoin()
			}
		}).
		Receive(transport.StatusError, func(payload json.RawMessage) {
			c.handleJoinError(topic, ch, payload)
		}).
		Receive(transport.StatusTimeout, func(json.RawMessage) {
			c.logger.Warn("channel join timed out", logging.Field("topic", topic))
		})
	return true
}

func (c *Client) handleJoinError(topic string, ch transport.Channel, payload json.RawMessage) {
	c.logger.Warn("channel join refused",
		logging.Field("topic", topic),
		logging.Field("payload", logging.FormatPayload(payload)),
	)
	if !authpolicy.ShouldAuth(topic) {
		return
	}
	snap, ok := c.channels.Snapshot(topic)
	if !ok || snap.Channel != ch {
		return
	}
	jwt, _ := snap.Params.String(CredentialKey)
	if !c.validator.IsInvalid(jwt) {
		return
	}
	c.rejoins.Fire(topic)
}

// ChannelPush sends event on topic's channel. It reports false when topic is
// not registered.
func (c *Client) ChannelPush(topic string, event string, payload any) bool {
	snap, ok := c.channels.Snapshot(topic)
	if !ok {
		return false
	}
	c.logger.Debug("channel push",
		logging.Field("topic", topic),
		logging.Field("event", event),
		logging.Field("payload", payload),
	)
	snap.Channel.Push(event, payload)
	return true
}

// LeaveChannel cancels any pending rejoin for topic, leaves its channel and
// forgets it. It is a no-op for unknown topics.
func (c *Client) LeaveChannel(topic string) {
	c.rejoins.Cancel(topic)
	h, ok := c.channels.Delete(topic)
	if !ok {
		return
	}
	h.Channel.Leave()
	c.logger.Debug("channel left", logging.Field("topic", topic))
}

func (c *Client) LeaveAllChannels() {
	handles := c.channels.Reset()
	c.rejoins.Reset()
	for _, h := range handles {
		h.Channel.Leave()
	}
	if len(handles) > 0 {
		c.logger.Debug("left all channels", logging.Field("count", len(handles)))
	}
}

func (c *Client) Topics() []string {
	return c.channels.Topics()
}

func (c *Client) Channel(topic string) (ChannelInfo, bool) {
	snap, ok := c.channels.Snapshot(topic)
	if !ok {
		return ChannelInfo{}, false
	}
	info := ChannelInfo{
		Topic:     snap.Topic,
		Params:    snap.Params,
		HasOnJoin: snap.OnJoin != nil,
		Bindings:  make(map[string]int, len(snap.Bindings)),
	}
	for event, bindings := range snap.Bindings {
		info.Bindings[event] = len(bindings)
	}
	return info, true
}

func (c *Client) isCurrentChannel(topic string, ch transport.Channel) bool {
	snap, ok := c.channels.Snapshot(topic)
	return ok && snap.Channel == ch
}
