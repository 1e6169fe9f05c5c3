package lasagna

import "lasagna/internal/logging"

// rejoinCycle rebuilds topic's channel: leave, init with the same params and
// callbacks (refreshing a stale credential), restore bindings, and join
// again replaying the last onJoin.
func (c *Client) rejoinCycle(topic string) {
	snap, ok := c.channels.Snapshot(topic)
	if !ok {
		return
	}
	c.logger.Debug("rejoin cycle started", logging.Field("topic", topic))

	params := snap.Params
	if jwt, _ := params.String(CredentialKey); c.validator.IsInvalid(jwt) {
		params = params.Without(CredentialKey)
	}

	c.LeaveChannel(topic)
	if !c.InitChannel(c.ctx, topic, params, snap.Callbacks) {
		c.logger.Warn("rejoin failed: channel could not be reinitialized", logging.Field("topic", topic))
		return
	}
	c.restoreBindings(topic, snap.Bindings)
	c.JoinChannel(topic, snap.OnJoin)
}
