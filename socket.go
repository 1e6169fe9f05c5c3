package lasagna

import (
	"context"

	"lasagna/internal/logging"
	"lasagna/transport"
)

// InitSocket creates the transport socket with a usable credential embedded
// in its params. It blocks while the accessor is consulted and reports false
// when no usable credential could be obtained. The socket is not connected;
// call Connect.
func (c *Client) InitSocket(ctx context.Context, params Params, callbacks SocketCallbacks) bool {
	if c.dial == nil {
		c.logger.Warn("cannot init socket: no transport dialer configured")
		return false
	}
	current, _ := params.String(CredentialKey)
	jwt, ok := c.resolveCredential(ctx, current, CredentialRequest{Kind: KindSocket, Params: params.Clone()})
	if !ok {
		return false
	}

	c.mu.Lock()
	previous := c.socket
	c.mu.Unlock()
	if previous != nil {
		c.logger.Debug("replacing existing socket")
		c.Disconnect(nil)
	}

	socketParams := params.With(CredentialKey, jwt)
	sock := c.dial(c.url, socketParams)
	if callbacks.OnOpen != nil {
		sock.OnOpen(callbacks.OnOpen)
	}
	if callbacks.OnClose != nil {
		sock.OnClose(callbacks.OnClose)
	}
	sock.OnError(func(err error) {
		c.handleSocketError(sock, jwt, callbacks, err)
	})

	c.mu.Lock()
	c.socket = sock
	c.socketParams = socketParams
	c.socketCallbacks = callbacks
	c.socketEpoch++
	c.mu.Unlock()

	c.logger.Debug("socket initialized", logging.Field("url", c.url))
	return true
}

func (c *Client) handleSocketError(sock transport.Socket, jwt string, callbacks SocketCallbacks, err error) {
	if callbacks.OnError != nil {
		callbacks.OnError(err)
	}
	if !c.isCurrentSocket(sock) {
		return
	}
	// The transport reports auth failures as plain connection errors, so only
	// a stale credential justifies a reconnect.
	if !c.validator.IsInvalid(jwt) {
		c.logger.Debug("socket error with valid credential", logging.Field("error", err))
		return
	}
	c.logger.Info("socket error with stale credential; reconnecting", logging.Field("error", err))
	c.reconnect()
}

// reconnect runs one disconnect, reinit, connect cycle. Errors reported while
// a cycle is running do not start another.
func (c *Client) reconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	c.mu.Lock()
	params := c.socketParams.Without(CredentialKey)
	callbacks := c.socketCallbacks
	c.mu.Unlock()

	c.Disconnect(nil)
	c.mu.Lock()
	c.socket = nil
	c.mu.Unlock()
	if !c.InitSocket(c.ctx, params, callbacks) {
		c.logger.Warn("socket reconnect failed: no usable credential")
		return
	}
	c.Connect()
}

func (c *Client) isCurrentSocket(sock transport.Socket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket == sock
}

func (c *Client) currentSocket() transport.Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket
}

// currentSession returns the socket with the epoch it was observed at.
func (c *Client) currentSession() (transport.Socket, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket, c.socketEpoch
}

// sessionUnchanged reports whether sock is still current and has not been
// disconnected since epoch was observed.
func (c *Client) sessionUnchanged(sock transport.Socket, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket == sock && c.socketEpoch == epoch
}

// Connect opens the socket created by InitSocket. It reports false when no
// socket exists.
func (c *Client) Connect() bool {
	sock := c.currentSocket()
	if sock == nil {
		c.logger.Debug("connect ignored: socket not initialized")
		return false
	}
	sock.Connect()
	return true
}

// Disconnect leaves every channel and then closes the socket. cb is passed to
// the transport and runs once the socket has closed.
func (c *Client) Disconnect(cb func()) {
	c.mu.Lock()
	c.socketEpoch++
	c.mu.Unlock()
	c.LeaveAllChannels()
	sock := c.currentSocket()
	if sock == nil {
		if cb != nil {
			cb()
		}
		return
	}
	sock.Disconnect(cb)
	c.logger.Debug("socket disconnected")
}

func (c *Client) IsConnected() bool {
	sock := c.currentSocket()
	if sock == nil {
		return false
	}
	return sock.IsConnected()
}
