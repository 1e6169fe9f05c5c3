// Package transport describes the pub/sub socket the session manager drives.
// Implementations own the network I/O and wire encoding; this module only
// calls through these interfaces.
package transport

import "encoding/json"

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Ref identifies one handler registration on a Channel.
type Ref int64

type Handler func(payload json.RawMessage)

type Push interface {
	Receive(status string, cb func(payload json.RawMessage)) Push
}

type Channel interface {
	Join() Push
	Leave() Push
	Push(event string, payload any) Push
	On(event string, handler Handler) Ref
	// Off removes the handlers registered under refs, or every handler for
	// event when no ref is given.
	Off(event string, refs ...Ref)
	OnClose(cb func())
	OnError(cb func(err error))
}

type Socket interface {
	Connect()
	Disconnect(cb func())
	IsConnected() bool
	OnOpen(cb func())
	OnClose(cb func())
	OnError(cb func(err error))
	Channel(topic string, params Params) Channel
}

// Dialer constructs an unconnected socket for url.
type Dialer func(url string, params Params) Socket
