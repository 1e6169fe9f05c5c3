// Package lasagna manages an authenticated session over a pub/sub socket.
//
// A Client owns one transport socket and a registry of channels keyed by
// topic. It checks bearer credentials for staleness before every operation
// that needs them, fetches replacements through a caller-supplied accessor,
// reconnects the socket when an error coincides with a stale credential, and
// rebuilds channels that are kicked or whose join is refused for an expired
// credential.
package lasagna

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"lasagna/internal/authpolicy"
	"lasagna/internal/credential"
	"lasagna/internal/logging"
	"lasagna/internal/registry"
	"lasagna/internal/rejoin"
	"lasagna/transport"
)

const (
	DefaultURL = "wss://lasagna.pub/socket"

	// CredentialKey is the params key carrying the bearer credential for both
	// socket and channel params.
	CredentialKey = "jwt"

	EventKicked = "kicked"
	EventBanned = "banned"
)

type (
	Params           = transport.Params
	ChannelCallbacks = registry.Callbacks
	Ref              = registry.Ref
	Logger           = logging.Logger
	LogEvent         = logging.Event
)

func NewLogger(debug bool) *Logger {
	return logging.New(debug)
}

type CredentialKind int

const (
	KindSocket CredentialKind = iota + 1
	KindChannel
)

func (k CredentialKind) String() string {
	switch k {
	case KindSocket:
		return "socket"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// CredentialRequest describes what a credential is needed for. Topic is set
// only for KindChannel.
type CredentialRequest struct {
	Kind   CredentialKind
	Params Params
	Topic  string
}

// CredentialAccessor fetches a fresh credential. Errors and stale results are
// both treated as a failed fetch.
type CredentialAccessor func(ctx context.Context, req CredentialRequest) (string, error)

type SocketCallbacks struct {
	OnOpen  func()
	OnClose func()
	OnError func(err error)
}

type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithDialer sets the transport used to create sockets. Without one,
// InitSocket always fails.
func WithDialer(dial transport.Dialer) Option {
	return func(c *Client) { c.dial = dial }
}

func WithLogger(logger *Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used for credential expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.validator = credential.Validator{Clock: clk} }
}

type Client struct {
	accessor  CredentialAccessor
	url       string
	dial      transport.Dialer
	logger    *logging.Logger
	validator credential.Validator

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	socket          transport.Socket
	socketParams    Params
	socketCallbacks SocketCallbacks
	// socketEpoch advances on every InitSocket and Disconnect.
	socketEpoch  uint64
	reconnecting atomic.Bool

	channels *registry.Registry
	rejoins  *rejoin.Coordinator
}

func New(accessor CredentialAccessor, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		accessor: accessor,
		url:      DefaultURL,
		ctx:      ctx,
		cancel:   cancel,
		channels: registry.New(),
		rejoins:  rejoin.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL is the socket endpoint sockets are dialed with.
func (c *Client) URL() string {
	return c.url
}

// ShouldAuth reports whether topic requires a credential to join.
func (c *Client) ShouldAuth(topic string) bool {
	return authpolicy.ShouldAuth(topic)
}

// IsInvalidJwt reports whether token is empty, undecodable or expired.
func (c *Client) IsInvalidJwt(token string) bool {
	return c.validator.IsInvalid(token)
}

// Close tears the session down and cancels any in-flight rejoin fetches.
// The client is not reusable afterwards.
func (c *Client) Close() {
	c.cancel()
	c.Disconnect(nil)
	c.rejoins.Reset()
	c.mu.Lock()
	c.socket = nil
	c.mu.Unlock()
}

// resolveCredential returns current when it is still usable, otherwise asks
// the accessor for a replacement.
func (c *Client) resolveCredential(ctx context.Context, current string, req CredentialRequest) (string, bool) {
	if !c.validator.IsInvalid(current) {
		return current, true
	}
	if c.accessor == nil {
		c.logger.Warn("no credential accessor configured", logging.Field("kind", req.Kind.String()))
		return "", false
	}
	c.logger.Debug("fetching credential",
		logging.Field("kind", req.Kind.String()),
		logging.Field("topic", req.Topic),
	)
	fetched, err := c.accessor(ctx, req)
	if err != nil {
		c.logger.Warn("credential fetch failed",
			logging.Field("kind", req.Kind.String()),
			logging.Field("topic", req.Topic),
			logging.Field("error", err),
		)
		return "", false
	}
	if c.validator.IsInvalid(fetched) {
		c.logger.Warn("fetched credential is invalid",
			logging.Field("kind", req.Kind.String()),
			logging.Field("topic", req.Topic),
		)
		return "", false
	}
	return fetched, true
}
