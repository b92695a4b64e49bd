package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"config-watch/internal/log"
)

const DefaultReconnectDelay = 5 * time.Second

var ErrChannelClosed = errors.New("push channel closed")

// Conn is the part of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

func (d wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewWebsocketDialer wraps gorilla's dialer with a handshake timeout.
func NewWebsocketDialer(handshakeTimeout time.Duration) Dialer {
	return wsDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// scheduleFunc runs f after d and returns a function that cancels it.
type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Channel keeps one persistent push connection alive. Every loss, whether
// a dial error, a read error or a remote close, schedules exactly one
// reconnect after a fixed delay. There is no backoff and no retry limit.
type Channel struct {
	url      string
	delay    time.Duration
	dialer   Dialer
	schedule scheduleFunc
	sink     func([]byte)
	onState  func(connected bool)

	live      atomic.Bool // dialing or open
	connected atomic.Bool
	closed    atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	conn        Conn
	stopPending func() bool
}

// NewChannel creates a channel that hands every inbound frame to sink.
// sink runs on the channel's reader goroutine.
func NewChannel(url string, delay time.Duration, sink func([]byte)) *Channel {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		url:      url,
		delay:    delay,
		dialer:   NewWebsocketDialer(10 * time.Second),
		schedule: afterFunc,
		sink:     sink,
		onState:  func(bool) {},
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Channel) SetDialer(d Dialer) {
	c.dialer = d
}

// SetStateHook registers a callback for connect/disconnect transitions.
func (c *Channel) SetStateHook(fn func(connected bool)) {
	if fn == nil {
		fn = func(bool) {}
	}
	c.onState = fn
}

// Connect starts a connection attempt in the background. It is a no-op while
// a connection is dialing or open, or after Close.
func (c *Channel) Connect() {
	if c.closed.Load() {
		return
	}
	if !c.live.CompareAndSwap(false, true) {
		return
	}
	go c.run()
}

func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Close stops the channel for good: the live connection is closed and a
// pending reconnect is cancelled.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrChannelClosed
	}
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopPending != nil {
		c.stopPending()
		c.stopPending = nil
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Channel) run() {
	conn, err := c.dialer.Dial(c.ctx, c.url)
	if err != nil {
		log.Warn().Err(err).Str("url", c.url).Msg("Push channel dial failed")
		c.lost()
		return
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		c.live.Store(false)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.onState(true)
	c.connected.Store(true)
	log.Info().Str("url", c.url).Msg("Push channel connected")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.Warn().Err(err).Msg("Push channel lost")
			}
			break
		}
		c.sink(payload)
	}

	_ = conn.Close()
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	c.connected.Store(false)
	c.onState(false)
	c.lost()
}

// lost schedules the single reconnect attempt for the connection that just
// went away.
func (c *Channel) lost() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.live.Store(false)
	if c.closed.Load() || c.stopPending != nil {
		return
	}

	log.Info().Dur("delay", c.delay).Msg("Push channel reconnect scheduled")
	c.stopPending = c.schedule(c.delay, func() {
		c.mu.Lock()
		c.stopPending = nil
		c.mu.Unlock()
		c.Connect()
	})
}
