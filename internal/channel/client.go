package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
)

const (
	defaultPath           = "/ws"
	defaultDialTimeout    = 5 * time.Second
	defaultWriteTimeout   = 3 * time.Second
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	readLimit             = 1 << 20
	eventBuffer           = 16
)

type Config struct {
	// Address is host:port of the desktop server.
	Address        string
	Path           string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client keeps a WebSocket connection to the desktop server open, redialing
// with exponential backoff, and turns traffic into Events.
type Client struct {
	cfg    Config
	url    string
	log    logger.Logger
	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config, log logger.Logger) (*Client, error) {
	addr, err := NormalizeAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	cfg.Address = addr

	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}

	return &Client{
		cfg:    cfg,
		url:    "ws://" + addr + cfg.Path,
		log:    log,
		events: make(chan Event, eventBuffer),
	}, nil
}

// Events returns the event stream. It is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Address returns the normalized host:port.
func (c *Client) Address() string {
	return c.cfg.Address
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and reconnects until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	for {
		conn, err := c.dial(ctx, b)
		if err != nil {
			// Only a canceled context stops the retry loop.
			return nil
		}
		b.Reset()

		c.setConn(conn)
		c.log.Info().Str("url", c.url).Msg("Connected to server")
		c.emit(ctx, Event{Type: EventConnected, At: time.Now()})

		if err := c.send(ctx, TypeRequestData, nil); err != nil {
			c.log.Debug().Err(err).Msg("Failed to request initial data")
		}

		readErr := c.readLoop(ctx, conn)

		c.setConn(nil)
		// The read side has already failed, so skip the close handshake.
		conn.CloseNow()

		if ctx.Err() != nil {
			select {
			case c.events <- Event{Type: EventDisconnected, Err: ctx.Err(), At: time.Now()}:
			default:
			}
			return nil
		}

		c.log.Warn().Err(readErr).Msg("Disconnected from server")
		c.emit(ctx, Event{Type: EventDisconnected, Err: readErr, At: time.Now()})
	}
}

func (c *Client) dial(ctx context.Context, b backoff.BackOff) (*websocket.Conn, error) {
	var conn *websocket.Conn

	operation := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()

		cn, _, err := websocket.Dial(dialCtx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return errors.New().Wrap(ErrDialFailed, err)
		}
		cn.SetReadLimit(readLimit)
		conn = cn
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Dur("retry_in", wait).Msg("Server unreachable")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return errors.New().Wrap(ErrReadFailed, err)
		}
		if msgType != websocket.MessageText {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug().Err(err).Msg("Dropping undecodable message")
			continue
		}

		switch env.Type {
		case TypeHardwareUpdate:
			c.emit(ctx, Event{Type: EventSnapshot, Payload: env.Data, At: time.Now()})
		default:
			c.log.Debug().Str("type", env.Type).Msg("Ignoring message")
		}
	}
}

// SetFPSSmoothing asks the server to toggle fps smoothing. There is no
// acknowledgement; the new state shows up in later snapshots.
func (c *Client) SetFPSSmoothing(ctx context.Context, enabled bool) error {
	data, err := json.Marshal(SetFPSSmoothingMessage{Enabled: enabled})
	if err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return c.send(ctx, TypeSetFPSSmoothing, data)
}

func (c *Client) send(ctx context.Context, msgType string, data json.RawMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.New().New(ErrNotConnected)
	}

	payload, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		return errors.New().Wrap(ErrWriteFailed, err)
	}
	return nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
