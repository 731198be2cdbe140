package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/cadenza-app/cadenza/internal/errors"
	"github.com/cadenza-app/cadenza/internal/logging"
)

// State is the connection lifecycle state of the push channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	handshakeTimeout = 10 * time.Second
	backoffInitial   = 1 * time.Second
	backoffMax       = 30 * time.Second
)

// Client maintains the persistent push connection and feeds inbound
// events to the merger. Channel failures never affect the change queue
// or the protocol client; the LWW merge layer is independently
// resumable.
type Client struct {
	url    string
	userID string
	token  string
	merger *Merger
	dialer *websocket.Dialer

	mu     gosync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

// NewClient creates a push-channel client. Connect must be called to
// open the channel.
func NewClient(url, userID, token string, merger *Merger) *Client {
	return &Client{
		url:    url,
		userID: userID,
		token:  token,
		merger: merger,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:  StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel. It requires a user identity and a bearer
// token; connecting while already connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.userID == "" || c.token == "" {
		return apperrors.New(apperrors.ErrChannelAuthFailed, "missing user id or auth token")
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(runCtx)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		return apperrors.Wrap(apperrors.ErrChannelClosed, "failed to connect push channel", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	logging.Info("Push channel connected", map[string]interface{}{"url": c.url})

	c.wg.Add(1)
	go c.readLoop(runCtx, conn)
	return nil
}

// Disconnect closes the channel. It is idempotent and safe to call from
// any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.cancel == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.conn = nil
	c.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	logging.Info("Push channel disconnected")
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("X-User-ID", c.userID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop reads and merges events until the context is cancelled,
// reconnecting with capped exponential backoff on transport drops.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			logging.Warn("Push channel read failed, reconnecting",
				map[string]interface{}{"error": err.Error()})
			conn.Close()

			conn = c.reconnect(ctx)
			if conn == nil {
				c.mu.Lock()
				if c.state == StateReconnecting {
					c.state = StateDisconnected
				}
				c.mu.Unlock()
				return
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			logging.Warn("Dropping malformed push event",
				map[string]interface{}{"error": err.Error()})
			continue
		}
		if err := c.merger.HandleEvent(&env); err != nil {
			logging.Error("Failed to merge push event", err,
				map[string]interface{}{"type": env.Type})
		}
	}
}

// reconnect retries the dial with capped exponential backoff until it
// succeeds or the context is cancelled.
func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	c.mu.Lock()
	c.state = StateReconnecting
	c.mu.Unlock()

	backoff := backoffInitial
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		conn, err := c.dial(ctx)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.state = StateConnected
			c.mu.Unlock()
			logging.Info("Push channel reconnected")
			return conn
		}

		logging.Warn("Push channel reconnect failed",
			map[string]interface{}{
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}
