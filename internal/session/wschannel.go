package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xaenox/command-center/internal/models"
	"github.com/xaenox/command-center/internal/realtime"
)

// WSDialer subscribes to the server's realtime endpoint over WebSocket.
type WSDialer struct {
	baseURL string
}

// NewWSDialer takes the server's HTTP base URL; the scheme is rewritten
// for the socket.
func NewWSDialer(baseURL string) *WSDialer {
	return &WSDialer{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *WSDialer) Dial(ctx context.Context, threadID string) (Channel, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing base URL: %v", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "thread=" + url.QueryEscape(threadID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error dialing realtime channel: %w", err)
	}

	ch := &wsChannel{
		conn:   conn,
		events: make(chan models.Message, 16),
		errs:   make(chan error, 1),
	}
	go ch.readLoop()
	return ch, nil
}

type wsChannel struct {
	conn   *websocket.Conn
	events chan models.Message
	errs   chan error
}

func (c *wsChannel) Events() <-chan models.Message { return c.events }
func (c *wsChannel) Errors() <-chan error          { return c.errs }

func (c *wsChannel) Close() error {
	return c.conn.Close()
}

func (c *wsChannel) readLoop() {
	defer close(c.events)
	for {
		var event realtime.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			select {
			case c.errs <- err:
			default:
			}
			return
		}
		if event.Type == realtime.EventMessageInsert && event.Message != nil {
			c.events <- *event.Message
		}
	}
}
