package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
)

// WebsocketDialer connects to the backend's realtime endpoint. The bearer
// credential travels in the handshake URL as the "token" query parameter,
// never as an HTTP header. Transport is plain websocket only, no fallback
// negotiation.
type WebsocketDialer struct {
	// URL of the socket endpoint, e.g. "ws://host:8081/ws".
	URL string

	// HandshakeTimeout bounds the dial. Zero means 10s.
	HandshakeTimeout time.Duration
}

func NewWebsocketDialer(rawURL string) *WebsocketDialer {
	return &WebsocketDialer{URL: rawURL}
}

func (d *WebsocketDialer) DialContext(ctx context.Context, scope models.ChannelScope, credential string) (Transport, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("token", credential)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsTransport{conn: conn}, nil
}

// wsTransport wraps one gorilla connection. Reads happen from the single
// session delivery goroutine; writes are serialized with a mutex because
// Send may be called from any goroutine.
type wsTransport struct {
	conn *websocket.Conn

	wmu sync.Mutex
}

func (t *wsTransport) ReadFrame() (event.Frame, error) {
	var f event.Frame
	if err := t.conn.ReadJSON(&f); err != nil {
		return event.Frame{}, err
	}
	return f, nil
}

func (t *wsTransport) WriteFrame(f event.Frame) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return t.conn.WriteJSON(f)
}

func (t *wsTransport) Close() error {
	t.wmu.Lock()
	// Best effort: tell the peer this is a normal close before tearing
	// down the TCP side.
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.wmu.Unlock()
	return t.conn.Close()
}
