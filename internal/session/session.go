// Package session owns one authenticated realtime connection bound to a
// single channel scope. A session exposes fire-and-forget sends, named
// event subscriptions, and teardown; it never reconnects on its own,
// reconnection is the caller's call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
)

var (
	// ErrAuthMissing is returned by Open when no credential is supplied.
	// No connection is attempted in that case.
	ErrAuthMissing = errors.New("session: credential missing")

	// ErrNotConnected is returned by Send on a session whose connection
	// is closed or was never opened. Non-fatal: the event is dropped.
	ErrNotConnected = errors.New("session: not connected")

	// ErrTransportDisconnected is passed to disconnect callbacks when the
	// underlying connection drops out from under the session.
	ErrTransportDisconnected = errors.New("session: transport disconnected")
)

// HandlerFunc receives the raw payload of one inbound event. Handlers for
// a session run one at a time, in arrival order, on the session's delivery
// goroutine, so they never race each other.
type HandlerFunc func(data json.RawMessage)

// Transport is one live bidirectional frame connection.
type Transport interface {
	ReadFrame() (event.Frame, error)
	WriteFrame(event.Frame) error
	Close() error
}

// Dialer establishes a Transport for a channel scope, authenticating with
// the given bearer credential during the handshake.
type Dialer interface {
	DialContext(ctx context.Context, scope models.ChannelScope, credential string) (Transport, error)
}

// Session is one live authenticated connection bound to a channel scope.
// Opening the same scope twice yields two independent connections; callers
// switching chat targets must close the previous session first.
type Session struct {
	scope  models.ChannelScope
	logger *zap.Logger

	mu       sync.Mutex
	tr       Transport
	handlers map[string][]HandlerFunc
	onDrop   []func(error)
	closed   bool
	dropped  bool
	dropErr  error
}

// Open dials a connection for scope authenticated with credential and
// starts the delivery loop. An empty credential fails with ErrAuthMissing
// before any dial happens.
func Open(ctx context.Context, d Dialer, scope models.ChannelScope, credential string, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrAuthMissing
	}
	tr, err := d.DialContext(ctx, scope, credential)
	if err != nil {
		return nil, fmt.Errorf("dial channel %s: %w", scope.Key(), err)
	}

	s := &Session{
		scope:    scope,
		logger:   logger,
		tr:       tr,
		handlers: make(map[string][]HandlerFunc),
	}
	go s.readLoop()
	return s, nil
}

// Scope returns the channel scope this session is bound to.
func (s *Session) Scope() models.ChannelScope { return s.scope }

// On registers a handler for inbound events with the given name. Multiple
// handlers for one name run in registration order.
func (s *Session) On(name string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.handlers[name] = append(s.handlers[name], h)
}

// OnDisconnect registers a callback invoked once if the transport drops
// without Close being called. Registering on a session that already
// dropped invokes the callback immediately: a drop must stay visible no
// matter how it interleaves with registration. Not invoked on explicit
// Close.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.dropped {
		err := s.dropErr
		s.mu.Unlock()
		fn(err)
		return
	}
	s.onDrop = append(s.onDrop, fn)
	s.mu.Unlock()
}

// Send transmits a fire-and-forget event. On a closed or dropped session
// the event is logged and dropped with ErrNotConnected; nothing is retried.
func (s *Session) Send(name string, payload any) error {
	f, err := event.NewFrame(name, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.dropped {
		s.mu.Unlock()
		s.logger.Warn("send on closed session, dropping event",
			zap.String("event", name),
			zap.String("channel", s.scope.Key()),
		)
		return ErrNotConnected
	}
	tr := s.tr
	s.mu.Unlock()

	if err := tr.WriteFrame(f); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

// Close releases the connection and clears all registered handlers.
// Idempotent: closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = nil
	s.onDrop = nil
	tr := s.tr
	s.mu.Unlock()

	return tr.Close()
}

// readLoop is the session's single delivery goroutine. Every inbound
// frame is dispatched to its handlers here, one frame at a time, so
// handler code needs no locking of its own.
func (s *Session) readLoop() {
	for {
		f, err := s.tr.ReadFrame()
		if err != nil {
			s.handleReadError(err)
			return
		}
		s.dispatch(f)
	}
}

func (s *Session) dispatch(f event.Frame) {
	s.mu.Lock()
	hs := s.handlers[f.Event]
	if len(hs) > 0 {
		hs = append([]HandlerFunc(nil), hs...)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(f.Data)
	}
}

func (s *Session) handleReadError(err error) {
	s.mu.Lock()
	if s.closed {
		// Expected: Close tore down the transport under the read loop.
		s.mu.Unlock()
		return
	}
	wrapped := fmt.Errorf("%w: %v", ErrTransportDisconnected, err)
	s.dropped = true
	s.dropErr = wrapped
	drop := s.onDrop
	s.onDrop = nil
	s.mu.Unlock()

	s.logger.Warn("channel connection dropped",
		zap.String("channel", s.scope.Key()),
		zap.Error(err),
	)
	for _, fn := range drop {
		fn(wrapped)
	}
}
