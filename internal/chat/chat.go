// Package chat wires the realtime primitives into the two chat surfaces
// the dashboard offers: the company-wide channel and the one-to-one
// private channel. Each surface owns one session, one timeline, and one
// presence/typing tracker; closing the surface discards all of it.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/history"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/session"
)

// ErrEmptyMessage is returned by Send when the body is empty after
// trimming.
var ErrEmptyMessage = errors.New("chat: empty message body")

// Deps are the collaborators a chat surface needs. All of them are
// injected; nothing in this package reaches for globals.
type Deps struct {
	Dialer  session.Dialer
	History *history.Client
	Logger  *zap.Logger
}

// ReconnectPolicy controls optional redial after a transport drop. The
// realtime layer itself never reconnects; surfaces only redial when the
// caller opts in. Short-lived surfaces (a modal chat) typically leave
// this off.
type ReconnectPolicy struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultReconnectPolicy is a bounded exponential backoff: 5 attempts,
// 500ms doubling up to 8s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:     true,
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Delay returns the backoff before the given attempt (1-based).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Options tune a chat surface.
type Options struct {
	// TypingIdle overrides the typing debounce window. Zero keeps the
	// 2s default.
	TypingIdle time.Duration

	// Dedup enables id-based dedup on the timeline.
	Dedup bool

	// Reconnect controls redial after transport drops.
	Reconnect ReconnectPolicy
}

// State is the connection state a surface reports to its consumer.
type State int

const (
	StateConnected State = iota
	StateDisconnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// sleep is swapped out in tests that exercise the redial loop.
var sleep = time.Sleep

// decodeInto unmarshals an event payload, logging instead of failing: a
// malformed inbound event must never take the surface down.
func decodeInto(logger *zap.Logger, name string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("malformed event payload, dropping",
			zap.String("event", name),
			zap.Error(err),
		)
		return false
	}
	return true
}

// seedTimeline runs the history fetch and hands the result to seed. A
// failed fetch degrades to an empty backlog; the channel stays usable.
func seedTimeline(ctx context.Context, logger *zap.Logger, fetch func(context.Context) ([]models.Message, error), seed func([]models.Message)) {
	msgs, err := fetch(ctx)
	if err != nil {
		logger.Warn("seeding empty timeline", zap.Error(err))
		msgs = nil
	}
	seed(msgs)
}
