package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/auth"
	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/presence"
	"github.com/lalith-99/areachat/internal/session"
	"github.com/lalith-99/areachat/internal/timeline"
)

// PrivateChat is the one-to-one surface between the local user and a
// chosen counterpart. Switching the counterpart closes the session and
// recreates timeline, tracker, and typing emitter from scratch; state
// never bleeds from one counterpart's view into another's.
type PrivateChat struct {
	deps  Deps
	opts  Options
	sctx  auth.SessionContext
	token string

	mu       sync.Mutex
	onMsg    func(models.Message)
	onState  func(State)
	other    models.ID
	scope    models.ChannelScope
	sess     *session.Session
	timeline *timeline.Timeline
	tracker  *presence.Tracker
	typing   *presence.TypingEmitter
	closed   bool
}

// OpenPrivate opens the private channel between the local identity and
// other.
func OpenPrivate(ctx context.Context, deps Deps, sctx auth.SessionContext, token string, other models.ID, opts Options) (*PrivateChat, error) {
	p := &PrivateChat{
		deps:  deps,
		opts:  opts,
		sctx:  sctx,
		token: token,
	}
	if err := p.connect(ctx, other); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PrivateChat) connect(ctx context.Context, other models.ID) error {
	scope := models.PrivateScope(p.sctx.CompanyScope, p.sctx.ParticipantID, other)

	var tlOpts []timeline.Option
	if p.opts.Dedup {
		tlOpts = append(tlOpts, timeline.WithDedup())
	}
	tl := timeline.New(p.sctx.ParticipantID, tlOpts...)
	tr := presence.NewTracker(p.sctx.ParticipantID)

	sess, err := session.Open(ctx, p.deps.Dialer, scope, p.token, p.deps.Logger)
	if err != nil {
		return err
	}

	ty := presence.NewTypingEmitter(func(composing bool) {
		name := event.TypingStopPrivate
		if composing {
			name = event.TypingStartPrivate
		}
		_ = sess.Send(name, event.TypingSignal{
			ChatID:      p.sctx.CompanyScope,
			OtherUserID: other,
		})
	}, presence.WithIdleTimeout(p.opts.TypingIdle))

	sess.On(event.NewPrivateMessage, func(data json.RawMessage) {
		var m models.Message
		if !decodeInto(p.deps.Logger, event.NewPrivateMessage, data, &m) {
			return
		}
		// Only the open pair, in either direction. Traffic for another
		// counterpart is not ours.
		if scope.Matches(m) {
			tl.Append(m)
			p.notifyMessage(m)
		}
	})
	sess.On(event.OnlineList, func(data json.RawMessage) {
		var ids []models.ID
		if decodeInto(p.deps.Logger, event.OnlineList, data, &ids) {
			tr.ApplySnapshot(ids)
		}
	})
	sess.On(event.UserOnline, func(data json.RawMessage) {
		var d event.PresenceDelta
		if decodeInto(p.deps.Logger, event.UserOnline, data, &d) {
			tr.ApplyDelta(d.UserID, true)
		}
	})
	sess.On(event.UserOffline, func(data json.RawMessage) {
		var d event.PresenceDelta
		if decodeInto(p.deps.Logger, event.UserOffline, data, &d) {
			tr.ApplyDelta(d.UserID, false)
		}
	})
	sess.On(event.DisplayTypingPrivate, func(data json.RawMessage) {
		var n event.TypingNotice
		if decodeInto(p.deps.Logger, event.DisplayTypingPrivate, data, &n) &&
			models.SameID(n.User.ID, other) {
			tr.ApplyTyping(n.User, true)
		}
	})
	sess.On(event.HideTypingPrivate, func(data json.RawMessage) {
		var n event.TypingNotice
		if decodeInto(p.deps.Logger, event.HideTypingPrivate, data, &n) {
			tr.ApplyTyping(n.User, false)
		}
	})

	p.mu.Lock()
	if p.closed {
		// Close won the race against this (re)connect: tear the fresh
		// session down instead of leaking it.
		p.mu.Unlock()
		ty.Stop()
		return sess.Close()
	}
	p.other = other
	p.scope = scope
	p.sess = sess
	p.timeline = tl
	p.tracker = tr
	p.typing = ty
	p.mu.Unlock()

	// Registered only after the surface state above is installed: the
	// callback may fire immediately when the transport dropped during
	// setup, and handleDrop needs the typing emitter in place.
	sess.OnDisconnect(func(err error) {
		tr.Clear()
		p.handleDrop()
	})

	seedTimeline(ctx, p.deps.Logger, func(ctx context.Context) ([]models.Message, error) {
		return p.deps.History.Private(ctx, p.token, other)
	}, tl.Seed)

	p.notify(StateConnected)
	return nil
}

// OnStateChange registers a callback for connection state transitions so
// the consumer can show a reconnect affordance. One callback; last wins.
func (p *PrivateChat) OnStateChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *PrivateChat) notify(s State) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (p *PrivateChat) handleDrop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.typing.Stop()
	p.mu.Unlock()

	if !p.opts.Reconnect.Enabled {
		p.notify(StateDisconnected)
		return
	}
	p.notify(StateReconnecting)
	go p.redial()
}

// redial reconnects to whoever the surface targets at each attempt, so a
// reconnect that lands after a counterpart switch follows the switch.
func (p *PrivateChat) redial() {
	pol := p.opts.Reconnect
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		sleep(pol.Delay(attempt))

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		other := p.other
		p.mu.Unlock()

		err := p.connect(context.Background(), other)
		if err == nil {
			return
		}
		p.deps.Logger.Warn("reconnect attempt failed",
			zap.String("counterpart", string(other)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	p.notify(StateDisconnected)
}

// SwitchCounterpart retargets the surface at a different participant.
// The previous session is closed and every piece of derived state is
// rebuilt before any event for the new counterpart is processed.
func (p *PrivateChat) SwitchCounterpart(ctx context.Context, other models.ID) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return session.ErrNotConnected
	}
	prev, prevTyping := p.sess, p.typing
	p.mu.Unlock()

	prevTyping.Stop()
	if err := prev.Close(); err != nil {
		p.deps.Logger.Warn("closing previous counterpart session", zap.Error(err))
	}
	return p.connect(ctx, other)
}

// OnMessage registers a callback invoked for every live message after it
// lands on the timeline. Runs on the session delivery goroutine.
func (p *PrivateChat) OnMessage(fn func(models.Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onMsg = fn
}

func (p *PrivateChat) notifyMessage(m models.Message) {
	p.mu.Lock()
	fn := p.onMsg
	p.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

// Counterpart returns the participant this surface currently targets.
func (p *PrivateChat) Counterpart() models.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.other
}

// Timeline returns the current message log.
func (p *PrivateChat) Timeline() *timeline.Timeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeline
}

// Tracker returns the current presence/typing view.
func (p *PrivateChat) Tracker() *presence.Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker
}

// CounterpartOnline reports whether the targeted participant is online.
func (p *PrivateChat) CounterpartOnline() bool {
	p.mu.Lock()
	tr, other := p.tracker, p.other
	p.mu.Unlock()
	return tr.IsOnline(other)
}

// Input reports a local input change and drives the typing signals.
func (p *PrivateChat) Input(text string) {
	p.mu.Lock()
	ty := p.typing
	p.mu.Unlock()
	ty.InputChanged(strings.TrimSpace(text) != "")
}

// Send posts a message to the counterpart. Fire-and-forget; the echo
// comes back as a live event.
func (p *PrivateChat) Send(text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return ErrEmptyMessage
	}

	p.mu.Lock()
	sess, ty, other := p.sess, p.typing, p.other
	p.mu.Unlock()

	ty.MessageSent()
	return sess.Send(event.SendPrivateMessage, event.PrivateMessageSend{Body: body, To: other})
}

// Close tears the surface down. Idempotent.
func (p *PrivateChat) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sess, ty, tr, tl := p.sess, p.typing, p.tracker, p.timeline
	p.mu.Unlock()

	ty.Stop()
	err := sess.Close()
	tr.Clear()
	tl.Clear()
	return err
}
