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

// GlobalChat is the company-wide channel surface. Every member of the
// company posts and reads here; boss broadcasts addressed to the local
// user land in the attached inbox.
type GlobalChat struct {
	deps  Deps
	opts  Options
	sctx  auth.SessionContext
	token string
	scope models.ChannelScope

	timeline *timeline.Timeline
	tracker  *presence.Tracker
	typing   *presence.TypingEmitter
	inbox    *Inbox

	onState func(State)
	onMsg   func(models.Message)

	mu     sync.Mutex
	sess   *session.Session
	closed bool
}

// OpenGlobal opens the company channel for the given identity. It dials
// the socket, subscribes the live events, then seeds the timeline from
// the history fetch; messages arriving before the seed are buffered and
// replayed by the timeline.
func OpenGlobal(ctx context.Context, deps Deps, sctx auth.SessionContext, token string, opts Options) (*GlobalChat, error) {
	g := &GlobalChat{
		deps:  deps,
		opts:  opts,
		sctx:  sctx,
		token: token,
		scope: models.GlobalScope(sctx.CompanyScope),
		inbox: NewInbox(sctx.ParticipantID),
	}
	if err := g.connect(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// connect builds fresh derived state and brings up one session for it.
// Also the redial path: reconnection starts over with a clean timeline
// and tracker and a new seed.
func (g *GlobalChat) connect(ctx context.Context) error {
	var tlOpts []timeline.Option
	if g.opts.Dedup {
		tlOpts = append(tlOpts, timeline.WithDedup())
	}
	tl := timeline.New(g.sctx.ParticipantID, tlOpts...)
	tr := presence.NewTracker(g.sctx.ParticipantID)

	sess, err := session.Open(ctx, g.deps.Dialer, g.scope, g.token, g.deps.Logger)
	if err != nil {
		return err
	}

	ty := presence.NewTypingEmitter(func(composing bool) {
		name := event.TypingStop
		if composing {
			name = event.TypingStart
		}
		_ = sess.Send(name, event.TypingSignal{
			ChatID:   g.sctx.CompanyScope,
			ChatType: event.ChatTypeGroup,
		})
	}, presence.WithIdleTimeout(g.opts.TypingIdle))

	sess.On(event.NewGroupMessage, func(data json.RawMessage) {
		var m models.Message
		if !decodeInto(g.deps.Logger, event.NewGroupMessage, data, &m) {
			return
		}
		tl.Append(m)
		g.notifyMessage(m)
	})
	sess.On(event.OnlineList, func(data json.RawMessage) {
		var ids []models.ID
		if decodeInto(g.deps.Logger, event.OnlineList, data, &ids) {
			tr.ApplySnapshot(ids)
		}
	})
	sess.On(event.UserOnline, func(data json.RawMessage) {
		var d event.PresenceDelta
		if decodeInto(g.deps.Logger, event.UserOnline, data, &d) {
			tr.ApplyDelta(d.UserID, true)
		}
	})
	sess.On(event.UserOffline, func(data json.RawMessage) {
		var d event.PresenceDelta
		if decodeInto(g.deps.Logger, event.UserOffline, data, &d) {
			tr.ApplyDelta(d.UserID, false)
		}
	})
	sess.On(event.DisplayTyping, func(data json.RawMessage) {
		var n event.TypingNotice
		if decodeInto(g.deps.Logger, event.DisplayTyping, data, &n) {
			tr.ApplyTyping(n.User, true)
		}
	})
	sess.On(event.HideTyping, func(data json.RawMessage) {
		var n event.TypingNotice
		if decodeInto(g.deps.Logger, event.HideTyping, data, &n) {
			tr.ApplyTyping(n.User, false)
		}
	})
	g.inbox.Attach(sess, g.deps.Logger)

	g.mu.Lock()
	if g.closed {
		// Close won the race against this (re)connect: tear the fresh
		// session down instead of leaking it.
		g.mu.Unlock()
		ty.Stop()
		return sess.Close()
	}
	g.sess = sess
	g.timeline = tl
	g.tracker = tr
	g.typing = ty
	g.mu.Unlock()

	// Registered only after the surface state above is installed: the
	// callback may fire immediately when the transport dropped during
	// setup, and handleDrop needs the typing emitter in place.
	sess.OnDisconnect(func(err error) {
		tr.Clear()
		g.handleDrop()
	})

	seedTimeline(ctx, g.deps.Logger, func(ctx context.Context) ([]models.Message, error) {
		return g.deps.History.Global(ctx, g.token)
	}, tl.Seed)

	g.notify(StateConnected)
	return nil
}

// OnStateChange registers a callback for connection state transitions so
// the consumer can show a reconnect affordance. One callback; last wins.
func (g *GlobalChat) OnStateChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onState = fn
}

// OnMessage registers a callback invoked for every live message after it
// lands on the timeline. Runs on the session delivery goroutine; keep it
// quick.
func (g *GlobalChat) OnMessage(fn func(models.Message)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onMsg = fn
}

func (g *GlobalChat) notifyMessage(m models.Message) {
	g.mu.Lock()
	fn := g.onMsg
	g.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func (g *GlobalChat) notify(s State) {
	g.mu.Lock()
	fn := g.onState
	g.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (g *GlobalChat) handleDrop() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.typing.Stop()
	g.mu.Unlock()

	if !g.opts.Reconnect.Enabled {
		g.notify(StateDisconnected)
		return
	}
	g.notify(StateReconnecting)
	go g.redial()
}

func (g *GlobalChat) redial() {
	p := g.opts.Reconnect
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		sleep(p.Delay(attempt))

		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return
		}
		g.mu.Unlock()

		err := g.connect(context.Background())
		if err == nil {
			return
		}
		g.deps.Logger.Warn("reconnect attempt failed",
			zap.String("channel", g.scope.Key()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	g.notify(StateDisconnected)
}

// Timeline returns the current message log.
func (g *GlobalChat) Timeline() *timeline.Timeline {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeline
}

// Tracker returns the current presence/typing view.
func (g *GlobalChat) Tracker() *presence.Tracker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker
}

// Inbox returns the boss-message inbox for the local user.
func (g *GlobalChat) Inbox() *Inbox { return g.inbox }

// Input reports a local input change and drives the typing signals.
func (g *GlobalChat) Input(text string) {
	g.mu.Lock()
	ty := g.typing
	g.mu.Unlock()
	ty.InputChanged(strings.TrimSpace(text) != "")
}

// Send posts a message to the company channel. The typing indicator is
// stopped first; the send itself is fire-and-forget. The local echo comes
// back as a live event, not from here.
func (g *GlobalChat) Send(text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return ErrEmptyMessage
	}

	g.mu.Lock()
	sess, ty := g.sess, g.typing
	g.mu.Unlock()

	ty.MessageSent()
	return sess.Send(event.SendGroupMessage, event.GroupMessageSend{Body: body})
}

// Close tears the surface down: typing timer cancelled, session closed,
// derived state discarded. Idempotent.
func (g *GlobalChat) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	sess, ty, tr, tl := g.sess, g.typing, g.tracker, g.timeline
	g.mu.Unlock()

	ty.Stop()
	err := sess.Close()
	tr.Clear()
	tl.Clear()
	return err
}
