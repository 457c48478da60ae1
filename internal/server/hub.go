package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/auth"
	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/repository"
)

const sendQueueSize = 32

// Hub routes realtime traffic between the connected members of each
// company: message fan-out, presence snapshots and deltas, typing
// relays. One hub serves every company; rooms are partitioned by the
// company id baked into each connection's verified token.
type Hub struct {
	repo     repository.ChatRepository
	presence PresenceRegistry
	logger   *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[models.ID]map[*client]struct{} // companyID -> connections
}

func NewHub(repo repository.ChatRepository, presence PresenceRegistry, logger *zap.Logger) *Hub {
	return &Hub{
		repo:     repo,
		presence: presence,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from a different origin than the
			// chat service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[models.ID]map[*client]struct{}),
	}
}

// client is one live socket connection with its verified identity.
type client struct {
	conn *websocket.Conn
	sctx auth.SessionContext
	send chan event.Frame

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// HandleWS upgrades GET /ws. The credential arrives as the "token" query
// parameter of the handshake; a missing or invalid token is rejected
// before the upgrade, so no socket resource exists for unauthenticated
// callers.
func (h *Hub) HandleWS(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		cl := &client{
			conn: conn,
			sctx: auth.NewSessionContext(claims),
			send: make(chan event.Frame, sendQueueSize),
		}
		h.join(cl)
		go cl.writePump()
		h.readPump(cl)
	}
}

func (h *Hub) join(cl *client) {
	company := cl.sctx.CompanyScope

	h.mu.Lock()
	room := h.clients[company]
	if room == nil {
		room = make(map[*client]struct{})
		h.clients[company] = room
	}
	room[cl] = struct{}{}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := h.presence.Join(ctx, company, cl.sctx.ParticipantID)
	if err != nil {
		h.logger.Error("presence join failed", zap.Error(err))
	}

	// Full snapshot to the joiner, delta to everyone else already there.
	online, err := h.presence.Online(ctx, company)
	if err != nil {
		h.logger.Error("presence list failed", zap.Error(err))
		online = []models.ID{cl.sctx.ParticipantID}
	}
	h.deliver(cl, event.OnlineList, online)
	if first {
		h.broadcast(company, cl, event.UserOnline, event.PresenceDelta{UserID: cl.sctx.ParticipantID})
	}

	h.logger.Info("participant connected",
		zap.String("company", string(company)),
		zap.String("user", string(cl.sctx.ParticipantID)),
	)
}

func (h *Hub) leave(cl *client) {
	company := cl.sctx.CompanyScope

	h.mu.Lock()
	if room := h.clients[company]; room != nil {
		delete(room, cl)
		if len(room) == 0 {
			delete(h.clients, company)
		}
	}
	h.mu.Unlock()

	cl.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	last, err := h.presence.Leave(ctx, company, cl.sctx.ParticipantID)
	if err != nil {
		h.logger.Error("presence leave failed", zap.Error(err))
	}
	if last {
		h.broadcast(company, nil, event.UserOffline, event.PresenceDelta{UserID: cl.sctx.ParticipantID})
	}

	h.logger.Info("participant disconnected",
		zap.String("company", string(company)),
		zap.String("user", string(cl.sctx.ParticipantID)),
	)
}

// readPump consumes frames from one connection until it drops, then
// cleans the client up. Runs on the HTTP handler goroutine.
func (h *Hub) readPump(cl *client) {
	defer h.leave(cl)
	for {
		var f event.Frame
		if err := cl.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				h.logger.Warn("connection read failed",
					zap.String("user", string(cl.sctx.ParticipantID)),
					zap.Error(err),
				)
			}
			return
		}
		h.handleFrame(cl, f)
	}
}

// handleFrame applies one inbound client frame. Malformed frames are
// logged and dropped; a bad payload never kills the connection.
func (h *Hub) handleFrame(cl *client, f event.Frame) {
	switch f.Event {
	case event.SendGroupMessage:
		var p event.GroupMessageSend
		if !h.decode(f, &p) {
			return
		}
		h.groupMessage(cl, p)

	case event.SendPrivateMessage:
		var p event.PrivateMessageSend
		if !h.decode(f, &p) {
			return
		}
		h.privateMessage(cl, p)

	case event.TypingStart:
		h.relayGroupTyping(cl, true)
	case event.TypingStop:
		h.relayGroupTyping(cl, false)

	case event.TypingStartPrivate:
		var p event.TypingSignal
		if !h.decode(f, &p) {
			return
		}
		h.relayPrivateTyping(cl, p.OtherUserID, true)
	case event.TypingStopPrivate:
		var p event.TypingSignal
		if !h.decode(f, &p) {
			return
		}
		h.relayPrivateTyping(cl, p.OtherUserID, false)

	default:
		h.logger.Warn("unknown event, dropping",
			zap.String("event", f.Event),
			zap.String("user", string(cl.sctx.ParticipantID)),
		)
	}
}

func (h *Hub) decode(f event.Frame, v any) bool {
	if err := f.Decode(v); err != nil {
		h.logger.Warn("malformed client frame, dropping", zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) groupMessage(cl *client, p event.GroupMessageSend) {
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := models.Participant{ID: cl.sctx.ParticipantID, Name: cl.sctx.Name}
	msg, err := h.repo.CreateGroupMessage(ctx, cl.sctx.CompanyScope, sender, body)
	if err != nil {
		h.logger.Error("failed to persist group message", zap.Error(err))
		return
	}
	// The sender gets the echo too; clients render from the stream, not
	// from local optimistic state.
	h.broadcast(cl.sctx.CompanyScope, nil, event.NewGroupMessage, msg)
}

func (h *Hub) privateMessage(cl *client, p event.PrivateMessageSend) {
	body := strings.TrimSpace(p.Body)
	if body == "" || p.To.IsZero() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := models.Participant{ID: cl.sctx.ParticipantID, Name: cl.sctx.Name}
	msg, err := h.repo.CreatePrivateMessage(ctx, cl.sctx.CompanyScope, sender, p.To, body)
	if err != nil {
		h.logger.Error("failed to persist private message", zap.Error(err))
		return
	}

	h.deliverToUser(cl.sctx.CompanyScope, cl.sctx.ParticipantID, event.NewPrivateMessage, msg)
	h.deliverToUser(cl.sctx.CompanyScope, p.To, event.NewPrivateMessage, msg)

	// Boss messages additionally land in the recipient's inbox surface.
	if cl.sctx.IsBoss() {
		h.deliverToUser(cl.sctx.CompanyScope, p.To, event.NewBossMessage, msg)
	}
}

func (h *Hub) relayGroupTyping(cl *client, composing bool) {
	name := event.HideTyping
	if composing {
		name = event.DisplayTyping
	}
	notice := event.TypingNotice{
		ChatID: cl.sctx.CompanyScope,
		User:   models.Participant{ID: cl.sctx.ParticipantID, Name: cl.sctx.Name},
	}
	h.broadcast(cl.sctx.CompanyScope, cl, name, notice)
}

func (h *Hub) relayPrivateTyping(cl *client, other models.ID, composing bool) {
	if other.IsZero() {
		return
	}
	name := event.HideTypingPrivate
	if composing {
		name = event.DisplayTypingPrivate
	}
	notice := event.TypingNotice{
		ChatID: cl.sctx.CompanyScope,
		User:   models.Participant{ID: cl.sctx.ParticipantID, Name: cl.sctx.Name},
	}
	h.deliverToUser(cl.sctx.CompanyScope, other, name, notice)
}

// broadcast queues a frame for every company connection except exclude
// (nil to include everyone).
func (h *Hub) broadcast(company models.ID, exclude *client, name string, payload any) {
	f, err := event.NewFrame(name, payload)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients[company]))
	for cl := range h.clients[company] {
		if cl != exclude {
			targets = append(targets, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range targets {
		h.queue(cl, f)
	}
}

// deliverToUser queues a frame for every connection the user holds.
func (h *Hub) deliverToUser(company, userID models.ID, name string, payload any) {
	f, err := event.NewFrame(name, payload)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, 2)
	for cl := range h.clients[company] {
		if models.SameID(cl.sctx.ParticipantID, userID) {
			targets = append(targets, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range targets {
		h.queue(cl, f)
	}
}

func (h *Hub) deliver(cl *client, name string, payload any) {
	f, err := event.NewFrame(name, payload)
	if err != nil {
		h.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	h.queue(cl, f)
}

// queue hands a frame to the client's write pump. A client whose queue
// is full is too far behind to keep; its pump shuts the connection down.
func (h *Hub) queue(cl *client, f event.Frame) {
	defer func() {
		// The send channel closes when the client leaves; a late queue
		// attempt racing that close is dropped, not fatal.
		_ = recover()
	}()
	select {
	case cl.send <- f:
	default:
		h.logger.Warn("client send queue full, closing",
			zap.String("user", string(cl.sctx.ParticipantID)),
		)
		cl.close()
	}
}

// writePump serializes all writes for one connection.
func (c *client) writePump() {
	for f := range c.send {
		if err := c.conn.WriteJSON(f); err != nil {
			c.conn.Close()
			return
		}
	}
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var all []*client
	for _, room := range h.clients {
		for cl := range room {
			all = append(all, cl)
		}
	}
	h.clients = make(map[models.ID]map[*client]struct{})
	h.mu.Unlock()

	for _, cl := range all {
		cl.close()
	}
}
