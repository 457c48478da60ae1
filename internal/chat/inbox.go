package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/event"
	"github.com/lalith-99/areachat/internal/models"
	"github.com/lalith-99/areachat/internal/session"
)

// Inbox collects boss broadcasts addressed to the local user. Messages
// land here from the global session and stay marked unread until the
// consumer acknowledges them.
type Inbox struct {
	localID models.ID

	mu     sync.Mutex
	msgs   []models.Message
	unread int
}

func NewInbox(localID models.ID) *Inbox {
	return &Inbox{localID: localID}
}

// Attach subscribes the inbox to boss messages on the given session.
// Messages addressed to someone else are ignored.
func (i *Inbox) Attach(s *session.Session, logger *zap.Logger) {
	s.On(event.NewBossMessage, func(data json.RawMessage) {
		var m models.Message
		if !decodeInto(logger, event.NewBossMessage, data, &m) {
			return
		}
		if !models.SameID(m.RecipientID, i.localID) {
			return
		}
		i.mu.Lock()
		i.msgs = append(i.msgs, m)
		i.unread++
		i.mu.Unlock()
	})
}

// Messages returns a copy of the inbox contents in arrival order.
func (i *Inbox) Messages() []models.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]models.Message(nil), i.msgs...)
}

// Unread returns the number of messages not yet acknowledged.
func (i *Inbox) Unread() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unread
}

// MarkRead acknowledges everything currently in the inbox.
func (i *Inbox) MarkRead() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.unread = 0
}
