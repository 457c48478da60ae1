// Package memory holds in-process stores used by tests and by the dev
// server when no DATABASE_URL is configured.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lalith-99/areachat/internal/models"
)

// ChatStore keeps messages in a slice, append order = chronological.
type ChatStore struct {
	mu   sync.Mutex
	msgs []stored
}

type stored struct {
	companyID models.ID
	msg       models.Message
	private   bool
}

func NewChatStore() *ChatStore {
	return &ChatStore{}
}

func (s *ChatStore) CreateGroupMessage(_ context.Context, companyID models.ID, sender models.Participant, body string) (*models.Message, error) {
	return s.add(companyID, sender, "", body), nil
}

func (s *ChatStore) CreatePrivateMessage(_ context.Context, companyID models.ID, sender models.Participant, recipient models.ID, body string) (*models.Message, error) {
	return s.add(companyID, sender, recipient, body), nil
}

func (s *ChatStore) add(companyID models.ID, sender models.Participant, recipient models.ID, body string) *models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := models.Message{
		ID:          models.ID(uuid.NewString()),
		Sender:      sender,
		Body:        body,
		RecipientID: recipient,
		CreatedAt:   time.Now().UTC(),
	}
	s.msgs = append(s.msgs, stored{
		companyID: companyID,
		msg:       msg,
		private:   !recipient.IsZero(),
	})
	return &msg
}

func (s *ChatStore) GroupHistory(_ context.Context, companyID models.ID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, st := range s.msgs {
		if !st.private && models.SameID(st.companyID, companyID) {
			out = append(out, st.msg)
		}
	}
	return out, nil
}

func (s *ChatStore) PrivateHistory(_ context.Context, companyID, a, b models.ID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for _, st := range s.msgs {
		if !st.private || !models.SameID(st.companyID, companyID) {
			continue
		}
		m := st.msg
		if (models.SameID(m.Sender.ID, a) && models.SameID(m.RecipientID, b)) ||
			(models.SameID(m.Sender.ID, b) && models.SameID(m.RecipientID, a)) {
			out = append(out, m)
		}
	}
	return out, nil
}

// UserStore keeps users in a map keyed by id.
type UserStore struct {
	mu    sync.Mutex
	users map[models.ID]models.User
}

func NewUserStore(seed ...models.User) *UserStore {
	s := &UserStore{users: make(map[models.ID]models.User)}
	for _, u := range seed {
		s.Put(u)
	}
	return s
}

// Put inserts or replaces a user. Ids are assigned when missing.
func (s *UserStore) Put(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = models.ID(uuid.NewString())
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return u
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (s *UserStore) GetByID(_ context.Context, id models.ID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		found := u
		return &found, nil
	}
	return nil, nil
}
