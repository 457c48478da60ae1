// Package presence derives the online set and the typing set of a channel
// from inbound events, and emits debounced outbound typing signals from
// local input.
package presence

import (
	"sort"
	"sync"

	"github.com/lalith-99/areachat/internal/models"
)

// Tracker holds the online participants and the typing participants for
// one channel. Both sets are private to the channel: switching the private
// counterpart must discard the tracker and create a fresh one, never
// mutate across the switch.
type Tracker struct {
	localID models.ID

	mu     sync.Mutex
	online map[models.ID]struct{}
	typing []models.Participant
}

func NewTracker(localID models.ID) *Tracker {
	return &Tracker{
		localID: localID,
		online:  make(map[models.ID]struct{}),
	}
}

// ApplySnapshot replaces the online set wholesale. Used once per
// connection, right after the session opens, from the online-list event.
func (t *Tracker) ApplySnapshot(ids []models.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[models.ID]struct{}, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			t.online[id] = struct{}{}
		}
	}
}

// ApplyDelta adds or removes one id from the online set. Adding a present
// id or removing an absent one is a no-op.
func (t *Tracker) ApplyDelta(id models.ID, online bool) {
	if id.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if online {
		t.online[id] = struct{}{}
	} else {
		delete(t.online, id)
	}
}

// ApplyTyping adds the participant to the typing set when composing, at
// most once per participant, and removes it otherwise. Self-originated
// events are ignored so a user never sees their own typing indicator.
func (t *Tracker) ApplyTyping(p models.Participant, composing bool) {
	if p.ID.IsZero() || models.SameID(p.ID, t.localID) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := -1
	for i, cur := range t.typing {
		if models.SameID(cur.ID, p.ID) {
			idx = i
			break
		}
	}
	if composing {
		if idx < 0 {
			t.typing = append(t.typing, p)
		}
		return
	}
	if idx >= 0 {
		t.typing = append(t.typing[:idx], t.typing[idx+1:]...)
	}
}

// IsOnline reports whether the participant is in the online set.
func (t *Tracker) IsOnline(id models.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.online[id]
	return ok
}

// Online returns the online ids, sorted for stable rendering.
func (t *Tracker) Online() []models.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]models.ID, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// OnlineCount returns the size of the online set.
func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.online)
}

// Typing returns the typing participants in the order they started.
func (t *Tracker) Typing() []models.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Participant(nil), t.typing...)
}

// Clear empties both sets. Called when the owning session disconnects.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = make(map[models.ID]struct{})
	t.typing = nil
}
