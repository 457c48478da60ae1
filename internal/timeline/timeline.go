// Package timeline maintains the ordered, append-only message log of one
// open channel: seeded once from the history fetch, extended by live
// events, discarded when the channel closes.
package timeline

import (
	"sync"

	"github.com/lalith-99/areachat/internal/models"
)

// Timeline is one channel's message log.
//
// Live events may arrive while the history fetch is still in flight.
// Until Seed runs, Append parks messages in a side buffer; Seed installs
// the history, filters the buffer for entries the history already covers,
// and replays the rest in arrival order. That keeps the seeded history
// first and loses nothing, whichever side wins the race.
//
// Messages are kept exactly in the order given: history verbatim, then
// appends in call order. The timeline never re-sorts.
type Timeline struct {
	localID models.ID
	dedup   bool

	mu      sync.Mutex
	msgs    []models.Message
	pending []models.Message
	seeded  bool
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithDedup drops appended messages whose id is already present. Off by
// default: ids are not guaranteed on every payload, and the backend is
// not known to redeliver.
func WithDedup() Option {
	return func(t *Timeline) { t.dedup = true }
}

func New(localID models.ID, opts ...Option) *Timeline {
	t := &Timeline{localID: localID}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seed installs the fetched history verbatim, then replays any messages
// that arrived live before the fetch resolved, skipping ones the history
// already contains. Called once per channel open; a failed fetch seeds
// with nil and the channel stays usable.
func (t *Timeline) Seed(history []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.msgs = append([]models.Message(nil), history...)
	t.seeded = true

	for _, m := range t.pending {
		if containsMessage(t.msgs, m) {
			continue
		}
		t.msgs = append(t.msgs, m)
	}
	t.pending = nil
}

// Append adds one live message to the end of the log. Before Seed it goes
// to the side buffer instead.
func (t *Timeline) Append(m models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.seeded {
		t.pending = append(t.pending, m)
		return
	}
	if t.dedup && !m.ID.IsZero() && containsMessage(t.msgs, m) {
		return
	}
	t.msgs = append(t.msgs, m)
}

// Clear empties the log and the buffer. Used on channel close and when
// the private counterpart switches.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = nil
	t.pending = nil
	t.seeded = false
}

// Messages returns a copy of the log in order.
func (t *Timeline) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Message(nil), t.msgs...)
}

// Len returns the number of messages in the log, excluding any still
// buffered ahead of Seed.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

// BelongsToLocalUser classifies a message as self-authored. Sender ids
// are compared as normalized strings, so numeric and string forms of the
// same id classify alike.
func (t *Timeline) BelongsToLocalUser(m models.Message) bool {
	return m.SentBy(t.localID)
}

// containsMessage matches by id when both sides carry one, else by the
// sender+timestamp+body tuple.
func containsMessage(msgs []models.Message, m models.Message) bool {
	for _, cur := range msgs {
		if !m.ID.IsZero() && !cur.ID.IsZero() {
			if models.SameID(cur.ID, m.ID) {
				return true
			}
			continue
		}
		if models.SameID(cur.Sender.ID, m.Sender.ID) &&
			cur.CreatedAt.Equal(m.CreatedAt) &&
			cur.Body == m.Body {
			return true
		}
	}
	return false
}
