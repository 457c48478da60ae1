package presence

import (
	"testing"

	"github.com/lalith-99/areachat/internal/models"
)

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker("me")
	tr.ApplyDelta("old", true)

	tr.ApplySnapshot([]models.ID{"u1", "u2", ""})

	if tr.OnlineCount() != 2 {
		t.Fatalf("OnlineCount() = %d, want 2", tr.OnlineCount())
	}
	if tr.IsOnline("old") {
		t.Error("snapshot did not replace the prior set")
	}
	if !tr.IsOnline("u1") || !tr.IsOnline("u2") {
		t.Error("snapshot members missing")
	}
}

// The online set must reflect the net effect of any delta sequence:
// duplicate adds and removes are no-ops.
func TestTrackerDeltaIdempotence(t *testing.T) {
	tests := []struct {
		name   string
		deltas []struct {
			id     models.ID
			online bool
		}
		want []models.ID
	}{
		{
			name: "duplicate adds collapse",
			deltas: []struct {
				id     models.ID
				online bool
			}{{"u1", true}, {"u1", true}, {"u1", true}},
			want: []models.ID{"u1"},
		},
		{
			name: "remove absent is a no-op",
			deltas: []struct {
				id     models.ID
				online bool
			}{{"u1", false}, {"u2", true}, {"u1", false}},
			want: []models.ID{"u2"},
		},
		{
			name: "add remove add",
			deltas: []struct {
				id     models.ID
				online bool
			}{{"u1", true}, {"u1", false}, {"u1", true}, {"u2", true}, {"u2", false}},
			want: []models.ID{"u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker("me")
			for _, d := range tt.deltas {
				tr.ApplyDelta(d.id, d.online)
			}
			got := tr.Online()
			if len(got) != len(tt.want) {
				t.Fatalf("Online() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Online() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestTrackerTyping(t *testing.T) {
	tr := NewTracker("me")

	ana := models.Participant{ID: "u1", Name: "Ana"}
	marco := models.Participant{ID: "u2", Name: "Marco"}

	tr.ApplyTyping(ana, true)
	tr.ApplyTyping(ana, true) // at most one entry per participant
	tr.ApplyTyping(marco, true)

	typing := tr.Typing()
	if len(typing) != 2 {
		t.Fatalf("Typing() has %d entries, want 2", len(typing))
	}
	if typing[0].Name != "Ana" || typing[1].Name != "Marco" {
		t.Errorf("Typing() order = %v, want start order", typing)
	}

	tr.ApplyTyping(ana, false)
	tr.ApplyTyping(ana, false) // removing an absent entry is a no-op
	if got := tr.Typing(); len(got) != 1 || got[0].Name != "Marco" {
		t.Errorf("Typing() = %v, want [Marco]", got)
	}
}

func TestTrackerIgnoresSelfTyping(t *testing.T) {
	tr := NewTracker("me")
	tr.ApplyTyping(models.Participant{ID: "me", Name: "Yo"}, true)
	if len(tr.Typing()) != 0 {
		t.Error("self-originated typing event entered the set")
	}
}

func TestTrackerClear(t *testing.T) {
	tr := NewTracker("me")
	tr.ApplySnapshot([]models.ID{"u1"})
	tr.ApplyTyping(models.Participant{ID: "u2"}, true)

	tr.Clear()

	if tr.OnlineCount() != 0 || len(tr.Typing()) != 0 {
		t.Error("Clear left state behind")
	}
}
