package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ID is an opaque participant/message/company identifier.
//
// The backend emits ids as Mongo ObjectId strings, but older payloads have
// been observed carrying numeric ids. UnmarshalJSON accepts both and
// normalizes to the decimal string form, so id comparison is always a
// plain string comparison (see SameID).
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	// Numeric id: json.Number keeps the exact decimal representation,
	// no float round-trip.
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// SameID reports whether two ids refer to the same entity after
// normalization. Ids that decoded from numeric JSON compare equal to
// their string form.
func SameID(a, b ID) bool {
	return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b)) && !a.IsZero()
}

// Participant is a chat actor. Identity is owned by the auth/profile
// service; messages and presence sets only reference it.
type Participant struct {
	ID   ID     `json:"_id"`
	Name string `json:"nombre"`
}

// Message is one chat entry. Field tags match the backend wire format:
// "de" is the sender, "contenido" the body, "para" the private recipient
// (absent on group messages). ID is server-assigned and may be empty on
// payloads the backend emits before persistence completes.
type Message struct {
	ID          ID          `json:"_id,omitempty"`
	Sender      Participant `json:"de"`
	Body        string      `json:"contenido"`
	RecipientID ID          `json:"para,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// SentBy reports whether the message was authored by the given participant.
func (m Message) SentBy(id ID) bool {
	return SameID(m.Sender.ID, id)
}

// ChannelKind discriminates the two chat surfaces.
type ChannelKind int

const (
	// ChannelGlobal is the company-wide channel: every member of the
	// company may post and read.
	ChannelGlobal ChannelKind = iota
	// ChannelPrivate is a one-to-one channel between two participants.
	ChannelPrivate
)

func (k ChannelKind) String() string {
	if k == ChannelPrivate {
		return "privado"
	}
	return "grupal"
}

// ChannelScope addresses one chat surface. A scope's identity is fully
// determined by its kind and key: two sessions opened for the same key
// observe the same message stream.
type ChannelScope struct {
	Kind      ChannelKind
	CompanyID ID

	// Private pair. LocalID is the participant opening the channel,
	// OtherID the counterpart. The pair is unordered for identity
	// purposes (see Key).
	LocalID ID
	OtherID ID
}

// GlobalScope returns the scope of a company's shared channel.
func GlobalScope(companyID ID) ChannelScope {
	return ChannelScope{Kind: ChannelGlobal, CompanyID: companyID}
}

// PrivateScope returns the scope of the one-to-one channel between
// local and other.
func PrivateScope(companyID, local, other ID) ChannelScope {
	return ChannelScope{Kind: ChannelPrivate, CompanyID: companyID, LocalID: local, OtherID: other}
}

// Key returns the canonical identity of the scope. Private pairs are
// ordered lexicographically so (A,B) and (B,A) map to the same key.
func (s ChannelScope) Key() string {
	if s.Kind == ChannelGlobal {
		return "grupal:" + string(s.CompanyID)
	}
	a, b := string(s.LocalID), string(s.OtherID)
	if b < a {
		a, b = b, a
	}
	return "privado:" + a + ":" + b
}

// Matches reports whether a private message belongs to this scope: the
// sender/recipient pair must equal the scope pair in either direction.
// Always true for the global scope (the backend already fans out group
// messages per company).
func (s ChannelScope) Matches(m Message) bool {
	if s.Kind == ChannelGlobal {
		return true
	}
	return (SameID(m.Sender.ID, s.LocalID) && SameID(m.RecipientID, s.OtherID)) ||
		(SameID(m.Sender.ID, s.OtherID) && SameID(m.RecipientID, s.LocalID))
}

// User is a company member as stored by the backend. PasswordHash is a
// bcrypt hash, never the plaintext.
type User struct {
	ID           ID        `json:"_id"`
	CompanyID    ID        `json:"empresa"`
	Name         string    `json:"nombre"`
	Email        string    `json:"email"`
	Role         string    `json:"rol"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Roles understood by the backend. The boss ("jefe") may hold a global
// session and a private session simultaneously; employees get the global
// channel plus the boss inbox.
const (
	RoleBoss     = "jefe"
	RoleEmployee = "empleado"
)
