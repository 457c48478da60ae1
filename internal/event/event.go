// Package event defines the wire contract shared by the realtime client
// and the backend: event names, payload shapes, and the JSON frame that
// carries them over the socket.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/lalith-99/areachat/internal/models"
)

// Inbound event names (server -> client).
const (
	NewGroupMessage   = "nuevo-mensaje-grupal"
	NewPrivateMessage = "nuevo-mensaje-privado"
	NewBossMessage    = "nuevo-mensaje-del-jefe"

	OnlineList  = "lista-usuarios-online"
	UserOnline  = "usuario-online"
	UserOffline = "usuario-offline"

	DisplayTyping        = "display-typing"
	HideTyping           = "hide-typing"
	DisplayTypingPrivate = "display-typing-privado"
	HideTypingPrivate    = "hide-typing-privado"
)

// Outbound event names (client -> server).
const (
	SendGroupMessage   = "mensaje-grupal"
	SendPrivateMessage = "mensaje-privado"

	TypingStart        = "typing-start"
	TypingStop         = "typing-stop"
	TypingStartPrivate = "typing-start-privado"
	TypingStopPrivate  = "typing-stop-privado"
)

// ChatTypeGroup is the chatType discriminator carried by global typing
// signals.
const ChatTypeGroup = "grupal"

// Frame is the envelope for every event crossing the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a frame for the given event name.
// A nil payload produces a frame with no data.
func NewFrame(name string, payload any) (Frame, error) {
	f := Frame{Event: name}
	if payload == nil {
		return f, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	f.Data = data
	return f, nil
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("decode %s payload: empty data", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Event, err)
	}
	return nil
}

// PresenceDelta is the payload of usuario-online / usuario-offline.
type PresenceDelta struct {
	UserID models.ID `json:"userId"`
}

// TypingNotice is the payload of display-typing / hide-typing and their
// -privado variants.
type TypingNotice struct {
	ChatID models.ID          `json:"chatId"`
	User   models.Participant `json:"user"`
}

// GroupMessageSend is the payload of mensaje-grupal.
type GroupMessageSend struct {
	Body string `json:"contenido"`
}

// PrivateMessageSend is the payload of mensaje-privado.
type PrivateMessageSend struct {
	Body string    `json:"contenido"`
	To   models.ID `json:"para"`
}

// TypingSignal is the payload of the outbound typing-start/stop family.
// Global signals carry ChatType, private ones OtherUserID.
type TypingSignal struct {
	ChatID      models.ID `json:"chatId"`
	ChatType    string    `json:"chatType,omitempty"`
	OtherUserID models.ID `json:"otroUsuarioId,omitempty"`
}
