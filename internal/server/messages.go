package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/types"
)

type Event string

const (
	EventOK              Event = "ok"
	EventError           Event = "error"
	EventMessageNew      Event = "message:new"
	EventTypingStart     Event = "typing:start"
	EventTypingStop      Event = "typing:stop"
	EventMessageRead     Event = "message:read"
	EventUserOnline      Event = "user:online"
	EventUserOffline     Event = "user:offline"
	EventConversationNew Event = "conversation:new"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Send        *Send      `json:"send,omitempty"`
	TypingStart *Typing    `json:"typing_start,omitempty"`
	TypingStop  *Typing    `json:"typing_stop,omitempty"`
	Read        *Read      `json:"read,omitempty"`
	Subscribe   *Subscribe `json:"subscribe,omitempty"`
	Unsubscribe *Subscribe `json:"unsubscribe,omitempty"`
}

type Send struct {
	ConversationId string            `json:"conversation_id"`
	Kind           types.MessageKind `json:"kind,omitempty"`
	Content        string            `json:"content"`
}

type Typing struct {
	ConversationId string `json:"conversation_id"`
}

type Read struct {
	MessageId      string `json:"message_id"`
	ConversationId string `json:"conversation_id,omitempty"`
}

type Subscribe struct {
	ConversationId string `json:"conversation_id"`
}

type ServerMessage struct {
	BaseMessage
	Event        Event               `json:"event"`
	Response     *Response           `json:"response,omitempty"`
	Message      *types.Message      `json:"message,omitempty"`
	Typing       *TypingNotice       `json:"typing,omitempty"`
	Receipt      *Receipt            `json:"receipt,omitempty"`
	Presence     *Presence           `json:"presence,omitempty"`
	Conversation *types.Conversation `json:"conversation,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type TypingNotice struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Username       string `json:"username,omitempty"`
}

type Receipt struct {
	MessageId      string    `json:"message_id"`
	ConversationId string    `json:"conversation_id"`
	UserId         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type Presence struct {
	UserId   string    `json:"user_id"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

func newEvent(event Event) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       event,
	}
}

func NewMessageEvent(msg types.Message) *ServerMessage {
	m := newEvent(EventMessageNew)
	m.Message = &msg
	return m
}

// TypingEvent builds a typing notice. Stop notices carry no username.
func TypingEvent(event Event, user types.User, conversationId string) *ServerMessage {
	m := newEvent(event)
	m.Typing = &TypingNotice{
		ConversationId: conversationId,
		UserId:         user.Id,
	}
	if event == EventTypingStart {
		m.Typing.Username = user.Username
	}
	return m
}

func ReadEvent(marker database.ReadMarker, conversationId string) *ServerMessage {
	m := newEvent(EventMessageRead)
	m.Receipt = &Receipt{
		MessageId:      marker.MessageId,
		ConversationId: conversationId,
		UserId:         marker.UserId,
		ReadAt:         marker.ReadAt,
	}
	return m
}

func PresenceEvent(online bool, user types.User, lastSeen time.Time) *ServerMessage {
	event := EventUserOffline
	if online {
		event = EventUserOnline
	}
	m := newEvent(event)
	m.Presence = &Presence{
		UserId:   user.Id,
		Username: user.Username,
		LastSeen: lastSeen,
	}
	return m
}

func ConversationEvent(conv types.Conversation) *ServerMessage {
	m := newEvent(EventConversationNew)
	m.Conversation = &conv
	return m
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Event: EventOK,
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errorMessage(id, code int, text string) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: EventError,
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrInternalError(id int) *ServerMessage {
	return errorMessage(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errorMessage(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errorMessage(id, http.StatusBadRequest, "invalid message format")
}

func ErrAccessDenied(id int) *ServerMessage {
	return errorMessage(id, http.StatusForbidden, "access denied")
}

func ErrNotFound(id int) *ServerMessage {
	return errorMessage(id, http.StatusNotFound, "not found")
}

// ErrorFor maps a handler error onto the error event sent back to the
// originating connection. Only validation errors expose their text.
func ErrorFor(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return errorMessage(id, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrAccessDenied):
		return ErrAccessDenied(id)
	case errors.Is(err, errs.ErrNotFound):
		return ErrNotFound(id)
	case errors.Is(err, errs.ErrUpload):
		return errorMessage(id, http.StatusBadGateway, "upload failed")
	case errors.Is(err, ErrShuttingDown):
		return ErrServiceUnavailable(id)
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

// ToMessage joins a stored message with its sender's public profile.
func ToMessage(m database.Message, sender types.User) types.Message {
	msg := types.Message{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		Sender:         sender,
		Kind:           types.MessageKind(m.Kind),
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
	if m.File != nil {
		msg.File = &types.FileDescriptor{
			Url:  m.File.Url,
			Name: m.File.Name,
			Size: m.File.Size,
		}
	}
	return msg
}

func ToConversation(c database.Conversation) types.Conversation {
	return types.Conversation{
		Id:            c.Id,
		Kind:          c.Kind,
		Participants:  c.Participants,
		LastMessageId: c.LastMessageId,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}
