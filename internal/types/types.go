package types

import (
	"time"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile:
		return true
	}
	return false
}

// User is the minimal public profile attached to outbound events.
type User struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type FileDescriptor struct {
	Url  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Message struct {
	Id             string          `json:"id"`
	ConversationId string          `json:"conversation_id"`
	Sender         User            `json:"sender"`
	Kind           MessageKind     `json:"kind"`
	Content        *string         `json:"content"`
	File           *FileDescriptor `json:"file,omitempty"`
	IsRead         bool            `json:"is_read"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Conversation struct {
	Id            string    `json:"id"`
	Kind          string    `json:"kind"`
	Participants  []string  `json:"participants"`
	LastMessageId string    `json:"last_message_id,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
