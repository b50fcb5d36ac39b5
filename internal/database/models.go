package database

import "time"

const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type User struct {
	Id        string
	Username  string
	IsOnline  bool
	LastSeen  time.Time
	CreatedAt time.Time
}

type Conversation struct {
	Id            string
	Kind          string
	Participants  []string
	LastMessageId string
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// HasParticipant reports whether userId is in the participant set.
func (c Conversation) HasParticipant(userId string) bool {
	for _, p := range c.Participants {
		if p == userId {
			return true
		}
	}
	return false
}

type File struct {
	Url  string
	Name string
	Size int64
}

type Message struct {
	Id             string
	ConversationId string
	SenderId       string
	// SenderName is only populated by ListMessages.
	SenderName string
	Kind       string
	Content    *string
	File       *File
	IsRead     bool
	CreatedAt  time.Time
}

type ReadMarker struct {
	MessageId string
	UserId    string
	ReadAt    time.Time
}
