package database

import (
	"context"
	"time"
)

type Repository interface {
	Ping(ctx context.Context) error
	GetUserById(ctx context.Context, id string) (User, error)
	SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
	ResetPresence(ctx context.Context) error
	ListConversationsByParticipant(ctx context.Context, userId string) ([]Conversation, error)
	GetConversation(ctx context.Context, id string) (Conversation, error)
	GetDirectConversation(ctx context.Context, userA, userB string) (Conversation, error)
	CreateDirectConversation(ctx context.Context, id, userA, userB string) (Conversation, bool, error)
	CreateMessage(ctx context.Context, msg Message) error
	UpdateConversationLastMessage(ctx context.Context, conversationId, messageId string, at time.Time) error
	GetMessage(ctx context.Context, id string) (Message, error)
	ListMessages(ctx context.Context, conversationId string, before time.Time, limit int) ([]Message, error)
	AddReadMarker(ctx context.Context, marker ReadMarker) (bool, error)
}
