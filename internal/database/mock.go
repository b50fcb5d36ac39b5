package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRepository) GetUserById(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	args := m.Called(ctx, id, online, lastSeen)
	return args.Error(0)
}
func (m *MockRepository) ResetPresence(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRepository) ListConversationsByParticipant(ctx context.Context, userId string) ([]Conversation, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockRepository) GetConversation(ctx context.Context, id string) (Conversation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) GetDirectConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) CreateDirectConversation(ctx context.Context, id, userA, userB string) (Conversation, bool, error) {
	args := m.Called(ctx, id, userA, userB)
	return args.Get(0).(Conversation), args.Bool(1), args.Error(2)
}
func (m *MockRepository) CreateMessage(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockRepository) UpdateConversationLastMessage(ctx context.Context, conversationId, messageId string, at time.Time) error {
	args := m.Called(ctx, conversationId, messageId, at)
	return args.Error(0)
}
func (m *MockRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) ListMessages(ctx context.Context, conversationId string, before time.Time, limit int) ([]Message, error) {
	args := m.Called(ctx, conversationId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) AddReadMarker(ctx context.Context, marker ReadMarker) (bool, error) {
	args := m.Called(ctx, marker)
	return args.Bool(0), args.Error(1)
}
