package server

import (
	"context"
	"fmt"
	"time"

	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// ListConversations returns the conversations user participates in, most
// recently active first.
func (cs *ChatServer) ListConversations(ctx context.Context, user types.User) ([]types.Conversation, error) {
	convs, err := cs.db.ListConversationsByParticipant(ctx, user.Id)
	if err != nil {
		return nil, err
	}

	out := make([]types.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, ToConversation(c))
	}
	return out, nil
}

// ListMessages returns one page of history of conversationId in
// chronological order. The page ends just before the before time, or at
// the newest message when before is zero. A zero limit selects
// DefaultHistoryLimit.
func (cs *ChatServer) ListMessages(ctx context.Context, user types.User, conversationId string, before time.Time, limit int) ([]types.Message, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", errs.ErrValidation, MaxHistoryLimit)
	}

	if _, err := cs.conversationFor(ctx, conversationId, user.Id); err != nil {
		return nil, err
	}

	msgs, err := cs.db.ListMessages(ctx, conversationId, before, limit)
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessage(m, types.User{Id: m.SenderId, Username: m.SenderName}))
	}
	return out, nil
}

// GetOrCreateDirect returns the direct conversation between user and
// participantId, creating it if needed. Creation is atomic in the store,
// so concurrent callers for the same pair end up with one conversation,
// and only the creator announces it.
func (cs *ChatServer) GetOrCreateDirect(ctx context.Context, user types.User, participantId string) (types.Conversation, bool, error) {
	if participantId == "" {
		return types.Conversation{}, false, fmt.Errorf("%w: participant_id is required", errs.ErrValidation)
	}
	if participantId == user.Id {
		return types.Conversation{}, false, fmt.Errorf("%w: cannot start a conversation with yourself", errs.ErrValidation)
	}

	if _, err := cs.db.GetUserById(ctx, participantId); err != nil {
		return types.Conversation{}, false, fmt.Errorf("participant: %w", err)
	}

	conv, created, err := cs.db.CreateDirectConversation(ctx, cs.newId(), user.Id, participantId)
	if err != nil {
		return types.Conversation{}, false, err
	}

	out := ToConversation(conv)
	if created {
		cs.NotifyConversationCreated(out)
	}
	return out, created, nil
}

// NotifyConversationCreated pushes conversation:new to the personal channel
// of every participant. Live connections are not subscribed automatically.
func (cs *ChatServer) NotifyConversationCreated(conv types.Conversation) {
	msg := ConversationEvent(conv)
	for _, p := range conv.Participants {
		n := cs.hub.Publish(UserChannel(p), msg, nil)
		cs.log.Debug("conversation announced",
			zap.String("conversation_id", conv.Id),
			zap.String("user_id", p),
			zap.Int("connections", n),
		)
	}
}
