package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
	"go.uber.org/zap"
)

// handleTyping forwards a typing signal to the other subscribers of the
// conversation channel. Being subscribed already implies membership.
func (cs *ChatServer) handleTyping(c *Client, id int, event Event, conversationId string) {
	channel := ConversationChannel(conversationId)
	if conversationId == "" || !cs.hub.Subscribed(c, channel) {
		c.queueMessage(ErrAccessDenied(id))
		return
	}

	cs.hub.Publish(channel, TypingEvent(event, c.user, conversationId), c)
}

// MarkRead appends a read marker for reader and, when one was appended,
// publishes the receipt to the channel of the message's conversation.
// It reports whether a marker was appended.
func (cs *ChatServer) MarkRead(ctx context.Context, reader types.User, messageId string) (bool, error) {
	if messageId == "" {
		return false, fmt.Errorf("%w: message_id is required", errs.ErrValidation)
	}

	msg, err := cs.db.GetMessage(ctx, messageId)
	if err != nil {
		return false, err
	}

	if _, err := cs.conversationFor(ctx, msg.ConversationId, reader.Id); err != nil {
		return false, err
	}

	marker := database.ReadMarker{
		MessageId: msg.Id,
		UserId:    reader.Id,
		ReadAt:    cs.now(),
	}
	added, err := cs.db.AddReadMarker(ctx, marker)
	if err != nil {
		return false, err
	}
	if !added {
		return false, nil
	}

	cs.hub.Publish(ConversationChannel(msg.ConversationId), ReadEvent(marker, msg.ConversationId), nil)
	cs.stats.Incr(stats.NumReadReceipts)
	return true, nil
}

func (cs *ChatServer) handleRead(ctx context.Context, c *Client, msg *ClientMessage) {
	added, err := cs.MarkRead(ctx, c.user, msg.Read.MessageId)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.log.Info("read receipt for unknown message dropped", zap.String("message_id", msg.Read.MessageId))
			return
		}
		c.log.Info("read receipt rejected", zap.String("message_id", msg.Read.MessageId), zap.Error(err))
		c.queueMessage(ErrorFor(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"added": added}))
}

// Subscribe adds c to the channel of a conversation its user participates
// in. Clients use it after a conversation:new notice.
func (cs *ChatServer) Subscribe(ctx context.Context, c *Client, conversationId string) error {
	conv, err := cs.conversationFor(ctx, conversationId, c.user.Id)
	if err != nil {
		return err
	}

	cs.hub.Subscribe(c, ConversationChannel(conv.Id))
	return nil
}

func (cs *ChatServer) handleSubscribe(ctx context.Context, c *Client, msg *ClientMessage) {
	if err := cs.Subscribe(ctx, c, msg.Subscribe.ConversationId); err != nil {
		c.log.Info("subscribe rejected", zap.String("conversation_id", msg.Subscribe.ConversationId), zap.Error(err))
		c.queueMessage(ErrorFor(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"conversation_id": msg.Subscribe.ConversationId}))
}

// handleUnsubscribe stops live delivery of a conversation to c. Membership
// is unchanged and every other connection of the user keeps receiving.
func (cs *ChatServer) handleUnsubscribe(c *Client, msg *ClientMessage) {
	conversationId := msg.Unsubscribe.ConversationId
	if conversationId == "" {
		c.queueMessage(ErrorFor(msg.Id, fmt.Errorf("%w: conversation_id is required", errs.ErrValidation)))
		return
	}

	removed := cs.hub.Unsubscribe(c, ConversationChannel(conversationId))
	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"conversation_id": conversationId,
		"removed":         removed,
	}))
}
