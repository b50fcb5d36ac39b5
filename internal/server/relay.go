package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/types"
	"go.uber.org/zap"
)

const (
	MaxContentLength = 4096
	MaxUploadSize    = 10 << 20
)

func validateMessage(kind types.MessageKind, content *string, file *types.FileDescriptor) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown message kind %q", errs.ErrValidation, kind)
	}

	if kind == types.KindText {
		if file != nil {
			return fmt.Errorf("%w: text message cannot carry a file", errs.ErrValidation)
		}
		if content == nil || strings.TrimSpace(*content) == "" {
			return fmt.Errorf("%w: message content is required", errs.ErrValidation)
		}
		if len(*content) > MaxContentLength {
			return fmt.Errorf("%w: message content exceeds %d bytes", errs.ErrValidation, MaxContentLength)
		}
		if !utf8.ValidString(*content) {
			return fmt.Errorf("%w: message content is not valid UTF-8", errs.ErrValidation)
		}
		if strings.ContainsRune(*content, 0) {
			return fmt.Errorf("%w: message content contains a NUL character", errs.ErrValidation)
		}
		return nil
	}

	if file == nil || file.Url == "" {
		return fmt.Errorf("%w: %s message requires a file", errs.ErrValidation, kind)
	}
	return nil
}

// conversationFor loads conversationId and checks that userId participates.
func (cs *ChatServer) conversationFor(ctx context.Context, conversationId, userId string) (database.Conversation, error) {
	if conversationId == "" {
		return database.Conversation{}, fmt.Errorf("%w: conversation_id is required", errs.ErrValidation)
	}

	conv, err := cs.db.GetConversation(ctx, conversationId)
	if err != nil {
		return database.Conversation{}, err
	}

	if !conv.HasParticipant(userId) {
		return database.Conversation{}, fmt.Errorf("%w: user %q in conversation %q", errs.ErrAccessDenied, userId, conversationId)
	}

	return conv, nil
}

// SendMessage persists a message from sender and then publishes it to the
// conversation channel. Nothing is published unless the insert succeeded.
func (cs *ChatServer) SendMessage(ctx context.Context, sender types.User, conversationId string, kind types.MessageKind, content *string, file *types.FileDescriptor) (types.Message, error) {
	if err := validateMessage(kind, content, file); err != nil {
		return types.Message{}, err
	}

	conv, err := cs.conversationFor(ctx, conversationId, sender.Id)
	if err != nil {
		return types.Message{}, err
	}

	return cs.relay(ctx, sender, conv, kind, content, file)
}

func (cs *ChatServer) relay(ctx context.Context, sender types.User, conv database.Conversation, kind types.MessageKind, content *string, file *types.FileDescriptor) (types.Message, error) {
	msg := database.Message{
		Id:             cs.newId(),
		ConversationId: conv.Id,
		SenderId:       sender.Id,
		Kind:           string(kind),
		Content:        content,
		CreatedAt:      cs.now(),
	}
	if file != nil {
		msg.File = &database.File{
			Url:  file.Url,
			Name: file.Name,
			Size: file.Size,
		}
	}

	if err := cs.db.CreateMessage(ctx, msg); err != nil {
		return types.Message{}, err
	}

	// the message stands even if the summary is left stale
	if err := cs.db.UpdateConversationLastMessage(ctx, conv.Id, msg.Id, msg.CreatedAt); err != nil {
		cs.log.Error("update conversation summary",
			zap.String("conversation_id", conv.Id),
			zap.String("message_id", msg.Id),
			zap.Error(err),
		)
	}

	out := ToMessage(msg, sender)
	n := cs.hub.Publish(ConversationChannel(conv.Id), NewMessageEvent(out), nil)
	cs.stats.Incr(stats.NumMessagesRelayed)
	cs.log.Debug("message relayed",
		zap.String("conversation_id", conv.Id),
		zap.String("message_id", msg.Id),
		zap.Int("recipients", n),
	)

	return out, nil
}

// SendFile uploads r to the object store and relays the resulting file
// message. image/* content types become image messages.
func (cs *ChatServer) SendFile(ctx context.Context, sender types.User, conversationId, name, contentType string, size int64, r io.Reader) (types.Message, error) {
	if size > MaxUploadSize {
		return types.Message{}, fmt.Errorf("%w: file exceeds %d bytes", errs.ErrValidation, MaxUploadSize)
	}

	conv, err := cs.conversationFor(ctx, conversationId, sender.Id)
	if err != nil {
		return types.Message{}, err
	}

	obj, err := cs.objects.Upload(ctx, name, contentType, io.LimitReader(r, MaxUploadSize))
	if err != nil {
		if !errors.Is(err, errs.ErrUpload) {
			err = fmt.Errorf("%w: %w", errs.ErrUpload, err)
		}
		return types.Message{}, err
	}

	kind := types.KindFile
	content := &obj.Name
	if strings.HasPrefix(contentType, "image/") {
		kind = types.KindImage
		content = nil
	}

	return cs.relay(ctx, sender, conv, kind, content, &types.FileDescriptor{
		Url:  obj.Url,
		Name: obj.Name,
		Size: obj.Size,
	})
}

func (cs *ChatServer) handleSend(ctx context.Context, c *Client, msg *ClientMessage) {
	kind := msg.Send.Kind
	if kind == "" {
		kind = types.KindText
	}

	if kind != types.KindText {
		c.queueMessage(ErrorFor(msg.Id, fmt.Errorf("%w: %s messages are sent through the upload endpoint", errs.ErrValidation, kind)))
		return
	}

	content := msg.Send.Content
	m, err := cs.SendMessage(ctx, c.user, msg.Send.ConversationId, kind, &content, nil)
	if err != nil {
		c.log.Info("send message rejected",
			zap.String("conversation_id", msg.Send.ConversationId),
			zap.Error(err),
		)
		c.queueMessage(ErrorFor(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"message_id": m.Id}))
}
