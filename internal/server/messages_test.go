package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/errs"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFor(t *testing.T) {
	tcases := []struct {
		name string
		err  error
		code int
		text string
	}{
		{"validation exposes detail", fmt.Errorf("%w: content is required", errs.ErrValidation), http.StatusBadRequest, "validation failed: content is required"},
		{"access denied", fmt.Errorf("wrapped: %w", errs.ErrAccessDenied), http.StatusForbidden, "access denied"},
		{"not found", errs.ErrNotFound, http.StatusNotFound, "not found"},
		{"upload", errs.ErrUpload, http.StatusBadGateway, "upload failed"},
		{"persistence hides detail", fmt.Errorf("insert: %w: %w", errs.ErrPersistence, fmt.Errorf("pq: connection refused")), http.StatusInternalServerError, "internal server error"},
		{"shutting down", ErrShuttingDown, http.StatusServiceUnavailable, "service unavailable"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			msg := ErrorFor(7, tc.err)
			assert.Equal(t, EventError, msg.Event)
			assert.Equal(t, 7, msg.Id)
			require.NotNil(t, msg.Response)
			assert.Equal(t, tc.code, msg.Response.ResponseCode)
			assert.Equal(t, tc.text, msg.Response.Error)
		})
	}
}

func TestErrInvalidMessage_NoId(t *testing.T) {
	msg := ErrInvalidMessage(-1)
	assert.Equal(t, 0, msg.Id, "expected negative id to be omitted")
	assert.Equal(t, http.StatusBadRequest, msg.Response.ResponseCode)
}

func TestTypingEvent(t *testing.T) {
	start := TypingEvent(EventTypingStart, alice, "c1")
	assert.Equal(t, EventTypingStart, start.Event)
	assert.Equal(t, TypingNotice{ConversationId: "c1", UserId: alice.Id, Username: alice.Username}, *start.Typing)

	stop := TypingEvent(EventTypingStop, alice, "c1")
	assert.Equal(t, EventTypingStop, stop.Event)
	assert.Empty(t, stop.Typing.Username, "expected stop notice to omit the username")
}

func TestPresenceEvent(t *testing.T) {
	at := Now()
	assert.Equal(t, EventUserOnline, PresenceEvent(true, bob, at).Event)

	off := PresenceEvent(false, bob, at)
	assert.Equal(t, EventUserOffline, off.Event)
	assert.Equal(t, Presence{UserId: bob.Id, Username: bob.Username, LastSeen: at}, *off.Presence)
}

func TestServerMessage_JSON(t *testing.T) {
	content := "hi"
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewMessageEvent(ToMessage(database.Message{
		Id:             "m1",
		ConversationId: "c1",
		SenderId:       alice.Id,
		Kind:           "text",
		Content:        &content,
		CreatedAt:      created,
	}, alice))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "message:new", decoded["event"])
	assert.NotContains(t, decoded, "id", "expected broadcast events to carry no request id")
	assert.NotContains(t, decoded, "response")

	body := decoded["message"].(map[string]any)
	assert.Equal(t, "m1", body["id"])
	assert.Equal(t, "hi", body["content"])
	assert.Equal(t, map[string]any{"id": alice.Id, "username": alice.Username}, body["sender"])
	assert.NotContains(t, body, "file")
}

func TestToMessage_File(t *testing.T) {
	m := ToMessage(database.Message{
		Id:   "m1",
		Kind: "image",
		File: &database.File{Url: "http://x/api/files/1", Name: "cat.png", Size: 4},
	}, bob)

	assert.Equal(t, types.KindImage, m.Kind)
	assert.Nil(t, m.Content)
	assert.Equal(t, &types.FileDescriptor{Url: "http://x/api/files/1", Name: "cat.png", Size: 4}, m.File)
	assert.Equal(t, bob, m.Sender)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "user:u1", UserChannel("u1"))
	assert.Equal(t, "conversation:c1", ConversationChannel("c1"))
}
