package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_serializeMessage(t *testing.T) {
	message := &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        1,
			Timestamp: Now(),
		},
		Event: EventOK,
		Response: &Response{
			ResponseCode: 200,
			Data:         map[string]any{"message_id": "m1"},
		},
	}

	expected := `{"id":1,"timestamp":"` + message.Timestamp.Format(time.RFC3339Nano) +
		`","event":"ok","response":{"response_code":200,"data":{"message_id":"m1"}}}`

	c := &Client{}
	bytes, err := c.serializeMessage(message)
	require.NoError(t, err)
	assert.JSONEq(t, expected, string(bytes))
}

func TestNewClient(t *testing.T) {
	c1 := NewClient(alice, nil, nil, testutil.TestLogger(t))
	c2 := NewClient(alice, nil, nil, testutil.TestLogger(t))

	assert.NotEmpty(t, c1.id)
	assert.NotEqual(t, c1.id, c2.id, "expected distinct connection ids")
	assert.Equal(t, alice, c1.user)
	assert.Equal(t, sendQueueSize, cap(c1.send))
}

func TestClient_stopClient(t *testing.T) {
	c := NewClient(alice, nil, nil, testutil.TestLogger(t))

	assert.NotPanics(t, func() {
		c.stopClient()
		c.stopClient()
	}, "expected stopClient to be idempotent")

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func TestClientMessage_Decode(t *testing.T) {
	var msg ClientMessage
	raw := `{"id":3,"send":{"conversation_id":"c1","content":"hi"},"timestamp":"1999-01-01T00:00:00Z"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, 3, msg.Id)
	require.NotNil(t, msg.Send)
	assert.Equal(t, "c1", msg.Send.ConversationId)
	assert.Equal(t, "hi", msg.Send.Content)
	assert.Empty(t, msg.Send.Kind)
	assert.Nil(t, msg.Read)
	assert.Nil(t, msg.TypingStart)
}
