package realtime

import (
	"encoding/json"
	"time"
)

// Server -> client events.
const (
	EventMessageReceived = "message:received"
	EventMessageFollowed = "message:followed"
	EventPostReceived    = "post:received"
	EventPostUpdated     = "post:updated"
	EventPostDeleted     = "post:deleted"
	EventCommentReceived = "comment:received"
	EventCommentUpdated  = "comment:updated"
	EventCommentDeleted  = "comment:deleted"
	EventNotification    = "notification"
	EventTypingStarted   = "typing:started"
	EventTypingStopped   = "typing:stopped"
	EventError           = "error"
)

// Client -> server events.
const (
	ClientMessageSend = "message:send"
	ClientTypingStart = "typing:start"
	ClientTypingStop  = "typing:stop"
)

// Frame is the websocket envelope in both directions, e.g.
// {"event": "typing:start", "data": {"recipientId": "u2"}}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}

type SendMessageData struct {
	ConversationId string `json:"conversationId"`
	Message        string `json:"message"`
	RecipientId    string `json:"recipientId"`
}

type TypingData struct {
	RecipientId string `json:"recipientId"`
}

type TypingPayload struct {
	SenderId string `json:"senderId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// MessagePayload is the data of message:received.
type MessagePayload struct {
	SenderId       string    `json:"senderId"`
	ConversationId string    `json:"conversationId"`
	FanpageId      string    `json:"fanpageId,omitempty"`
	MessageId      string    `json:"messageId"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// DeletedPayload is the data of post:deleted and comment:deleted.
type DeletedPayload struct {
	Id         string `json:"id"`
	ExternalId string `json:"externalId"`
	FanpageId  string `json:"fanpageId"`
}
