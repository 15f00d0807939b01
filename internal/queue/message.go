package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Client publishes score jobs. SQS and RabbitMQ implementations live in this
// package; a nil Client means scoring runs inline.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MessageVersion is the current score-refresh payload version.
const MessageVersion = 1

// Message asks a worker to recompute and cache a resume's score.
type Message struct {
	ResumeID   string `json:"resumeId"`
	OwnerID    string `json:"ownerId"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewScoreMessage builds a versioned message stamped with the enqueue time.
func NewScoreMessage(ownerID, resumeID, requestID string, at time.Time) Message {
	return Message{
		ResumeID:   resumeID,
		OwnerID:    ownerID,
		RequestID:  requestID,
		EnqueuedAt: at.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
