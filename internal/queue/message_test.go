package queue

import (
	"reflect"
	"testing"
	"time"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		ResumeID:   "resume-123",
		OwnerID:    "user-9",
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    1,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestNewScoreMessage(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 4, 5, 0, time.FixedZone("X", 3600))
	msg := NewScoreMessage("user-1", "resume-1", "req-1", at)
	if msg.EnqueuedAt != "2026-03-02T09:04:05Z" {
		t.Fatalf("unexpected enqueuedAt %q", msg.EnqueuedAt)
	}
	if msg.Version != MessageVersion || msg.OwnerID != "user-1" || msg.ResumeID != "resume-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeMessage([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
