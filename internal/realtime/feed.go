package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sohbat-app/chat-service/internal/models"
)

// EventType tags a row-level change delivered over the feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// MessageEvent carries the new and/or old image of a messages row.
type MessageEvent struct {
	Type     EventType       `json:"type"`
	New      *models.Message `json:"new,omitempty"`
	Old      *models.Message `json:"old,omitempty"`
	CommitAt time.Time       `json:"commit_at"`
}

// MemberEvent carries the new and/or old image of a room_members row.
type MemberEvent struct {
	Type     EventType          `json:"type"`
	New      *models.RoomMember `json:"new,omitempty"`
	Old      *models.RoomMember `json:"old,omitempty"`
	CommitAt time.Time          `json:"commit_at"`
}

// Feed publishes and consumes per-room change events over Redis Pub/Sub.
// Delivery is at-most-once to connected subscribers; there is no replay.
type Feed struct {
	client *redis.Client
}

func NewFeed(client *redis.Client) *Feed {
	return &Feed{client: client}
}

func messageChannel(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

func memberChannel(roomID string) string {
	return fmt.Sprintf("room:%s:members", roomID)
}

func (f *Feed) PublishMessage(ctx context.Context, roomID string, event MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal message event: %w", err)
	}

	if err := f.client.Publish(ctx, messageChannel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message event: %w", err)
	}

	return nil
}

func (f *Feed) PublishMember(ctx context.Context, roomID string, event MemberEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal member event: %w", err)
	}

	if err := f.client.Publish(ctx, memberChannel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish member event: %w", err)
	}

	return nil
}

// SubscribeMessages delivers message events for one room until the returned
// cancel function is called or ctx is done. Callers must cancel on teardown.
func (f *Feed) SubscribeMessages(ctx context.Context, roomID string) (<-chan MessageEvent, func()) {
	sub := f.client.Subscribe(ctx, messageChannel(roomID))
	out := make(chan MessageEvent, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event MessageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Dropping malformed message event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }
}

// SubscribeMembers is the membership counterpart of SubscribeMessages.
func (f *Feed) SubscribeMembers(ctx context.Context, roomID string) (<-chan MemberEvent, func()) {
	sub := f.client.Subscribe(ctx, memberChannel(roomID))
	out := make(chan MemberEvent, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var event MemberEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Dropping malformed member event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }
}
