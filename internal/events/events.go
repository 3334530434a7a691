// Package events propagates lab result row changes between processes over
// Redis pub/sub. The worker and the upload handler publish after each row
// write; the API server bridges the owner's channel into its live feed.
//
// Delivery order is not guaranteed, so consumers must re-derive ordering from
// the records themselves (see livefeed).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/takshit12/headycoasaas/internal/model"
)

// Bus publishes and subscribes lab result change events.
type Bus struct {
	client *redis.Client
}

// NewBus wraps an existing Redis client.
func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func channel(userID string) string {
	return fmt.Sprintf("labresults:events:%s", userID)
}

// Publish sends one event on the owner's channel. Publishing is best-effort:
// a lost event only delays the UI until the next snapshot, so failures are
// logged rather than propagated.
func (b *Bus) Publish(ctx context.Context, userID string, ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("events: marshal event: %v", err)
		return
	}
	if err := b.client.Publish(ctx, channel(userID), data).Err(); err != nil {
		log.Printf("events: publish for %s: %v", userID, err)
	}
}

// Inserted publishes an INSERT event for the record.
func (b *Bus) Inserted(ctx context.Context, rec *model.LabResult) {
	b.Publish(ctx, rec.UserID, model.Event{Type: model.EventInsert, New: rec})
}

// Updated publishes an UPDATE event for the record.
func (b *Bus) Updated(ctx context.Context, rec *model.LabResult) {
	b.Publish(ctx, rec.UserID, model.Event{Type: model.EventUpdate, New: rec})
}

// Subscribe listens on the owner's channel and delivers decoded events until
// the context is cancelled. The returned cancel function tears the
// subscription down deterministically; the events channel is closed once the
// receive loop exits.
func (b *Bus) Subscribe(ctx context.Context, userID string) (<-chan model.Event, func()) {
	sub := b.client.Subscribe(ctx, channel(userID))
	out := make(chan model.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev model.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("events: decode event for %s: %v", userID, err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel
}
