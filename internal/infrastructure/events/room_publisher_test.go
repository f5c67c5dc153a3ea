package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
)

type recordedMessage struct {
	routingKey string
	body       []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []recordedMessage
	err      error
}

func (f *fakePublisher) PublishMessage(_ context.Context, routingKey string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, recordedMessage{routingKey: routingKey, body: body})
	return f.err
}

func TestRoomPublisherRoomCreated(t *testing.T) {
	pub := &fakePublisher{}
	p := NewRoomPublisher(pub, nil)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	room := domain.Room{
		Code:      "ABC234",
		Files:     []domain.FileEntry{{Name: "a.txt"}, {Name: "b.txt"}},
		ExpiresAt: now.Add(domain.RoomTTL),
	}
	p.RoomCreated(context.Background(), room)

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.routingKey != EventRoomCreated {
		t.Errorf("routing key = %q, want %q", msg.routingKey, EventRoomCreated)
	}

	var ev RoomEvent
	if err := json.Unmarshal(msg.body, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.RoomCode != "ABC234" || ev.FileCount != 2 || ev.Type != EventRoomCreated {
		t.Errorf("unexpected event %+v", ev)
	}
	if !ev.ExpiresAt.Equal(room.ExpiresAt) {
		t.Errorf("expiresAt = %v, want %v", ev.ExpiresAt, room.ExpiresAt)
	}
	if ev.ID == "" {
		t.Error("event ID should be set")
	}
}

func TestRoomPublisherSwallowsBrokerErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	p := NewRoomPublisher(pub, nil)

	p.RoomExpired(context.Background(), "ABC234")

	if len(pub.messages) != 1 || pub.messages[0].routingKey != EventRoomExpired {
		t.Fatalf("expected one room.expired publish attempt, got %+v", pub.messages)
	}
}

type countingNotifier struct {
	created, expired int
}

func (c *countingNotifier) RoomCreated(context.Context, domain.Room)     { c.created++ }
func (c *countingNotifier) RoomExpired(context.Context, domain.RoomCode) { c.expired++ }

func TestFanoutSkipsNilAndForwards(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	f := NewFanout(a, nil, b)
	if len(f) != 2 {
		t.Fatalf("expected nil notifier to be dropped, got %d", len(f))
	}

	f.RoomCreated(context.Background(), domain.Room{Code: "ABC234"})
	f.RoomExpired(context.Background(), "ABC234")

	for i, n := range []*countingNotifier{a, b} {
		if n.created != 1 || n.expired != 1 {
			t.Errorf("notifier %d: created=%d expired=%d", i, n.created, n.expired)
		}
	}
}
