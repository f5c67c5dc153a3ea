package events

import (
	"context"

	"github.com/hilthontt/roomdrop/internal/domain"
)

// Fanout forwards every lifecycle transition to each notifier in order.
type Fanout []domain.RoomNotifier

func NewFanout(notifiers ...domain.RoomNotifier) Fanout {
	out := make(Fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (f Fanout) RoomCreated(ctx context.Context, room domain.Room) {
	for _, n := range f {
		n.RoomCreated(ctx, room)
	}
}

func (f Fanout) RoomExpired(ctx context.Context, code domain.RoomCode) {
	for _, n := range f {
		n.RoomExpired(ctx, code)
	}
}
