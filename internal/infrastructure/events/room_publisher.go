package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/logging"
)

const publishTimeout = 5 * time.Second

// Publisher is the slice of messaging.RabbitMQ the room publisher needs.
type Publisher interface {
	PublishMessage(ctx context.Context, routingKey string, body []byte) error
}

// RoomPublisher mirrors room lifecycle transitions onto the message broker.
// Publishing is best effort: a broker outage never fails an upload.
type RoomPublisher struct {
	publisher Publisher
	logger    logging.Logger
	now       domain.Clock
}

func NewRoomPublisher(publisher Publisher, logger logging.Logger) *RoomPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RoomPublisher{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *RoomPublisher) RoomCreated(ctx context.Context, room domain.Room) {
	p.publish(ctx, RoomEvent{
		ID:         uuid.NewString(),
		Type:       EventRoomCreated,
		RoomCode:   room.Code.String(),
		FileCount:  len(room.Files),
		ExpiresAt:  room.ExpiresAt,
		OccurredAt: p.now(),
	})
}

func (p *RoomPublisher) RoomExpired(ctx context.Context, code domain.RoomCode) {
	p.publish(ctx, RoomEvent{
		ID:         uuid.NewString(),
		Type:       EventRoomExpired,
		RoomCode:   code.String(),
		OccurredAt: p.now(),
	})
}

func (p *RoomPublisher) publish(ctx context.Context, event RoomEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(logging.RabbitMQ, logging.Publish, "failed to encode room event", map[logging.ExtraKey]any{
			logging.RoomCode:     event.RoomCode,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.publisher.PublishMessage(ctx, event.Type, body); err != nil {
		p.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
			logging.RoomCode:     event.RoomCode,
			logging.ErrorMessage: err.Error(),
		})
	}
}
