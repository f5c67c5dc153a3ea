package messaging

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoomsExchange = "roomdrop.rooms"
	RoomsQueue    = "roomdrop.rooms.audit"
)

type RabbitMQ struct {
	conn     *amqp.Connection
	Channel  *amqp.Channel
	exchange string
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
}

func NewRabbitMQ(uri, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = RoomsExchange
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:     conn,
		Channel:  ch,
		exchange: exchange,
	}

	if err := rmq.setupExchange(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

func (r *RabbitMQ) setupExchange() error {
	if err := r.Channel.ExchangeDeclare(
		r.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", r.exchange, err)
	}
	return nil
}

// DeclareAndBindQueue binds a durable queue to the exchange for each routing key.
func (r *RabbitMQ) DeclareAndBindQueue(queueName string, routingKeys []string) error {
	q, err := r.Channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	for _, key := range routingKeys {
		if err := r.Channel.QueueBind(q.Name, key, r.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s: %w", queueName, key, err)
		}
	}

	return nil
}

func (r *RabbitMQ) PublishMessage(ctx context.Context, routingKey string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.Channel.PublishWithContext(ctx,
		r.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
