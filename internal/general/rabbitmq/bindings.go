package rabbitmq

import (
	"errors"
	"fmt"

	"bus-track/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the fanout exchanges the tracking pipeline uses.
// Queues are per-instance and declared by the consumer that owns them.
func declareTopology(ch *amqp.Channel) error {
	exchanges := []string{
		contracts.ExchangeBusStateFanout,
		contracts.ExchangeETAFanout,
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

// DeclareInstanceQueue declares an auto-delete queue private to this instance
// and binds it to the given fanout exchange. Every instance gets its own copy
// of every message, which is what the broadcaster fan-out needs.
func (client *Client) DeclareInstanceQueue(queue, exchange string) error {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	defer ch.Close()

	// durable=false, autoDelete=true: the queue dies with the instance and the
	// broadcaster reconciles through snapshots, so lost events are acceptable
	if _, err := ch.QueueDeclare(queue, false, true, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, exchange, err)
	}

	return nil
}
