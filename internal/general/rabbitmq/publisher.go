package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishJSON marshals msg and publishes it to the exchange, waiting for a
// broker confirm. Fanout exchanges ignore the routing key; pass "".
func (client *Client) PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal message: %w", err)
	}

	// serialize publishes: confirms arrive in publish order on the channel
	client.pubMu.Lock()
	defer client.pubMu.Unlock()

	client.mu.RLock()
	ch := client.pubChan
	client.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publisher channel is not ready")
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", exchange, err)
	}

	confirms := client.pubConfirms
	if confirms == nil {
		return errors.New("rabbitmq: confirms channel is not ready")
	}

	select {
	case <-pubCtx.Done():
		return fmt.Errorf("rabbitmq: confirm wait: %w", pubCtx.Err())
	case confirm, ok := <-confirms:
		if !ok {
			return errors.New("rabbitmq: confirms channel closed")
		}
		if !confirm.Ack {
			return fmt.Errorf("rabbitmq: broker nacked publish to %s", exchange)
		}
	}

	return nil
}
