package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Handler processes one delivery body. A nil return acks the message;
// an error nacks it without requeue (the stream is snapshot-reconciled,
// so replaying a broken event buys nothing).
type Handler func(ctx context.Context, body []byte) error

// ConsumeInstanceQueue declares the per-instance queue, binds it to the
// exchange and consumes it until ctx is cancelled. It survives connection
// loss by re-declaring and re-subscribing after the client reconnects.
func (client *Client) ConsumeInstanceQueue(ctx context.Context, queue, exchange string, handle Handler) error {
	backoff := 5 * time.Second
	for {
		err := client.consumeOnce(ctx, queue, exchange, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-client.closed:
			return errors.New("rabbitmq: client closed")
		default:
		}

		if err != nil {
			client.logger.Error(client.logCtx, "consume_restarting", "Consumer loop ended, restarting", err, nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}
}

// consumeOnce runs one subscription on a fresh channel until it breaks.
func (client *Client) consumeOnce(ctx context.Context, queue, exchange string, handle Handler) error {
	if err := client.DeclareInstanceQueue(queue, exchange); err != nil {
		return err
	}

	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not ready")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open consumer channel: %w", err)
	}
	defer ch.Close()

	// modest prefetch keeps the handler from hoarding a burst
	if err := ch.Qos(32, 0, false); err != nil {
		return fmt.Errorf("rabbitmq: set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq: deliveries channel closed")
			}
			if err := handle(ctx, d.Body); err != nil {
				client.logger.Error(ctx, "event_handle_failed", "Failed to handle delivery", err, nil)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
