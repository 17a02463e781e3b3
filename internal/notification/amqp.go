package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes messages as JSON to a RabbitMQ exchange, routed by kind.
type AMQPNotifier struct {
	pub      Publisher
	exchange string
}

// NewAMQPNotifier builds a notifier publishing to exchange.
func NewAMQPNotifier(pub Publisher, exchange string) *AMQPNotifier {
	return &AMQPNotifier{pub: pub, exchange: exchange}
}

// Send publishes message. The channel API has no context, so a cancelled ctx
// is only checked before publishing.
func (n *AMQPNotifier) Send(ctx context.Context, message Message) error {
	const op = "notification.AMQPNotifier.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = n.pub.Publish(n.exchange, message.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeclareExchange declares the durable direct exchange notifications go to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}
