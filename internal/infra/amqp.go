package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// NewAMQPConnection dials the broker, retrying while it comes up.
func NewAMQPConnection(ctx context.Context, url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect amqp: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("connect amqp: %w", err)
}
