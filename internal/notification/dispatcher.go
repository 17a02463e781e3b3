package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pointvest/pointvest/internal/metrics"
)

// Dispatcher sends notifications in the background so callers never wait on
// or fail because of delivery.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewDispatcher builds a dispatcher. Each send gets its own timeout.
func NewDispatcher(n Notifier, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: n, timeout: timeout, logger: logger, metrics: m}
}

// Notify schedules delivery and returns immediately.
func (d *Dispatcher) Notify(userID, kind string, payload map[string]any) {
	if d == nil || d.notifier == nil {
		return
	}
	msg := Message{UserID: userID, Kind: kind, Payload: payload}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Send(ctx, msg); err != nil {
			d.metrics.Notification("failed")
			d.logger.Warn("notification delivery failed",
				slog.String("user_id", userID),
				slog.String("kind", kind),
				slog.Any("error", err),
			)
			return
		}
		d.metrics.Notification("sent")
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
