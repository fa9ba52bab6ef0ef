// Package broker is the event channel: at-most-once publish/subscribe
// addressed by topic string.
//
// Two transports share the same contract. Kafka is used when brokers are
// configured; Memory delivers in process and backs local runs and tests.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
	"github.com/jcmexdev/orders-service/internal/pkg/interceptors"
	"github.com/jcmexdev/orders-service/internal/pkg/metrics"
)

var ErrClosed = errors.New("broker: channel closed")

// Handler processes one message. Returned errors and panics are logged by the
// channel and never stop the subscription.
type Handler func(ctx context.Context, topic string, body []byte) error

type Channel interface {
	// Publish wraps payload in a contracts.Envelope and sends it once.
	Publish(ctx context.Context, topic string, payload any) error
	// Subscribe starts consuming topics in the background until ctx is done
	// or the channel is closed. Messages are handled one at a time.
	Subscribe(ctx context.Context, topics []string, h Handler) error
	// Ping reports whether the transport is reachable.
	Ping(ctx context.Context) error
	Close() error
}

type options struct {
	metrics *metrics.EventMetrics
	now     func() time.Time
}

type Option func(*options)

func WithMetrics(m *metrics.EventMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encode builds the wire form of an outbound event.
func Encode(serviceName, topic string, payload any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("broker: encode %s payload: %w", topic, err)
	}
	return json.Marshal(contracts.Envelope{
		EventType:   topic,
		ServiceName: serviceName,
		Data:        data,
		Timestamp:   now.UTC(),
	})
}

// dispatch runs h for one message and turns a panic into an error. The
// outcome is logged and counted; it is never propagated to the loop.
func dispatch(ctx context.Context, h Handler, topic string, body []byte, m *metrics.EventMetrics) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("broker: handler panic: %v", r)
		}
		m.ObserveConsume(topic, err)
		if err != nil {
			slog.ErrorContext(ctx, "event handler failed",
				"topic", topic,
				"request_id", interceptors.RequestID(ctx),
				"error", err,
			)
		}
	}()
	err = h(ctx, topic, body)
}
