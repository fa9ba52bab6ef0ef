package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jcmexdev/orders-service/internal/pkg/contracts"
	"github.com/jcmexdev/orders-service/internal/pkg/interceptors"
)

const readRetryDelay = 2 * time.Second

// Kafka is a Channel backed by one Kafka topic per event type. Readers join
// a consumer group and commit offsets as they read, so a message is handled
// at most once per group.
type Kafka struct {
	brokers     []string
	groupID     string
	serviceName string
	opts        options
	writer      *kafka.Writer

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
	wg      sync.WaitGroup
}

// ParseBrokers splits a CSV broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafka(brokers []string, groupID, serviceName string, opts ...Option) *Kafka {
	return &Kafka{
		brokers:     brokers,
		groupID:     groupID,
		serviceName: serviceName,
		opts:        buildOptions(opts),
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish keys the message by the payload's contracts.Keyed key, so the
// events of one order land on one partition in order.
func (k *Kafka) Publish(ctx context.Context, topic string, payload any) error {
	body, err := Encode(k.serviceName, topic, payload, k.opts.now())
	if err == nil {
		err = k.write(ctx, k.message(ctx, topic, partitionKey(payload), body))
	}
	k.opts.metrics.ObservePublish(topic, err)
	return err
}

// PublishRaw sends body as is, without an envelope or key.
func (k *Kafka) PublishRaw(ctx context.Context, topic string, body []byte) error {
	return k.write(ctx, k.message(ctx, topic, nil, body))
}

func (k *Kafka) message(ctx context.Context, topic string, key, body []byte) kafka.Message {
	return kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   body,
		Headers: toKafkaHeaders(headersFrom(ctx)),
		Time:    k.opts.now().UTC(),
	}
}

func (k *Kafka) write(ctx context.Context, msg kafka.Message) error {
	k.mu.Lock()
	closed := k.closed
	k.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("broker: kafka write %s: %w", msg.Topic, err)
	}
	return nil
}

// partitionKey returns nil for unkeyed payloads; the hash balancer then
// spreads them round robin.
func partitionKey(payload any) []byte {
	if keyed, ok := payload.(contracts.Keyed); ok {
		if key := keyed.PartitionKey(); key != "" {
			return []byte(key)
		}
	}
	return nil
}

func (k *Kafka) Subscribe(ctx context.Context, topics []string, h Handler) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		GroupID:     k.groupID,
		GroupTopics: topics,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})
	k.readers = append(k.readers, reader)

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		k.consume(ctx, reader, h)
	}()
	return nil
}

func (k *Kafka) consume(ctx context.Context, reader *kafka.Reader, h Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			slog.ErrorContext(ctx, "kafka read error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		dispatch(contextFrom(ctx, fromKafkaHeaders(msg.Headers)), h, msg.Topic, msg.Value, k.opts.metrics)
	}
}

// Ping dials the first reachable broker.
func (k *Kafka) Ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range k.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return fmt.Errorf("broker: kafka unreachable: %w", lastErr)
}

// Close stops the readers, waits for in-flight handlers and flushes the
// writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	readers := k.readers
	k.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	k.wg.Wait()
	if err := k.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func headersFrom(ctx context.Context) map[string]string {
	return interceptors.MessageHeaders(ctx)
}

func contextFrom(ctx context.Context, headers map[string]string) context.Context {
	return interceptors.ContextFromHeaders(ctx, headers)
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	kh := make([]kafka.Header, 0, len(headers))
	for key, v := range headers {
		kh = append(kh, kafka.Header{Key: key, Value: []byte(v)})
	}
	return kh
}

// fromKafkaHeaders keeps the last value of a repeated header.
func fromKafkaHeaders(kh []kafka.Header) map[string]string {
	headers := make(map[string]string, len(kh))
	for _, hd := range kh {
		headers[hd.Key] = string(hd.Value)
	}
	return headers
}
