package broker

import (
	"context"
	"fmt"
	"sync"
)

const memoryQueueSize = 256

type message struct {
	topic   string
	body    []byte
	headers map[string]string
}

type memorySub struct {
	topics map[string]bool
	queue  chan message
}

// Memory is an in-process Channel. A full subscriber queue drops the message
// and reports an error to the publisher.
type Memory struct {
	serviceName string
	opts        options

	mu     sync.RWMutex
	subs   []*memorySub
	closed bool
	wg     sync.WaitGroup
}

func NewMemory(serviceName string, opts ...Option) *Memory {
	return &Memory{serviceName: serviceName, opts: buildOptions(opts)}
}

func (m *Memory) Publish(ctx context.Context, topic string, payload any) error {
	body, err := Encode(m.serviceName, topic, payload, m.opts.now())
	if err != nil {
		m.opts.metrics.ObservePublish(topic, err)
		return err
	}
	err = m.PublishRaw(ctx, topic, body)
	m.opts.metrics.ObservePublish(topic, err)
	return err
}

// PublishRaw sends body as is, without an envelope.
func (m *Memory) PublishRaw(ctx context.Context, topic string, body []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	msg := message{topic: topic, body: body, headers: headersFrom(ctx)}
	for _, sub := range m.subs {
		if !sub.topics[topic] {
			continue
		}
		select {
		case sub.queue <- msg:
		default:
			return fmt.Errorf("broker: queue full for topic %s", topic)
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, topics []string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	sub := &memorySub{topics: make(map[string]bool, len(topics)), queue: make(chan message, memoryQueueSize)}
	for _, t := range topics {
		sub.topics[t] = true
	}
	m.subs = append(m.subs, sub)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.queue:
				if !ok {
					return
				}
				dispatch(contextFrom(ctx, msg.headers), h, msg.topic, msg.body, m.opts.metrics)
			}
		}
	}()
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close stops accepting messages and waits for subscribers to drain their
// queues.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, sub := range m.subs {
		close(sub.queue)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
