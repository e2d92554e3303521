package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Producer publishes order lifecycle events without blocking the request
// path: Publish drops the message into an inbox channel drained by a single
// writer goroutine, and Close flushes what remains.
type Producer struct {
	w       *kafka.Writer
	log     *slog.Logger
	name    string
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(log *slog.Logger, brokers []string, producerName string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		log:     log,
		name:    producerName,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m := <-p.inbox:
				if err := p.w.WriteMessages(context.Background(), m); err != nil {
					p.log.Error("event publish failed", "topic", m.Topic, "err", err)
				}
			}
		}
	}()
}

// drain flushes whatever is buffered without closing the inbox, so a late
// Emit from an in-flight request is dropped rather than panicking.
func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("event flush failed", "topic", m.Topic, "err", err)
			}
		default:
			_ = p.w.Close()
			return
		}
	}
}

// WaitClosed blocks until the writer goroutine has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }

// Emit wraps payload in the versioned envelope and enqueues it. Events keyed
// by order id preserve per-order ordering across partitions.
func (p *Producer) Emit(topic, eventType string, orderID int64, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("event marshal failed", "type", eventType, "err", err)
		return
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.name,
		OrderID:      orderID,
		Payload:      body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.log.Error("envelope marshal failed", "type", eventType, "err", err)
		return
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}

	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("event inbox full, dropping", "type", eventType, "order_id", orderID)
	}
}
