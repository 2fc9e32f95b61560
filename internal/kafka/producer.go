package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer buffers messages in an inbox and writes them from one goroutine,
// so publishing never blocks a request on the broker.
type Producer struct {
	w         *kafka.Writer
	inbox     chan kafka.Message
	closeCh   chan struct{}
	closeOnce sync.Once
	log       *slog.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log.With(slog.String("topic", topic)),
	}
}

// Start runs the writer loop until Close is called; remaining messages are flushed.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", slog.Any("error", err))
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka publish failed", slog.String("key", string(m.Key)), slog.Any("error", err))
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warn("kafka inbox full, dropping event", slog.String("key", string(key)))
	}
}

// Close stops accepting messages; the loop flushes what is left and exits.
func (p *Producer) Close() { p.closeOnce.Do(func() { close(p.inbox) }) }

// WaitClosed blocks until the writer loop has drained.
func (p *Producer) WaitClosed() { <-p.closeCh }
