// Package sink publishes order book views to Kafka.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/segmentio/kafka-go"
)

// Config holds the Kafka producer settings.
type Config struct {
	Brokers      []string      `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic        string        `env:"TOPIC" envDefault:"orderbooks"`
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" envDefault:"50ms"`
	Enabled      bool          `env:"ENABLED" envDefault:"false"`
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a kafka-go writer that hashes keys to partitions, so every
// update of one book lands on the same partition in order.
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaPublisher writes one message per book view, keyed by exchange:symbol.
type KafkaPublisher struct {
	writer MessageWriter
	log    logger.Interface
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter, log logger.Interface) *KafkaPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaPublisher{writer: w, log: log}
}

// Publish sends v.
func (p *KafkaPublisher) Publish(ctx context.Context, v model.OrderBookView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal book view: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(v.Exchange + ":" + v.Symbol),
		Value: b,
		Time:  v.Timestamp,
		Headers: []kafka.Header{
			{Key: "exchange", Value: []byte(v.Exchange)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.ErrorContext(ctx, err,
			logger.NewField("exchange", v.Exchange),
			logger.NewField("symbol", v.Symbol),
		)
		return fmt.Errorf("publish book view: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
