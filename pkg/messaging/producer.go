package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/komgo/credit-lines/pkg/metrics"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// ProducerConfig holds outbound messaging configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	MaxAttempts  int
	WriteTimeout time.Duration
}

// Producer publishes envelopes to the outbound topic, keyed by recipient so
// one company's messages stay ordered.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new envelope producer
func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           config.BatchTimeout,
		MaxAttempts:            config.MaxAttempts,
		WriteTimeout:           config.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  config.Topic,
	}, nil
}

// Publish sends one envelope
func (p *Producer) Publish(ctx context.Context, envelope *Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "Producer.Publish")
	defer span.End()

	if err := envelope.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid envelope: %w", err)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	headers := []kafka.Header{
		{Key: "messageType", Value: []byte(envelope.MessageType)},
	}
	if traceParent := tracing.GetTraceParent(ctx); traceParent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
	}

	msg := kafka.Message{
		Key:     []byte(envelope.RecepientStaticID),
		Value:   data,
		Headers: headers,
		Time:    time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"message_type": envelope.MessageType,
			"recipient":    envelope.RecepientStaticID,
		}).Error("failed to publish envelope")
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	metrics.MessagesPublishedTotal.WithLabelValues(string(envelope.MessageType)).Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"message_type": envelope.MessageType,
		"recipient":    envelope.RecepientStaticID,
	}).Debug("published envelope")

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
