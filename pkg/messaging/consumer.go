package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/komgo/credit-lines/pkg/redis"
)

// EnvelopeHandler processes one parsed inbound envelope. A returned error
// leaves the offset uncommitted so the message is retried.
type EnvelopeHandler func(ctx context.Context, envelope *Envelope) error

// ConsumerConfig holds inbound messaging configuration
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	SessionTimeout time.Duration
}

// Consumer reads envelopes from the inbound topic. Transient processing
// failures block the partition; envelopes that can never be processed go to
// the dead letter stream and are committed past.
type Consumer struct {
	reader  *kafka.Reader
	dlq     *redis.DeadLetterQueue
	logger  ectologger.Logger
	config  ConsumerConfig
	handler EnvelopeHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

// NewConsumer creates a new envelope consumer
func NewConsumer(config ConsumerConfig, dlq *redis.DeadLetterQueue, logger ectologger.Logger) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.GroupID,
		MinBytes:       config.MinBytes,
		MaxBytes:       config.MaxBytes,
		MaxWait:        config.MaxWait,
		SessionTimeout: config.SessionTimeout,
	})

	return &Consumer{
		reader: reader,
		dlq:    dlq,
		logger: logger,
		config: config,
	}, nil
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler EnvelopeHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Infof("Kafka consumer started for topic %s (group: %s)", c.config.Topic, c.config.GroupID)
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("Failed to fetch message")
			continue
		}

		envelope, err := ParseEnvelope(msg.Value)
		if err == nil {
			err = envelope.Validate()
		}
		if err != nil {
			// Malformed envelopes never become processable: dead-letter and
			// commit so the partition keeps moving.
			c.logger.WithContext(ctx).WithError(err).Errorf("Unprocessable message at offset %d", msg.Offset)
			c.deadLetter(ctx, msg, err)
			c.commit(ctx, msg)
			continue
		}

		if err := c.handler(ctx, envelope); err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"message_type": envelope.MessageType,
				"offset":       msg.Offset,
			}).Error("Handler failed, message will be retried")
			continue
		}

		c.commit(ctx, msg)
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	messageType := ""
	for _, h := range msg.Headers {
		if h.Key == "messageType" {
			messageType = string(h.Value)
		}
	}

	if _, err := c.dlq.Add(ctx, &redis.DLQEntry{
		MessageType:  messageType,
		Payload:      msg.Value,
		ErrorMessage: cause.Error(),
	}); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to dead-letter message")
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("Failed to commit message at offset %d", msg.Offset)
	}
}

// Lag returns the current consumer lag
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
