package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shopkart/internal/config"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Publisher broadcasts cart and order events. Publishing is fire-and-forget
// from the caller's perspective: a failed publish is logged, never surfaced.
type Publisher interface {
	CartUpdated(ctx context.Context, event CartUpdatedEvent)
	OrderConfirmed(ctx context.Context, event OrderConfirmedEvent)
	Close() error
}

// kafkaPublisher implements Publisher on top of kafka-go writers.
type kafkaPublisher struct {
	cartWriter  *kafka.Writer
	orderWriter *kafka.Writer
	logger      zerolog.Logger
}

// NewPublisher creates a Kafka-backed publisher, or a no-op publisher when
// no brokers are configured.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		logger.Info().Msg("kafka brokers not configured, event publishing disabled")
		return NopPublisher{}
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
	}

	return &kafkaPublisher{
		cartWriter:  newWriter(cfg.CartTopic),
		orderWriter: newWriter(cfg.OrderTopic),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// CartUpdated publishes a cart-updated event keyed by user ID.
func (p *kafkaPublisher) CartUpdated(ctx context.Context, event CartUpdatedEvent) {
	if err := publishJSON(ctx, p.cartWriter, event.UserID, event); err != nil {
		p.logger.Error().
			Err(err).
			Str("user_id", event.UserID).
			Str("operation", event.Operation).
			Msg("failed to publish cart-updated event")
	}
}

// OrderConfirmed publishes an order-confirmed event keyed by order number.
func (p *kafkaPublisher) OrderConfirmed(ctx context.Context, event OrderConfirmedEvent) {
	if err := publishJSON(ctx, p.orderWriter, event.OrderNumber, event); err != nil {
		p.logger.Error().
			Err(err).
			Str("order_number", event.OrderNumber).
			Msg("failed to publish order-confirmed event")
	}
}

// Close flushes and closes both writers.
func (p *kafkaPublisher) Close() error {
	if err := p.cartWriter.Close(); err != nil {
		return fmt.Errorf("failed to close cart writer: %w", err)
	}
	if err := p.orderWriter.Close(); err != nil {
		return fmt.Errorf("failed to close order writer: %w", err)
	}
	return nil
}

// publishJSON marshals the payload and writes one keyed message.
func publishJSON(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

// splitBrokers parses a comma-separated broker list, dropping blanks.
func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NopPublisher discards all events. Used when Kafka is not configured and
// in tests.
type NopPublisher struct{}

func (NopPublisher) CartUpdated(context.Context, CartUpdatedEvent)       {}
func (NopPublisher) OrderConfirmed(context.Context, OrderConfirmedEvent) {}
func (NopPublisher) Close() error                                        { return nil }
