package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/colporter/pkg/logger"
)

// Publisher emits inventory count events. Messages are keyed by program and
// book so events for one book stay ordered on a single partition.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewPublisher connects a synchronous producer to brokers
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "colporter-inventory"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.Logger.Info().Strs("brokers", brokers).Str("topic", topic).Msg("Count event publisher ready")
	return NewPublisherWithProducer(producer, topic), nil
}

// NewPublisherWithProducer wraps an existing producer. An empty topic means
// TopicCounts.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = TopicCounts
	}
	return &Publisher{producer: producer, topic: topic, now: time.Now}
}

// PublishCountSaved announces a stored manual count
func (p *Publisher) PublishCountSaved(ctx context.Context, event CountEvent) error {
	event.EventType = EventTypeCountSaved
	return p.publish(ctx, event)
}

// PublishCountConfirmed announces a confirmed discrepancy and the new stock
func (p *Publisher) PublishCountConfirmed(ctx context.Context, event CountEvent) error {
	event.EventType = EventTypeCountConfirmed
	return p.publish(ctx, event)
}

func (p *Publisher) publish(ctx context.Context, event CountEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.Timestamp = p.now().UTC()

	ctx, span := otel.Tracer(tracerName).Start(ctx, p.topic+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.message.id", event.EventID),
			attribute.String("colporter.event_type", event.EventType),
			attribute.Int64("colporter.book_id", int64(event.BookID)),
			attribute.String("colporter.count_date", event.CountDate),
		),
	)
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode event")
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(headerEventType), Value: []byte(event.EventType)},
		{Key: []byte(headerEventID), Value: []byte(event.EventID)},
	}
	otel.GetTextMapPropagator().Inject(ctx, recordHeaders{&headers})

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   p.topic,
		Key:     sarama.StringEncoder(fmt.Sprintf("%d:%d", event.ProgramID, event.BookID)),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		logger.Error(ctx).Err(err).
			Str("event_type", event.EventType).
			Uint("book_id", event.BookID).
			Msg("Failed to publish count event")
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.destination.partition", int(partition)),
		attribute.Int64("messaging.kafka.message.offset", offset),
	)
	logger.Debug(ctx).
		Str("event_type", event.EventType).
		Str("event_id", event.EventID).
		Uint("book_id", event.BookID).
		Str("status", event.Status).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Count event published")
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
