package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/colporter/pkg/logger"
)

const tracerName = "github.com/tair/colporter/kafka"

var (
	errMissingEventType = errors.New("message without event_type header")
	errNoHandler        = errors.New("no handler registered for event type")
)

// EventHandler processes one transaction event. Returning an error only
// gets the failure logged; the offset is committed regardless, so handlers
// must be idempotent.
type EventHandler func(ctx context.Context, event TransactionEvent) error

// Consumer reads transaction events in a consumer group and dispatches them
// by the event_type header
type Consumer struct {
	group  sarama.ConsumerGroup
	topics []string

	mu       sync.RWMutex
	handlers map[string]EventHandler
}

// NewConsumer joins groupID on brokers
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "colporter-inventory"
	cfg.Version = sarama.V2_6_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to join consumer group %s: %w", groupID, err)
	}
	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Transaction event consumer ready")
	return &Consumer{group: group, topics: topics, handlers: make(map[string]EventHandler)}, nil
}

// RegisterHandler routes eventType to handler, replacing any previous one
func (c *Consumer) RegisterHandler(eventType string, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]EventHandler)
	}
	c.handlers[eventType] = handler
}

func (c *Consumer) handler(eventType string) (EventHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[eventType]
	return h, ok
}

// Start consumes in the background until ctx is cancelled or the group is
// closed. It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			logger.Logger.Error().Err(err).Msg("Consumer group error")
		}
	}()

	go func() {
		handler := &consumerGroupHandler{consumer: c}
		for {
			// Consume returns on every rebalance and must be called again
			err := c.group.Consume(ctx, c.topics, handler)
			switch {
			case errors.Is(err, sarama.ErrClosedConsumerGroup):
				return
			case err != nil:
				logger.Logger.Error().Err(err).Msg("Consume failed")
			}
			if ctx.Err() != nil {
				logger.Logger.Info().Msg("Transaction event consumer stopped")
				return
			}
		}
	}()
	return nil
}

// Close leaves the group
func (c *Consumer) Close() error {
	if c.group == nil {
		return nil
	}
	return c.group.Close()
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	logger.Logger.Info().
		Int32("generation", session.GenerationID()).
		Interface("claims", session.Claims()).
		Msg("Partitions assigned")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			_ = h.handleMessage(session.Context(), msg)
			session.MarkMessage(msg, "")
		}
	}
}

func (h *consumerGroupHandler) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	headers := messageHeaders(msg.Headers)
	eventType := headers.Get(headerEventType)

	ctx = otel.GetTextMapPropagator().Extract(ctx, headers)
	ctx, span := otel.Tracer(tracerName).Start(ctx, msg.Topic+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source.name", msg.Topic),
			attribute.Int("messaging.kafka.source.partition", int(msg.Partition)),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.message.id", headers.Get(headerEventID)),
			attribute.String("colporter.event_type", eventType),
		),
	)
	defer span.End()

	err := h.dispatch(ctx, eventType, msg.Value)
	log := logger.Debug(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handle event")
		log = logger.Warn(ctx).Err(err)
	}
	log.
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("event_type", eventType).
		Msg("Transaction event processed")
	return err
}

func (h *consumerGroupHandler) dispatch(ctx context.Context, eventType string, payload []byte) error {
	if eventType == "" {
		return errMissingEventType
	}
	handle, ok := h.consumer.handler(eventType)
	if !ok {
		return fmt.Errorf("%w: %s", errNoHandler, eventType)
	}

	var event TransactionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}
	if event.EventType == "" {
		event.EventType = eventType
	}
	return handle(ctx, event)
}
