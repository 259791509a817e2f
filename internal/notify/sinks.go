package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/models"
)

// Publisher is the part of the RabbitMQ connection the sink needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error
}

// RabbitMQSink publishes notifications as JSON to a topic exchange. Without
// a configured routing key the event type is used as the key.
type RabbitMQSink struct {
	publisher  Publisher
	exchange   string
	routingKey string
}

// NewRabbitMQSink creates a sink publishing to exchange.
func NewRabbitMQSink(publisher Publisher, exchange, routingKey string) *RabbitMQSink {
	return &RabbitMQSink{publisher: publisher, exchange: exchange, routingKey: routingKey}
}

func (s *RabbitMQSink) Name() string { return "rabbitmq" }

func (s *RabbitMQSink) Emit(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	key := s.routingKey
	if key == "" {
		key = string(n.EventType)
	}
	headers := amqp.Table{
		"event_type": string(n.EventType),
		"request_id": n.RequestID,
	}
	return s.publisher.Publish(ctx, s.exchange, key, body, headers)
}

// LogSink writes notifications to the log. It is the default when no broker
// or endpoint is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(_ context.Context, n models.Notification) error {
	s.logger.Info("Shipment notification",
		zap.String("event_type", string(n.EventType)),
		zap.String("order_id", n.OrderID),
		zap.String("awb", n.AWB),
		zap.String("new_status", string(n.NewStatus)),
		zap.String("document_url", n.DocumentURL),
		zap.String("request_id", n.RequestID),
	)
	return nil
}
