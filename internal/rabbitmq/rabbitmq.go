// Package rabbitmq keeps a self-healing AMQP connection used to publish
// shipment notifications.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
)

// ErrNotConnected is returned when no open channel is available.
var ErrNotConnected = errors.New("rabbitmq channel is not open")

const (
	initialBackoff     = time.Second
	maxBackoff         = 30 * time.Second
	maxInitialAttempts = 10
	publishRetries     = 3
)

// Connection manages one AMQP connection and channel and re-establishes
// them when the broker drops either.
type Connection struct {
	cfg          *config.RabbitMQConfig
	logger       *zap.Logger
	conn         *amqp.Connection
	channel      *amqp.Channel
	stopChan     chan struct{}
	mu           sync.RWMutex
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewConnection creates an unconnected Connection.
func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Connect dials the broker, retrying with exponential backoff, declares the
// notification exchange and starts watching for connection loss.
func (c *Connection) Connect() error {
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := c.connect()
		if err == nil {
			c.logger.Info("Connected to RabbitMQ",
				zap.Int("attempt", attempt),
				zap.String("exchange", c.cfg.Exchange),
			)
			break
		}
		if attempt >= maxInitialAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxInitialAttempts, err)
		}
		c.logger.Warn("Connection to RabbitMQ failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-c.stopChan:
			return errors.New("rabbitmq connection closed while connecting")
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}

	go c.monitorConnection()
	return nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		_ = c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}

	conn, err := amqp.DialConfig(c.cfg.ConnectionURL(), amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Vhost:     c.cfg.VHost,
		Properties: amqp.Table{
			"connection_name": "courier-webhooks",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if c.cfg.Exchange != "" {
		err = ch.ExchangeDeclare(
			c.cfg.Exchange,
			amqp.ExchangeTopic,
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
		}
	}

	c.conn = conn
	c.channel = ch
	return nil
}

// monitorConnection reconnects whenever the connection or channel closes.
func (c *Connection) monitorConnection() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		var amqpErr *amqp.Error
		select {
		case <-c.stopChan:
			return
		case amqpErr = <-connClose:
		case amqpErr = <-channelClose:
		}
		if amqpErr == nil {
			// Graceful close from our side.
			select {
			case <-c.stopChan:
				return
			default:
			}
		}

		c.logger.Error("RabbitMQ connection lost, reconnecting", zap.Error(amqpErr))
		if !c.reconnect() {
			return
		}
	}
}

// reconnect loops until connected or closed. It reports false when closed.
func (c *Connection) reconnect() bool {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return true
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return false
		default:
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("Failed to reconnect to RabbitMQ, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-c.stopChan:
				return false
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return true
	}
}

// Close stops reconnection and closes the channel and connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}

// Publish sends a persistent JSON message. A publish that finds the channel
// closed is retried briefly while the monitor reconnects.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	delay := 100 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= publishRetries; attempt++ {
		c.mu.RLock()
		ch := c.channel
		c.mu.RUnlock()

		if ch == nil || ch.IsClosed() {
			lastErr = ErrNotConnected
		} else {
			err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Headers:      headers,
				Body:         body,
			})
			if err == nil {
				return nil
			}
			lastErr = err
			if !ch.IsClosed() {
				return fmt.Errorf("failed to publish message: %w", err)
			}
		}

		if attempt == publishRetries {
			break
		}
		c.logger.Warn("RabbitMQ channel unavailable for publish, retrying",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to publish message: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("failed to publish message after %d attempts: %w", publishRetries, lastErr)
}

// IsHealthy reports whether both the connection and channel are open.
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
