package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/UDDITwork/shipsarthi-sub005/internal/auth"
	"github.com/UDDITwork/shipsarthi-sub005/internal/config"
	"github.com/UDDITwork/shipsarthi-sub005/internal/database"
	"github.com/UDDITwork/shipsarthi-sub005/internal/dedupe"
	"github.com/UDDITwork/shipsarthi-sub005/internal/imagestore"
	"github.com/UDDITwork/shipsarthi-sub005/internal/metrics"
	"github.com/UDDITwork/shipsarthi-sub005/internal/notify"
	"github.com/UDDITwork/shipsarthi-sub005/internal/processor"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
	"github.com/UDDITwork/shipsarthi-sub005/internal/rabbitmq"
	"github.com/UDDITwork/shipsarthi-sub005/internal/store"
	"github.com/UDDITwork/shipsarthi-sub005/internal/validation"
)

// Service holds all application dependencies
// This eliminates global state and enables proper dependency injection
type Service struct {
	Config *config.Config
	Logger *zap.Logger

	DB     *gorm.DB
	Redis  *redis.Client
	RMQ    *rabbitmq.Connection
	Images *imagestore.GCS

	Store      *store.Store
	Auth       *auth.Authenticator
	Validator  *validation.Validator
	Dedupe     *dedupe.Deduplicator
	Queue      *queue.Queue
	Processor  *processor.Processor
	Worker     *queue.Worker
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Metrics

	cancelWorker context.CancelFunc
}

// NewService connects to every backing system and wires the pipeline. On
// error whatever was already opened is closed again.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (svc *Service, err error) {
	svc = &Service{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			svc.closeBackends()
			svc = nil
		}
	}()

	svc.DB, err = database.Connect(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	svc.Store = store.New(svc.DB, logger)

	var cache dedupe.Cache
	if cfg.Redis.Enabled() {
		svc.Redis, err = dedupe.ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		cache = dedupe.NewRedisCache(svc.Redis, cfg.Redis.TTL)
	}
	svc.Dedupe = dedupe.New(svc.Store, cache, logger)

	svc.Images, err = imagestore.NewGCS(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	svc.Metrics = metrics.New()

	sink, err := svc.notificationSink()
	if err != nil {
		return nil, err
	}
	svc.Dispatcher = notify.NewDispatcher(sink, cfg.Notify.BufferSize, cfg.Notify.Timeout, svc.Metrics, logger)

	svc.Auth = auth.New(auth.Config{
		APIKey:              cfg.Webhook.APIKey,
		BearerToken:         cfg.Webhook.BearerToken,
		IPAllowlist:         cfg.Webhook.IPAllowlist,
		EnforceIPAllowlist:  cfg.Webhook.EnforceIPAllowlist,
		BlockNonAllowlisted: cfg.Webhook.BlockNonAllowlisted,
	}, logger)
	svc.Validator = validation.New(cfg.Processor.MaxImageBytes)

	svc.Queue = queue.New(cfg.Queue, logger)
	svc.Metrics.RegisterQueue(svc.Queue.Stats)
	svc.Processor = processor.New(svc.Store, svc.Images, svc.Dispatcher, svc.Dedupe, cfg.Processor, logger)
	svc.Worker = queue.NewWorker(svc.Queue, svc.Processor, svc.Metrics, logger)

	return svc, nil
}

func (s *Service) notificationSink() (notify.Sink, error) {
	cfg := s.Config
	switch cfg.Notify.Sink {
	case config.NotifySinkRabbitMQ:
		s.RMQ = rabbitmq.NewConnection(&cfg.RabbitMQ, s.Logger)
		if err := s.RMQ.Connect(); err != nil {
			s.RMQ = nil
			return nil, err
		}
		return notify.NewRabbitMQSink(s.RMQ, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey), nil
	case config.NotifySinkHTTP:
		return notify.NewHTTPSink(cfg.Notify.HTTPURL, cfg.Notify.HTTPSecret, &http.Client{Timeout: cfg.Notify.Timeout}), nil
	default:
		return notify.NewLogSink(s.Logger), nil
	}
}

// PingDatabase is used by the readiness probe.
func (s *Service) PingDatabase(ctx context.Context) error {
	return database.HealthCheck(ctx, s.DB)
}

// Start launches the notification dispatcher and the job worker.
func (s *Service) Start(ctx context.Context) {
	s.Dispatcher.Start()

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelWorker = cancel
	go s.Worker.Run(workerCtx)
}

// Shutdown stops taking jobs, lets the in-flight job finish, drains pending
// notifications and closes every connection. Jobs still queued are dropped
// and logged by Queue.Stop.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	s.Queue.Stop()
	if s.cancelWorker != nil {
		s.cancelWorker()
		select {
		case <-s.Worker.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("worker did not stop: %w", ctx.Err()))
		}
	}

	if err := s.Dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notification dispatcher: %w", err))
	}

	s.closeBackends()
	return errors.Join(errs...)
}

func (s *Service) closeBackends() {
	if s.Images != nil {
		if err := s.Images.Close(); err != nil {
			s.Logger.Error("Error closing GCS client", zap.Error(err))
		}
	}
	if s.RMQ != nil {
		s.RMQ.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if s.DB != nil {
		if err := database.Close(s.DB, s.Logger); err != nil {
			s.Logger.Error("Error closing database", zap.Error(err))
		}
	}
}
