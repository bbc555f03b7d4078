package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/semah/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Dispatcher hands committed fulfillments to downstream transports.
type Dispatcher interface {
	DispatchBookingFulfilled(ctx context.Context, payload BookingFulfilledPayload) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqDispatcher struct {
	client enqueuer
	log    *zap.Logger
}

func NewAsynqDispatcher(client enqueuer, log *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, log: log.Named("queue.dispatcher")}
}

func (d *AsynqDispatcher) DispatchBookingFulfilled(ctx context.Context, payload BookingFulfilledPayload) error {
	task, opts, err := NewBookingFulfilledTask(payload)
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.log.Debug("booking task already queued", zap.String("booking_id", payload.BookingID))
		return nil
	}
	if err != nil {
		return err
	}
	d.log.Debug("booking task queued",
		zap.String("booking_id", payload.BookingID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

type NoopDispatcher struct{}

func (NoopDispatcher) DispatchBookingFulfilled(context.Context, BookingFulfilledPayload) error {
	return nil
}

func RedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     strings.TrimSpace(cfg.RedisAddr),
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.QueueRedisDB,
	}
}

// NewDispatcher falls back to a no-op dispatcher when redis is not
// configured.
func NewDispatcher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Dispatcher {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info("task queue disabled, booking events are not published")
		return NoopDispatcher{}
	}
	client := asynq.NewClient(RedisOpt(cfg))
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close()
			},
		})
	}
	return NewAsynqDispatcher(client, log)
}
