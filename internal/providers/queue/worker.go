package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	clientdomain "github.com/smallbiznis/semah/internal/client/domain"
	"github.com/smallbiznis/semah/internal/config"
	"github.com/smallbiznis/semah/internal/observability/metrics"
	"github.com/smallbiznis/semah/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BookingNotifier emails the client once a booking is committed.
type BookingNotifier struct {
	clients clientdomain.Service
	mailer  email.Provider
	log     *zap.Logger
	metrics *metrics.Metrics
}

type NotifierParams struct {
	fx.In

	Clients clientdomain.Service
	Mailer  email.Provider
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewBookingNotifier(p NotifierParams) *BookingNotifier {
	return &BookingNotifier{
		clients: p.Clients,
		mailer:  p.Mailer,
		log:     p.Log.Named("queue.notifier"),
		metrics: p.Metrics,
	}
}

func (n *BookingNotifier) HandleBookingFulfilled(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingFulfilled(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log := n.log.With(zap.String("booking_id", payload.BookingID))

	clientID, err := snowflake.ParseString(payload.ClientID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, ErrInvalidPayload)
	}
	client, err := n.clients.GetByID(ctx, clientID)
	if errors.Is(err, clientdomain.ErrNotFound) {
		log.Warn("client removed before notification")
		n.metrics.RecordNotificationQueued(ctx, "skipped")
		return nil
	}
	if err != nil {
		return err
	}

	err = n.mailer.SendBookingConfirmation(ctx, client.Email, email.BookingConfirmation{
		ClientName: client.Name,
		Content:    payload.Content,
		ViewURL:    payload.ViewURL,
	})
	if errors.Is(err, email.ErrNoRecipients) {
		log.Warn("client has no email address")
		n.metrics.RecordNotificationQueued(ctx, "skipped")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err != nil {
		log.Warn("booking email failed", zap.Error(err))
		n.metrics.RecordNotificationQueued(ctx, "failed")
		return err
	}
	n.metrics.RecordNotificationQueued(ctx, "sent")
	return nil
}

// NewServer runs the notification worker alongside the API when redis is
// configured.
func NewServer(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, notifier *BookingNotifier) *asynq.Server {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}

	srv := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			QueueNotifications: 1,
		},
		Logger: log.Named("queue.worker").Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingFulfilled, notifier.HandleBookingFulfilled)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start(mux)
		},
		OnStop: func(ctx context.Context) error {
			srv.Shutdown()
			return nil
		},
	})
	return srv
}
