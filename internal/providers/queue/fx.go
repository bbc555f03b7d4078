package queue

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.queue",
	fx.Provide(NewDispatcher),
	fx.Provide(NewBookingNotifier),
	fx.Provide(NewServer),
	fx.Invoke(func(*asynq.Server) {}),
)
