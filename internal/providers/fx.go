package providers

import (
	"github.com/smallbiznis/semah/internal/providers/email"
	"github.com/smallbiznis/semah/internal/providers/queue"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	queue.Module,
)
