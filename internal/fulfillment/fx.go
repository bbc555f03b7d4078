package fulfillment

import (
	"github.com/smallbiznis/semah/internal/fulfillment/repository"
	"github.com/smallbiznis/semah/internal/fulfillment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fulfillment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
