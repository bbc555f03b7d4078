package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/semah/internal/assignment"
	"github.com/smallbiznis/semah/internal/authorization"
	"github.com/smallbiznis/semah/internal/catalog"
	"github.com/smallbiznis/semah/internal/checkout"
	"github.com/smallbiznis/semah/internal/client"
	"github.com/smallbiznis/semah/internal/clock"
	"github.com/smallbiznis/semah/internal/config"
	"github.com/smallbiznis/semah/internal/fulfillment"
	"github.com/smallbiznis/semah/internal/identity"
	"github.com/smallbiznis/semah/internal/migration"
	"github.com/smallbiznis/semah/internal/observability"
	"github.com/smallbiznis/semah/internal/payment"
	"github.com/smallbiznis/semah/internal/providers"
	"github.com/smallbiznis/semah/internal/ratelimit"
	"github.com/smallbiznis/semah/internal/seed"
	"github.com/smallbiznis/semah/internal/server"
	"github.com/smallbiznis/semah/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Identity and access
		identity.Module,
		authorization.Module,

		// Purchase pipeline
		client.Module,
		catalog.Module,
		assignment.Module,
		payment.Module,
		fulfillment.Module,
		ratelimit.Module,
		providers.Module,
		checkout.Module,

		server.Module,

		// Local development only
		seed.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
