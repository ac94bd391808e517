package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingdashboard"
	"github.com/smallbiznis/clientdesk/internal/client"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	"github.com/smallbiznis/clientdesk/internal/ledger"
	"github.com/smallbiznis/clientdesk/internal/locker"
	"github.com/smallbiznis/clientdesk/internal/migration"
	"github.com/smallbiznis/clientdesk/internal/obligation"
	"github.com/smallbiznis/clientdesk/internal/observability"
	"github.com/smallbiznis/clientdesk/internal/scheduler"
	"github.com/smallbiznis/clientdesk/internal/server"
	"github.com/smallbiznis/clientdesk/internal/task"
	"github.com/smallbiznis/clientdesk/pkg/db"
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
		locker.Module,

		// Functional Domains
		client.Module,
		ledger.Module,
		task.Module,
		obligation.Module,
		billingdashboard.Module,

		// Background jobs and HTTP surface
		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
