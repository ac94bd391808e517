package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/client"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	"github.com/smallbiznis/clientdesk/internal/ledger"
	"github.com/smallbiznis/clientdesk/internal/locker"
	"github.com/smallbiznis/clientdesk/internal/obligation"
	"github.com/smallbiznis/clientdesk/internal/observability"
	"github.com/smallbiznis/clientdesk/internal/scheduler"
	"github.com/smallbiznis/clientdesk/internal/task"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"go.uber.org/fx"
)

// The scheduler binary runs the billing pass without the HTTP surface.
// Several replicas may run; the redis lock keeps passes from overlapping.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locker.Module,

		// Domain services required by scheduler
		client.Module,
		ledger.Module,
		task.Module,
		obligation.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
