package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/internal/config"
	"github.com/sharenet/packetpool/internal/migration"
	"github.com/sharenet/packetpool/internal/observability"
	"github.com/sharenet/packetpool/internal/reclaimer"
	"github.com/sharenet/packetpool/internal/server"
	"github.com/sharenet/packetpool/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		server.Module,
		reclaimer.Module,

		fx.Invoke(reclaimer.Start),
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
