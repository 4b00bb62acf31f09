//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"ifbcloud/ioc"
	"ifbcloud/pkg/server"
)

func InitApp(ctx context.Context) (*server.HTTPServer, error) {
	panic(wire.Build(
		ioc.InitConfig,
		ioc.InitLogger,
		ioc.InitRegistry,
		ioc.InitPortalClient,
		ioc.InitAppService,
		ioc.InitPortalHandler,
		ioc.InitGinEngine,
		ioc.InitInventoryJob,
		server.NewHTTPServer,
	))
}
