package ioc

import (
	"context"

	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
)

// InitPortalClient 登录门户并构建客户端。
func InitPortalClient(ctx context.Context, cfg app.Config, logger *zap.Logger) (*ifb.Client, error) {
	clientCfg := cfg.ClientConfig()
	clientCfg.Session.Logger = logger.Named("portal")
	return ifb.New(ctx, clientCfg, cfg.Credentials())
}
