package ioc

import (
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
)

// InitAppService 构建门户业务服务。
func InitAppService(client *ifb.Client, cfg app.Config, logger *zap.Logger) (*app.Service, error) {
	return app.NewService(client, cfg, logger)
}
