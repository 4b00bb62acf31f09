package ioc

import (
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/job"
)

// InitInventoryJob 构建实例清单定时任务。
func InitInventoryJob(cfg app.Config, svc *app.Service, logger *zap.Logger) *job.InventoryJob {
	return job.NewInventoryJob(cfg, svc, logger.Named("inventory"))
}
