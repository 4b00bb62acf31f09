package ioc

import (
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/logging"
)

// InitLogger 构建全局 logger。
func InitLogger(cfg app.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level)
}
