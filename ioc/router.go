package ioc

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/router"
)

// InitPortalHandler 构建门户 HTTP 处理器。
func InitPortalHandler(svc *app.Service, logger *zap.Logger) *router.PortalHandler {
	return router.NewPortalHandler(svc, logger)
}

// InitGinEngine 构建 gin 引擎。
func InitGinEngine(portalHandler *router.PortalHandler, reg *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	return router.NewEngine(portalHandler, reg, logger)
}
