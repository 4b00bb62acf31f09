package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/job"
)

const shutdownTimeout = 5 * time.Second

// HTTPServer 封装 HTTP 服务运行所需的依赖。
type HTTPServer struct {
	Engine *gin.Engine
	Logger *zap.Logger
	Config app.Config
	Job    *job.InventoryJob
}

// NewHTTPServer 构建 HTTPServer。
func NewHTTPServer(engine *gin.Engine, logger *zap.Logger, cfg app.Config, inventory *job.InventoryJob) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{
		Engine: engine,
		Logger: logger,
		Config: cfg,
		Job:    inventory,
	}
}

// Run 启动 HTTP 服务及清单任务，ctx 取消后优雅退出。
func (s *HTTPServer) Run(ctx context.Context) error {
	listen := strings.TrimSpace(s.Config.HTTP.Listen)
	if listen == "" {
		listen = ":8080"
	}

	if s.Job != nil {
		cancelJob := s.Job.Start(ctx)
		defer cancelJob()
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-served:
			return
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.Warn("http server shutdown failed", zap.Error(err))
		}
	}()

	s.Logger.Info("http server starting", zap.String("listen", listen))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Logger.Info("http server stopped")
	return nil
}

// Shutdown 释放资源。
func (s *HTTPServer) Shutdown() {
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
}
