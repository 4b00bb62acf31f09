package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
)

// PortalService 由 app.Service 实现。
type PortalService interface {
	Instances(ctx context.Context) ([]ifb.Instance, error)
	Disks(ctx context.Context) ([]ifb.Disk, error)
	Appliances() (ifb.ApplianceCatalog, error)
	ResolveIP(ctx context.Context, sel ifb.InstanceSelector, policy ifb.PollPolicy) (string, error)
	Start(ctx context.Context, p app.StartParams) (app.StartResult, error)
	Stop(ctx context.Context, p app.StopParams) (string, error)
}

// PortalHandler 负责处理实例、磁盘与镜像相关的 HTTP 请求。
type PortalHandler struct {
	svc    PortalService
	logger *zap.Logger
}

// NewPortalHandler 构建一个新的 PortalHandler。
func NewPortalHandler(svc PortalService, logger *zap.Logger) *PortalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortalHandler{svc: svc, logger: logger}
}

// RegisterRoutes 将门户路由注册到给定的路由组。
func (h *PortalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/instances", h.handleInstances)
	rg.POST("/instances", h.handleStart)
	rg.GET("/instances/ip", h.handleIP)
	rg.POST("/instances/:id/stop", h.handleStop)
	rg.GET("/disks", h.handleDisks)
	rg.GET("/appliances", h.handleAppliances)
}

func (h *PortalHandler) handleInstances(c *gin.Context) {
	instances, err := h.svc.Instances(c.Request.Context())
	if err != nil {
		h.fail(c, "list instances", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": nonNil(instances)})
}

func (h *PortalHandler) handleDisks(c *gin.Context) {
	disks, err := h.svc.Disks(c.Request.Context())
	if err != nil {
		h.fail(c, "list disks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disks": nonNil(disks)})
}

func (h *PortalHandler) handleAppliances(c *gin.Context) {
	catalog, err := h.svc.Appliances()
	if err != nil {
		h.fail(c, "list appliances", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appliances": catalog})
}

type ipResponse struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	IP   string `json:"ip"`
}

func (h *PortalHandler) handleIP(c *gin.Context) {
	sel := ifb.InstanceSelector{
		Name: strings.TrimSpace(c.Query("name")),
		ID:   strings.TrimSpace(c.Query("id")),
	}
	var policy ifb.PollPolicy
	if raw := c.Query("attempts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "attempts 必须为正整数"})
			return
		}
		policy = ifb.PollPolicy{Attempts: n, Interval: 10 * time.Second}
	}
	if raw := c.Query("interval"); raw != "" && policy.Attempts > 0 {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval 格式错误"})
			return
		}
		policy.Interval = d
	}
	ip, err := h.svc.ResolveIP(c.Request.Context(), sel, policy)
	if err != nil {
		h.fail(c, "resolve ip", err)
		return
	}
	c.JSON(http.StatusOK, ipResponse{Name: sel.Name, ID: sel.ID, IP: ip})
}

func (h *PortalHandler) handleStart(c *gin.Context) {
	var req app.StartParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	res, err := h.svc.Start(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "start instance", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PortalHandler) handleStop(c *gin.Context) {
	id, err := h.svc.Stop(c.Request.Context(), app.StopParams{ID: c.Param("id")})
	if err != nil {
		h.fail(c, "stop instance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "operation": "shutdown"})
}

func (h *PortalHandler) fail(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor 将门户错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	switch {
	case ifb.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, ifb.ErrInstanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
