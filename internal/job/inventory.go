package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
	"ifbcloud/pkg/util"
)

var errAlreadyRunning = errors.New("清单任务仍在运行")

// InstanceLister 列出实例，由 app.Service 实现。
type InstanceLister interface {
	Instances(ctx context.Context) ([]ifb.Instance, error)
}

// InventoryJob 按 cron 表达式定期列出实例并记录清单变化。
type InventoryJob struct {
	cronExpr string
	lister   InstanceLister
	logger   *zap.Logger
	cron     *cron.Cron
	parent   context.Context
	mu       sync.Mutex
	running  bool
	lastHash string
}

// NewInventoryJob 根据配置构建清单任务，cron 表达式为空时任务不启动。
func NewInventoryJob(cfg app.Config, lister InstanceLister, logger *zap.Logger) *InventoryJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryJob{
		cronExpr: strings.TrimSpace(cfg.Job.InventoryCron),
		lister:   lister,
		logger:   logger,
	}
}

// Start 启动调度器，返回用于停止任务的函数。
func (j *InventoryJob) Start(parent context.Context) context.CancelFunc {
	if j == nil {
		return func() {}
	}
	if j.cronExpr == "" {
		j.logger.Info("inventory job disabled by configuration")
		return func() {}
	}
	j.parent = parent
	c := cron.New()
	id, err := c.AddFunc(j.cronExpr, j.runScheduled)
	if err != nil {
		j.logger.Error("failed to register inventory job", zap.String("cron", j.cronExpr), zap.Error(err))
		return func() {}
	}
	j.cron = c
	c.Start()
	j.logger.Info("inventory job started", zap.String("cron", j.cronExpr), zap.Time("next", c.Entry(id).Next))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			ctx := j.cron.Stop()
			<-ctx.Done()
			j.logger.Info("inventory job stopped")
		})
	}

	go func() {
		<-parent.Done()
		stop()
	}()

	return stop
}

func (j *InventoryJob) runScheduled() {
	ctx := context.Background()
	if j.parent != nil {
		if j.parent.Err() != nil {
			j.logger.Info("scheduler context cancelled, skip inventory")
			return
		}
		ctx = j.parent
	}
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, errAlreadyRunning) {
		j.logger.Error("scheduled inventory failed", zap.Error(err))
	}
}

// RunOnce 执行一次清单任务，返回清单相对上次是否变化。上一次尚未结束时直接跳过。
func (j *InventoryJob) RunOnce(ctx context.Context) (bool, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn("previous inventory still running, skip current schedule")
		return false, errAlreadyRunning
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	instances, err := j.lister.Instances(ctx)
	if err != nil {
		return false, err
	}
	records := make([]map[string]string, 0, len(instances))
	for _, in := range instances {
		j.logger.Info("instance",
			zap.String("id", in.ID),
			zap.String("name", in.Name),
			zap.String("status", in.Status),
			zap.String("ip", in.IP))
		records = append(records, map[string]string{
			"id":     in.ID,
			"name":   in.Name,
			"status": in.Status,
			"ip":     in.IP,
		})
	}
	hash := util.Fingerprint(records)

	j.mu.Lock()
	changed := hash != j.lastHash
	j.lastHash = hash
	j.mu.Unlock()

	j.logger.Info("inventory completed",
		zap.Int("instances", len(instances)),
		zap.Bool("changed", changed),
		zap.Duration("duration", time.Since(start)))
	return changed, nil
}
