package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ifbcloud/internal/ifb"
)

// DefaultInstanceType 未指定类型时创建的实例类型。
const DefaultInstanceType = "c2.small"

// Portal 抽象门户客户端，便于测试替换实现。
type Portal interface {
	ListInstances(ctx context.Context) ([]ifb.Instance, error)
	ListDisks(ctx context.Context) ([]ifb.Disk, error)
	Appliances() (ifb.ApplianceCatalog, error)
	StartInstance(ctx context.Context, req ifb.StartRequest) error
	StopInstance(ctx context.Context, id string) error
	ResolveIPWithPolicy(ctx context.Context, sel ifb.InstanceSelector, policy ifb.PollPolicy) (string, error)
	ResolveID(ctx context.Context, name string) (string, bool, error)
	ResolveDiskUUID(ctx context.Context, name string) (string, bool, error)
}

// Service 在门户客户端之上实现命令行与 HTTP 共用的业务流程，并串行化对客户端的访问。
type Service struct {
	mu               sync.Mutex
	portal           Portal
	poll             ifb.PollPolicy
	instanceTypes    ifb.InstanceTypes
	defaultAppliance int
	logger           *zap.Logger
}

// NewService 根据配置构建 Service。
func NewService(portal Portal, cfg Config, logger *zap.Logger) (*Service, error) {
	if portal == nil {
		return nil, fmt.Errorf("必须提供门户客户端")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		portal:           portal,
		poll:             cfg.PollPolicy(),
		instanceTypes:    ifb.InstanceTypes(cfg.InstanceTypes),
		defaultAppliance: cfg.DefaultAppliance,
		logger:           logger,
	}, nil
}

// Instances 列出实例。
func (s *Service) Instances(ctx context.Context) ([]ifb.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portal.ListInstances(ctx)
}

// Disks 列出磁盘。
func (s *Service) Disks(ctx context.Context) ([]ifb.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portal.ListDisks(ctx)
}

// Appliances 返回镜像目录。
func (s *Service) Appliances() (ifb.ApplianceCatalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portal.Appliances()
}

// ResolveIP 查找实例 IP，policy.Attempts 为 0 时使用配置中的轮询策略。
func (s *Service) ResolveIP(ctx context.Context, sel ifb.InstanceSelector, policy ifb.PollPolicy) (string, error) {
	if policy.Attempts <= 0 {
		policy = s.poll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portal.ResolveIPWithPolicy(ctx, sel, policy)
}

// StartParams 创建实例的参数。镜像可按名称或 ID 指定，磁盘可按名称或 UUID 指定。
type StartParams struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Appliance   string `json:"appliance"`
	ApplianceID int    `json:"appliance_id"`
	DiskName    string `json:"disk_name"`
	DiskUUID    string `json:"disk_uuid"`
}

// StartResult 创建成功后的实例地址。
type StartResult struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// Start 解析磁盘与镜像后创建实例，并等待实例出现 IP。
func (s *Service) Start(ctx context.Context, p StartParams) (StartResult, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return StartResult{}, fmt.Errorf("%w: 实例名称不能为空", ifb.ErrInvalidArgument)
	}
	instanceType := p.Type
	if instanceType == "" {
		instanceType = DefaultInstanceType
	}
	if _, err := s.instanceTypes.Code(instanceType); err != nil {
		return StartResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applianceID, err := s.resolveAppliance(p)
	if err != nil {
		return StartResult{}, err
	}
	diskUUID, err := s.resolveDisk(ctx, p)
	if err != nil {
		return StartResult{}, err
	}
	err = s.portal.StartInstance(ctx, ifb.StartRequest{
		Name:        name,
		Type:        instanceType,
		DiskUUID:    diskUUID,
		ApplianceID: applianceID,
	})
	if err != nil {
		return StartResult{}, err
	}
	ip, err := s.portal.ResolveIPWithPolicy(ctx, ifb.InstanceSelector{Name: name}, s.poll)
	if err != nil {
		return StartResult{}, fmt.Errorf("实例 %s 已提交创建: %w", name, err)
	}
	s.logger.Info("instance started", zap.String("name", name), zap.String("ip", ip))
	return StartResult{Name: name, IP: ip}, nil
}

func (s *Service) resolveAppliance(p StartParams) (int, error) {
	if p.Appliance != "" && p.ApplianceID != 0 {
		return 0, fmt.Errorf("%w: 镜像名称与镜像 ID 只能指定一个", ifb.ErrInvalidArgument)
	}
	if p.Appliance == "" {
		if p.ApplianceID != 0 {
			return p.ApplianceID, nil
		}
		return s.defaultAppliance, nil
	}
	catalog, err := s.portal.Appliances()
	if err != nil {
		return 0, fmt.Errorf("%w: 镜像目录不可用: %w", ifb.ErrUnknownAppliance, err)
	}
	id, ok := catalog.ID(p.Appliance)
	if !ok {
		return 0, fmt.Errorf("%w: %q，可选: %s", ifb.ErrUnknownAppliance, p.Appliance, strings.Join(catalog.Names(), ", "))
	}
	return id, nil
}

func (s *Service) resolveDisk(ctx context.Context, p StartParams) (string, error) {
	if p.DiskUUID != "" || p.DiskName == "" {
		return p.DiskUUID, nil
	}
	uuid, ok, err := s.portal.ResolveDiskUUID(ctx, p.DiskName)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ifb.ErrUnknownDisk, p.DiskName)
	}
	return uuid, nil
}

// StopParams 停止实例的参数，名称与 ID 二选一。
type StopParams struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Stop 关闭实例，按名称指定时先查出 ID。返回实际关闭的实例 ID。
func (s *Service) Stop(ctx context.Context, p StopParams) (string, error) {
	if (p.Name == "") == (p.ID == "") {
		return "", fmt.Errorf("%w: 必须且只能指定实例名称或 ID 之一", ifb.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID
	if id == "" {
		found, ok, err := s.portal.ResolveID(ctx, p.Name)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: name=%s", ifb.ErrInstanceNotFound, p.Name)
		}
		id = found
	}
	if err := s.portal.StopInstance(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}
