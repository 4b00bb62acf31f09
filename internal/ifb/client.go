package ifb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ifbcloud/internal/metrics"
	"ifbcloud/internal/util"
)

const (
	defaultInstancePath     = "/cloud/instance"
	defaultStoragePath      = "/cloud/storage"
	defaultInstanceFormPath = "/cloud/instance/"
)

// PollPolicy 轮询实例 IP 的次数与间隔。
type PollPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultPollPolicy 5 次，每次间隔 10 秒。
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Attempts: 5, Interval: 10 * time.Second}
}

// Config 门户客户端配置。
type Config struct {
	Session          SessionConfig
	Layout           Layout
	InstancePath     string
	StoragePath      string
	InstanceFormPath string
	InstanceTypes    InstanceTypes
	Poll             PollPolicy
	// Sleep 轮询间隔的等待实现，为空时使用 util.Sleep。
	Sleep util.Sleeper
}

func (cfg Config) withDefaults() Config {
	if cfg.Layout.Version == "" {
		cfg.Layout = DefaultLayout()
	}
	if cfg.InstancePath == "" {
		cfg.InstancePath = defaultInstancePath
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = defaultStoragePath
	}
	if cfg.InstanceFormPath == "" {
		cfg.InstanceFormPath = defaultInstanceFormPath
	}
	if len(cfg.InstanceTypes) == 0 {
		cfg.InstanceTypes = DefaultInstanceTypes()
	}
	if cfg.Poll.Attempts <= 0 {
		cfg.Poll = DefaultPollPolicy()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = util.Sleep
	}
	if cfg.Session.LandingPath == "" {
		cfg.Session.LandingPath = cfg.InstancePath
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = zap.NewNop()
	}
	return cfg
}

// Client 基于页面抓取的门户客户端，不支持并发使用。
type Client struct {
	cfg          Config
	session      *Session
	appliances   ApplianceCatalog
	applianceErr error
	logger       *zap.Logger
}

// New 建立会话，并从登录后的落地页解析镜像目录。
func New(ctx context.Context, cfg Config, creds Credentials) (*Client, error) {
	cfg = cfg.withDefaults()
	session, landing, err := Establish(ctx, cfg.Session, creds)
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, session: session, logger: cfg.Session.Logger}
	c.appliances, c.applianceErr = parseAppliances(landing, cfg.Layout.Appliances)
	if c.applianceErr != nil {
		c.logger.Warn("appliance catalog unavailable", zap.Error(c.applianceErr))
	} else {
		c.logger.Debug("appliance catalog loaded", zap.Int("appliances", c.appliances.Len()))
	}
	return c, nil
}

func parseAppliances(page Page, layout ApplianceLayout) (ApplianceCatalog, error) {
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return ApplianceCatalog{}, err
	}
	options, err := ExtractAppliances(doc, layout)
	if err != nil {
		return ApplianceCatalog{}, err
	}
	return NewApplianceCatalog(options), nil
}

// InstanceTypes 返回客户端使用的实例类型表。
func (c *Client) InstanceTypes() InstanceTypes {
	return c.cfg.InstanceTypes
}

// Authenticate 重新登录并返回 path 对应的落地页。
func (c *Client) Authenticate(ctx context.Context, path string) (Page, error) {
	return c.session.Authenticate(ctx, path)
}

// ListInstances 返回当前账号下的实例。
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	page, err := c.Authenticate(ctx, c.cfg.InstancePath)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return nil, err
	}
	instances, err := ExtractInstances(doc, c.cfg.Layout.Instances)
	if err != nil {
		return nil, fmt.Errorf("布局 %s: %w", c.cfg.Layout.Version, err)
	}
	return instances, nil
}

// ListDisks 返回当前账号下的磁盘。
func (c *Client) ListDisks(ctx context.Context) ([]Disk, error) {
	page, err := c.Authenticate(ctx, c.cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(page.Body)
	if err != nil {
		return nil, err
	}
	disks, err := ExtractDisks(doc, c.cfg.Layout.Disks)
	if err != nil {
		return nil, fmt.Errorf("布局 %s: %w", c.cfg.Layout.Version, err)
	}
	return disks, nil
}

// Appliances 返回创建客户端时解析的镜像目录，不会重新抓取。
func (c *Client) Appliances() (ApplianceCatalog, error) {
	return c.appliances, c.applianceErr
}

// StartRequest 创建实例的参数，DiskUUID 可为空。
type StartRequest struct {
	Name        string
	Type        string
	DiskUUID    string
	ApplianceID int
}

// StartInstance 提交实例创建表单。参数校验在任何网络请求之前完成。
func (c *Client) StartInstance(ctx context.Context, req StartRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: 实例名称不能为空", ErrInvalidArgument)
	}
	code, err := c.cfg.InstanceTypes.Code(req.Type)
	if err != nil {
		return err
	}
	if c.applianceErr != nil {
		return fmt.Errorf("%w: 镜像目录不可用: %w", ErrUnknownAppliance, c.applianceErr)
	}
	if _, ok := c.appliances.Name(req.ApplianceID); !ok {
		return fmt.Errorf("%w: %d，可选: %s", ErrUnknownAppliance, req.ApplianceID, c.appliances.describe())
	}
	if _, err := c.Authenticate(ctx, c.cfg.InstancePath); err != nil {
		return err
	}
	form := url.Values{
		"appliance":              {strconv.Itoa(req.ApplianceID)},
		"filter_thematic_fields": {""},
		"filter_tools":           {""},
		"vm_name":                {req.Name},
		"instance_type":          {code},
		"instance_number":        {"1"},
		"storage":                {req.DiskUUID},
		"form_type":              {"instance_creation"},
	}
	if _, err := c.session.Submit(ctx, "start_instance", c.cfg.InstanceFormPath, form); err != nil {
		return err
	}
	c.logger.Info("instance creation submitted",
		zap.String("name", req.Name),
		zap.String("type", req.Type),
		zap.Int("appliance", req.ApplianceID),
		zap.String("disk", req.DiskUUID))
	return nil
}

// StopInstance 提交实例关机表单。
func (c *Client) StopInstance(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: 实例 ID 不能为空", ErrInvalidArgument)
	}
	if _, err := c.Authenticate(ctx, c.cfg.InstancePath); err != nil {
		return err
	}
	form := url.Values{
		"operation":        {"shutdown"},
		"targets":          {id},
		"instances_length": {"25"},
		"form_type":        {"instance_operation"},
	}
	if _, err := c.session.Submit(ctx, "stop_instance", c.cfg.InstanceFormPath, form); err != nil {
		return err
	}
	c.logger.Info("instance shutdown submitted", zap.String("id", id))
	return nil
}

// InstanceSelector 按名称或 ID 选择实例，二者必须恰好提供一个。
type InstanceSelector struct {
	Name string
	ID   string
}

func (s InstanceSelector) validate() error {
	if (s.Name == "") == (s.ID == "") {
		return fmt.Errorf("%w: 必须且只能指定实例名称或 ID 之一", ErrInvalidArgument)
	}
	return nil
}

func (s InstanceSelector) matches(in Instance) bool {
	if s.ID != "" {
		return in.ID == s.ID
	}
	return in.Name == s.Name
}

func (s InstanceSelector) String() string {
	if s.ID != "" {
		return "id=" + s.ID
	}
	return "name=" + s.Name
}

// ResolveIP 按默认轮询策略查找实例 IP。
func (c *Client) ResolveIP(ctx context.Context, sel InstanceSelector) (string, error) {
	return c.ResolveIPWithPolicy(ctx, sel, c.cfg.Poll)
}

// ResolveIPWithPolicy 反复列出实例直到匹配的实例出现并带有 IP。
// 等待可通过 ctx 取消，耗尽次数后返回 ErrInstanceNotFound。
func (c *Client) ResolveIPWithPolicy(ctx context.Context, sel InstanceSelector, policy PollPolicy) (string, error) {
	if err := sel.validate(); err != nil {
		return "", err
	}
	var (
		ip   string
		seen bool
	)
	attempts, err := util.Poll(ctx, policy.Attempts, policy.Interval, c.cfg.Sleep, func(attempt int) (bool, error) {
		instances, err := c.ListInstances(ctx)
		if err != nil {
			return false, err
		}
		for _, in := range instances {
			if !sel.matches(in) {
				continue
			}
			seen = true
			if in.IP != "" {
				ip = in.IP
				return true, nil
			}
		}
		c.logger.Debug("instance ip not available yet", zap.Stringer("instance", sel), zap.Int("attempt", attempt))
		return false, nil
	})
	metrics.IPPollAttempts.Observe(float64(attempts))
	if err != nil {
		return "", err
	}
	if ip != "" {
		return ip, nil
	}
	if seen {
		return "", fmt.Errorf("%w: %s 轮询 %d 次后仍没有 IP", ErrInstanceNotFound, sel, attempts)
	}
	return "", fmt.Errorf("%w: %s (已轮询 %d 次)", ErrInstanceNotFound, sel, attempts)
}

// ResolveID 按名称查找实例 ID，只查一次，找不到时 ok 为 false。
func (c *Client) ResolveID(ctx context.Context, name string) (string, bool, error) {
	instances, err := c.ListInstances(ctx)
	if err != nil {
		return "", false, err
	}
	for _, in := range instances {
		if in.Name == name {
			return in.ID, true, nil
		}
	}
	return "", false, nil
}

// ResolveDiskUUID 按名称查找磁盘 UUID，只查一次，找不到时 ok 为 false。
func (c *Client) ResolveDiskUUID(ctx context.Context, name string) (string, bool, error) {
	disks, err := c.ListDisks(ctx)
	if err != nil {
		return "", false, err
	}
	for _, d := range disks {
		if d.Name == name {
			return d.UUID, true, nil
		}
	}
	return "", false, nil
}
