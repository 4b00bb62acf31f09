package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ifbcloud/internal/ifb"
)

const (
	EnvConfig   = "IFB_CONFIG"
	EnvUsername = "IFB_USERNAME"
	EnvPassword = "IFB_PASSWORD"
)

// PortalConfig 门户地址与页面路径。
type PortalConfig struct {
	BaseURL          string `yaml:"base_url"`
	LoginPath        string `yaml:"login_path"`
	InstancePath     string `yaml:"instance_path"`
	StoragePath      string `yaml:"storage_path"`
	InstanceFormPath string `yaml:"instance_form_path"`
	// InsecureSkipVerify 门户证书无法校验，默认关闭校验；设为 false 可恢复校验。
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
	TimeoutSeconds     int  `yaml:"timeout_seconds"`
}

type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Poll struct {
	Attempts        int `yaml:"attempts"`
	IntervalSeconds int `yaml:"interval_seconds"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

type Job struct {
	InventoryCron string `yaml:"inventory_cron"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Config struct {
	Portal           PortalConfig   `yaml:"portal"`
	Auth             Auth           `yaml:"auth"`
	Poll             Poll           `yaml:"poll"`
	InstanceTypes    map[string]int `yaml:"instance_types"`
	DefaultAppliance int            `yaml:"default_appliance"`
	HTTP             HTTP           `yaml:"http"`
	Job              Job            `yaml:"job"`
	Log              Log            `yaml:"log"`
}

// DefaultConfig 返回 IFB 门户的默认配置。
func DefaultConfig() Config {
	return Config{
		Portal: PortalConfig{
			BaseURL:            "https://cloud.france-bioinformatique.fr",
			LoginPath:          "/accounts/login",
			InstancePath:       "/cloud/instance",
			StoragePath:        "/cloud/storage",
			InstanceFormPath:   "/cloud/instance/",
			InsecureSkipVerify: true,
			TimeoutSeconds:     30,
		},
		Poll:             Poll{Attempts: 5, IntervalSeconds: 10},
		InstanceTypes:    ifb.DefaultInstanceTypes(),
		DefaultAppliance: 215,
		HTTP:             HTTP{Listen: ":8080"},
		Job:              Job{InventoryCron: "@hourly"},
		Log:              Log{Level: "info"},
	}
}

// LoadConfig 在默认配置上叠加配置文件与环境变量。path 为空或文件不存在时只使用默认值。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("读取配置失败: %w", err)
		default:
			// instance_types 出现在文件中时整体替换默认表
			defaults := cfg.InstanceTypes
			cfg.InstanceTypes = nil
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("解析配置失败: %w", err)
			}
			if cfg.InstanceTypes == nil {
				cfg.InstanceTypes = defaults
			}
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv 用环境变量补充凭据，已有值不会被覆盖。
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvUsername); v != "" && c.Auth.Username == "" {
		c.Auth.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" && c.Auth.Password == "" {
		c.Auth.Password = v
	}
}

// Validate 检查连接门户前必须具备的配置。
func (c Config) Validate() error {
	if strings.TrimSpace(c.Portal.BaseURL) == "" {
		return errors.New("portal.base_url 不能为空")
	}
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("缺少用户名或密码，可通过参数或环境变量 %s/%s 提供", EnvUsername, EnvPassword)
	}
	if len(c.InstanceTypes) == 0 {
		return errors.New("instance_types 不能为空")
	}
	if c.Poll.Attempts <= 0 {
		return fmt.Errorf("poll.attempts 必须为正数: %d", c.Poll.Attempts)
	}
	if c.Poll.IntervalSeconds < 0 {
		return fmt.Errorf("poll.interval_seconds 不能为负数: %d", c.Poll.IntervalSeconds)
	}
	return nil
}

// PollPolicy 转换为客户端的轮询策略。
func (c Config) PollPolicy() ifb.PollPolicy {
	return ifb.PollPolicy{
		Attempts: c.Poll.Attempts,
		Interval: time.Duration(c.Poll.IntervalSeconds) * time.Second,
	}
}

// ClientConfig 转换为门户客户端配置。
func (c Config) ClientConfig() ifb.Config {
	return ifb.Config{
		Session: ifb.SessionConfig{
			BaseURL:            c.Portal.BaseURL,
			LoginPath:          c.Portal.LoginPath,
			InsecureSkipVerify: c.Portal.InsecureSkipVerify,
			Timeout:            time.Duration(c.Portal.TimeoutSeconds) * time.Second,
		},
		Layout:           ifb.DefaultLayout(),
		InstancePath:     c.Portal.InstancePath,
		StoragePath:      c.Portal.StoragePath,
		InstanceFormPath: c.Portal.InstanceFormPath,
		InstanceTypes:    ifb.InstanceTypes(c.InstanceTypes),
		Poll:             c.PollPolicy(),
	}
}

// Credentials 返回门户凭据。
func (c Config) Credentials() ifb.Credentials {
	return ifb.Credentials{Username: c.Auth.Username, Password: c.Auth.Password}
}
