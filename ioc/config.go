package ioc

import (
	"os"

	"ifbcloud/internal/app"
)

const defaultConfigPath = "configs/config.yaml"

// InitConfig 读取应用配置，IFB_CONFIG 可覆盖默认路径。
func InitConfig() (app.Config, error) {
	path := defaultConfigPath
	if v := os.Getenv(app.EnvConfig); v != "" {
		path = v
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
