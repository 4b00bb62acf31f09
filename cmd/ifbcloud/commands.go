package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
	"ifbcloud/internal/logging"
)

const defaultConfigPath = "configs/config.yaml"

// usageError 参数错误，退出码为 2。
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }
func (e usageError) ExitCode() int { return 2 }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

type globalOptions struct {
	username string
	password string
	config   string
	insecure bool
	logLevel string
	version  bool
}

func (o *globalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.username, "username", "u", "", "门户用户名 (env "+app.EnvUsername+")")
	fs.StringVarP(&o.password, "password", "p", "", "门户密码 (env "+app.EnvPassword+")")
	fs.StringVarP(&o.config, "config", "c", "", "配置文件路径 (env "+app.EnvConfig+", 默认 "+defaultConfigPath+")")
	fs.BoolVar(&o.insecure, "insecure", true, "跳过门户 TLS 证书校验")
	fs.StringVar(&o.logLevel, "log-level", "", "日志级别 debug|info|warn|error")
	fs.BoolVar(&o.version, "version", false, "输出版本号")
}

// loadConfig 按 默认值 < 配置文件 < 环境变量 < 命令行 的顺序合并配置。
func (o *globalOptions) loadConfig(fs *pflag.FlagSet) (app.Config, error) {
	path := o.config
	if path == "" {
		path = os.Getenv(app.EnvConfig)
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if o.username != "" {
		cfg.Auth.Username = o.username
	}
	if o.password != "" {
		cfg.Auth.Password = o.password
	}
	if fs.Changed("insecure") {
		cfg.Portal.InsecureSkipVerify = o.insecure
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// action 子命令的执行体。validate 与 checkConfig 都在登录门户前执行，可为空。
type action struct {
	validate    func() error
	checkConfig func(cfg app.Config) error
	run         func(ctx context.Context, env *environment) (any, error)
}

type command struct {
	name  string
	usage string
	setup func(fs *pflag.FlagSet) action
}

type environment struct {
	cfg     app.Config
	service *app.Service
	logger  *zap.Logger
}

var commands = []command{
	{name: "status", usage: "列出实例", setup: statusCommand},
	{name: "disks", usage: "列出磁盘", setup: disksCommand},
	{name: "appliances", usage: "列出可用镜像", setup: appliancesCommand},
	{name: "start", usage: "创建实例并输出 IP", setup: startCommand},
	{name: "stop", usage: "关闭实例", setup: stopCommand},
	{name: "ip", usage: "查询实例 IP", setup: ipCommand},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprintf(w, "用法: ifbcloud [全局参数] <子命令> [参数]\n\n子命令:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "\n全局参数:\n%s", global.FlagUsages())
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.name)
	}
	return strings.Join(names, ", ")
}

func execute(ctx context.Context, args []string, stdout io.Writer, connect connector) error {
	var opts globalOptions
	global := pflag.NewFlagSet("ifbcloud", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(io.Discard)
	opts.addFlags(global)
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, global)
			return nil
		}
		return usageError{err: err}
	}
	if opts.version {
		return writeJSON(stdout, map[string]string{"version": version})
	}

	rest := global.Args()
	if len(rest) == 0 {
		return usagef("缺少子命令，可选: %s", commandNames())
	}
	cmd, ok := lookupCommand(rest[0])
	if !ok {
		return usagef("未知子命令 %q，可选: %s", rest[0], commandNames())
	}
	sub := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	sub.SetOutput(io.Discard)
	act := cmd.setup(sub)
	if err := sub.Parse(rest[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "用法: ifbcloud %s [参数]\n%s", cmd.name, sub.FlagUsages())
			return nil
		}
		return usageError{err: fmt.Errorf("%s: %w", cmd.name, err)}
	}
	if sub.NArg() > 0 {
		return usagef("%s: 多余的参数 %s", cmd.name, sub.Arg(0))
	}
	if act.validate != nil {
		if err := act.validate(); err != nil {
			return usageError{err: fmt.Errorf("%s: %w", cmd.name, err)}
		}
	}

	cfg, err := opts.loadConfig(global)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if act.checkConfig != nil {
		if err := act.checkConfig(cfg); err != nil {
			return usageError{err: fmt.Errorf("%s: %w", cmd.name, err)}
		}
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return usageError{err: err}
	}
	defer func() { _ = logger.Sync() }()

	portal, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	svc, err := app.NewService(portal, cfg, logger)
	if err != nil {
		return err
	}
	out, err := act.run(ctx, &environment{cfg: cfg, service: svc, logger: logger})
	if err != nil {
		if errors.Is(err, ifb.ErrInvalidArgument) {
			return usageError{err: err}
		}
		return err
	}
	return writeJSON(stdout, out)
}

func statusCommand(*pflag.FlagSet) action {
	return action{run: func(ctx context.Context, env *environment) (any, error) {
		instances, err := env.service.Instances(ctx)
		return nonNil(instances), err
	}}
}

func disksCommand(*pflag.FlagSet) action {
	return action{run: func(ctx context.Context, env *environment) (any, error) {
		disks, err := env.service.Disks(ctx)
		return nonNil(disks), err
	}}
}

func appliancesCommand(*pflag.FlagSet) action {
	return action{run: func(_ context.Context, env *environment) (any, error) {
		return env.service.Appliances()
	}}
}

func startCommand(fs *pflag.FlagSet) action {
	var p app.StartParams
	fs.StringVarP(&p.Name, "name", "n", "", "实例名称（必填）")
	fs.StringVarP(&p.Type, "type", "t", app.DefaultInstanceType, "实例类型")
	fs.StringVar(&p.Appliance, "appliance", "", "镜像名称")
	fs.IntVar(&p.ApplianceID, "appliance-id", 0, "镜像 ID，默认使用配置中的 default_appliance")
	fs.StringVar(&p.DiskName, "disk-name", "", "挂载的磁盘名称")
	fs.StringVar(&p.DiskUUID, "disk-uuid", "", "挂载的磁盘 UUID")
	return action{
		validate: func() error {
			if strings.TrimSpace(p.Name) == "" {
				return errors.New("必须通过 --name 指定实例名称")
			}
			if p.Appliance != "" && p.ApplianceID != 0 {
				return errors.New("--appliance 与 --appliance-id 只能指定一个")
			}
			return nil
		},
		checkConfig: func(cfg app.Config) error {
			_, err := ifb.InstanceTypes(cfg.InstanceTypes).Code(p.Type)
			return err
		},
		run: func(ctx context.Context, env *environment) (any, error) {
			return env.service.Start(ctx, p)
		},
	}
}

func exactlyOne(name, id string) error {
	if (name == "") == (id == "") {
		return errors.New("必须且只能指定 --name 或 --id 之一")
	}
	return nil
}

type stopResult struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
}

func stopCommand(fs *pflag.FlagSet) action {
	var p app.StopParams
	fs.StringVarP(&p.Name, "name", "n", "", "实例名称")
	fs.StringVarP(&p.ID, "id", "i", "", "实例 ID")
	return action{
		validate: func() error { return exactlyOne(p.Name, p.ID) },
		run: func(ctx context.Context, env *environment) (any, error) {
			id, err := env.service.Stop(ctx, p)
			if err != nil {
				return nil, err
			}
			return stopResult{ID: id, Operation: "shutdown"}, nil
		},
	}
}

type ipResult struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	IP   string `json:"ip"`
}

func ipCommand(fs *pflag.FlagSet) action {
	var sel ifb.InstanceSelector
	var attempts int
	var interval time.Duration
	fs.StringVarP(&sel.Name, "name", "n", "", "实例名称")
	fs.StringVarP(&sel.ID, "id", "i", "", "实例 ID")
	fs.IntVar(&attempts, "attempts", 0, "轮询次数，默认使用配置")
	fs.DurationVar(&interval, "interval", 0, "轮询间隔，默认使用配置")
	return action{
		validate: func() error {
			if fs.Changed("attempts") && attempts <= 0 {
				return errors.New("--attempts 必须为正数")
			}
			if interval < 0 {
				return errors.New("--interval 不能为负数")
			}
			return exactlyOne(sel.Name, sel.ID)
		},
		run: func(ctx context.Context, env *environment) (any, error) {
			policy := env.cfg.PollPolicy()
			if fs.Changed("attempts") {
				policy.Attempts = attempts
			}
			if fs.Changed("interval") {
				policy.Interval = interval
			}
			ip, err := env.service.ResolveIP(ctx, sel, policy)
			if err != nil {
				return nil, err
			}
			return ipResult{Name: sel.Name, ID: sel.ID, IP: ip}, nil
		},
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
