// ifbcloud 是 IFB 云门户的命令行客户端：查看实例、磁盘与镜像，创建、关闭实例并查询实例 IP。
// 所有命令的结果以 JSON 写到标准输出，日志写到标准错误。
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ifbcloud/internal/app"
	"ifbcloud/internal/ifb"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, connectPortal)
	cancel()
	os.Exit(code)
}

// connector 登录门户并返回客户端，测试中替换为假实现。
type connector func(ctx context.Context, cfg app.Config, logger *zap.Logger) (app.Portal, error)

func connectPortal(ctx context.Context, cfg app.Config, logger *zap.Logger) (app.Portal, error) {
	clientCfg := cfg.ClientConfig()
	clientCfg.Session.Logger = logger.Named("portal")
	return ifb.New(ctx, clientCfg, cfg.Credentials())
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, connect connector) int {
	err := execute(ctx, args, stdout, connect)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
