// =============================================================================
// superfast 命令行入口
// =============================================================================
// 使用方法:
//
//	superfast chat --message "hi"                  # 单轮对话
//	superfast chat --preset simple_chat --stream   # 流式输出
//	superfast health --config config.yaml          # 健康检查（JSON）
//	superfast presets                              # 列出内置预设
//	superfast state --user u1 --thread t1          # 查看线程状态
//	superfast version                              # 版本信息
//
// =============================================================================
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vivekverma239/superfast-ai/config"
	"github.com/vivekverma239/superfast-ai/internal/container"
)

// 版本信息（构建时注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 保存全局参数与容器覆盖项
type app struct {
	configPath    string
	containerOpts []container.Option
}

func newRootCmd(opts ...container.Option) *cobra.Command {
	a := &app{containerOpts: opts}

	root := &cobra.Command{
		Use:           "superfast",
		Short:         "superfast - resilient stateful agent runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = Version
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (YAML)")

	root.AddCommand(
		a.chatCmd(),
		a.healthCmd(),
		a.presetsCmd(),
		a.stateCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if a.configPath != "" {
		loader = loader.WithConfigPath(a.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withContainer 加载配置、构建容器，执行 fn 后关闭容器
func (a *app) withContainer(ctx context.Context, fn func(*container.Container) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	c, err := container.New(ctx, cfg, a.containerOpts...)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())
	return fn(c)
}
