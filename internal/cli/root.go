package cli

import (
	"github.com/spf13/cobra"

	"shortlink-core/internal/config"
)

// RootOptions 所有子命令共享的参数
type RootOptions struct {
	ConfigPath string
}

// loadConfig 配置文件不存在时使用默认配置
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.ConfigPath)
}

// NewRootCommand 创建 shortctl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "shortctl",
		Short:         "shortlink-core 运维工具",
		Long:          "shortlink-core 的运维命令：迁移表结构、编码短码、签发测试令牌。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "configs/config.yaml", "配置文件路径，留空使用默认配置")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewEncodeCommand())
	cmd.AddCommand(NewGenerateCommand())
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
