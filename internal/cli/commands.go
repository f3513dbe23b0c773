package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shortlink-core/internal/model"
	"shortlink-core/internal/shortcode"
	"shortlink-core/pkg/database"
	auth "shortlink-core/pkg/jwt"
)

// NewMigrateCommand 按配置连接数据库并迁移表结构
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "迁移数据库表结构",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return fmt.Errorf("配置加载失败: %w", err)
			}
			db, err := database.Open(database.Options(cfg.Database))
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db, &model.ShortLink{}, &model.VisitEvent{}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "迁移完成 (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

// NewEncodeCommand 把数字编码为顺序短码
func NewEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <n>...",
		Short: "把非负整数编码为 base62 短码",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				n, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("无效的数字 %q: %w", arg, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n, shortcode.EncodeSequential(n))
			}
			return nil
		},
	}
}

// NewGenerateCommand 生成随机短码，不检查是否已被占用
func NewGenerateCommand() *cobra.Command {
	var count, length int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "生成随机短码",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 || length <= 0 {
				return fmt.Errorf("count 和 length 必须大于 0")
			}
			for i := 0; i < count; i++ {
				code, err := shortcode.GenerateRandomString(length)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "生成数量")
	cmd.Flags().IntVarP(&length, "length", "l", shortcode.CodeLength, "短码长度")
	return cmd
}

// NewTokenCommand 用配置中的密钥签发令牌，便于调试管理接口
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		userID   uint
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发 JWT 令牌",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return fmt.Errorf("配置加载失败: %w", err)
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth.secret 未配置")
			}
			manager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)
			token, err := manager.GenerateToken(userID, username, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user-id", 1, "用户 ID")
	cmd.Flags().StringVar(&username, "username", "admin", "用户名")
	cmd.Flags().StringVar(&role, "role", "admin", "角色 (admin|user)")
	return cmd
}
