package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aweiyin/stardeck/internal/bootstrap"
	"github.com/aweiyin/stardeck/internal/httpapi"
	"github.com/aweiyin/stardeck/internal/pkg/config"
	"github.com/aweiyin/stardeck/internal/repository"
)

var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "stardeck",
	Short:   "星盘：天文异常分类与周防御活动后端",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印版本号",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stardeck", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "生成默认配置文件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "./config/config.yaml"
		if len(args) > 0 {
			target = args[0]
		}
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("配置文件已存在: %s\n", target)
			return nil
		}
		if err := config.WriteFile(target, config.Default()); err != nil {
			return fmt.Errorf("写入配置失败: %w", err)
		}
		fmt.Printf("已生成配置文件: %s\n", target)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, err := repository.NewDatabase(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("迁移完成: %s\n", cfg.Storage.DBPath)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := bootstrap.NewCore(configPath)
		if err != nil {
			return err
		}
		defer core.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := core.WatchConfig(ctx); err != nil {
			slog.Warn("配置热加载未启用", "error", err)
		}

		srv, err := httpapi.Start(ctx, core, httpapi.Options{
			ListenAddr: core.Cfg.Server.ListenAddr,
		})
		if err != nil {
			return err
		}

		slog.Info("服务就绪", "base_url", srv.BaseURL())
		<-ctx.Done()
		slog.Info("收到退出信号，正在关停")
		return nil
	},
}
