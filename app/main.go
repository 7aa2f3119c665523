package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HnustLzh2/http-server/internal/config"
	"github.com/HnustLzh2/http-server/internal/logging"
	"github.com/HnustLzh2/http-server/internal/router"
	"github.com/HnustLzh2/http-server/internal/server"
)

var cfgFile string

// newRootCmd 构造命令行入口，示例：./your_program.sh --directory /tmp/data/
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "http-server",
		Short:         "A minimal trie-routed HTTP/1.1 server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags(), cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, os.Stderr, cfg.LogPretty)
	if err != nil {
		return err
	}

	// 路由在开始 Accept 之前全部注册完
	mux := router.New()
	registerRoutes(mux, cfg.Directory)
	for _, rt := range mux.Routes() {
		logger.Debug().Str("method", rt.Method.String()).Str("pattern", rt.Pattern).Msg("注册路由")
	}

	logger.Info().Str("directory", cfg.Directory).Msg("文件目录")
	return server.New(cfg, mux, logger).ListenAndServe(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "服务器启动失败: %v\n", err)
		os.Exit(1)
	}
}
