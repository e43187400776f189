package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tourdesk/pkg/assistant"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/channel"
	"tourdesk/pkg/channel/telegram"
	"tourdesk/pkg/channel/zalo"
	"tourdesk/pkg/config"
	"tourdesk/pkg/gateway"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	telegramChannelName = "telegram"
	zaloChannelName     = "zalo"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run channel gateway mode",
	Long:  "Runs tourdesk as a channel gateway for Zalo and Telegram with health, readiness and metrics endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(runCtx, cfg, appLogger)
		if err != nil {
			log.Error("Failed to initialize runtime", "error", err)
			return
		}
		defer func() {
			if err := rt.store.Close(); err != nil {
				log.Warn("Store close failed", "error", err)
			}
		}()

		mb := bus.NewMessageBus()
		defer mb.Close()

		a, err := assistant.FromConfig(runCtx, cfg, rt.assistantDeps(mb, appLogger),
			assistant.WithTyping(gateway.Typing(adapters, appLogger)),
		)
		if err != nil {
			log.Error("Failed to initialize assistant", "error", err)
			return
		}
		defer a.Close()

		deps := gateway.Deps{
			Bus:      mb,
			Receiver: a,
			Store:    rt.store,
			Metrics:  metrics.New(appLogger),
		}
		if rt.capability != nil {
			deps.Capability = rt.capability
		}

		svc, err := gateway.NewService(cfg, adapters, deps, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started",
			"channels", enabledChannelNames(adapters),
			"store", cfg.Store.Backend,
			"provider", cfg.Capability.Provider,
			"model", cfg.Capability.Model,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 2)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Zalo.Enabled {
		gin.SetMode(gin.ReleaseMode)
		adapter, err := zalo.NewAdapter(cfg.Channels.Zalo, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", zaloChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
