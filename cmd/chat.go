package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tourdesk/pkg/assistant"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/config"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/ui/chat"

	"github.com/spf13/cobra"
)

type chatOptions struct {
	plain   bool
	actor   string
	admin   bool
	verbose bool
}

var chatOpts chatOptions

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long:  "Plays a customer against the full assistant pipeline with an in-memory store. No messaging platform is contacted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		prepareChatConfig(cfg, chatOpts)

		log := logger.Discard()
		if chatOpts.verbose {
			if log, err = logger.New(cfg.Logging); err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
		}
		slog.SetDefault(log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer rt.store.Close()

		mb := bus.NewMessageBus()
		defer mb.Close()

		a, err := assistant.FromConfig(ctx, cfg, rt.assistantDeps(mb, log))
		if err != nil {
			return fmt.Errorf("initialize assistant: %w", err)
		}
		defer a.Close()

		session, err := chat.NewSession(a, mb, chatOpts.actor)
		if err != nil {
			return err
		}
		go session.Run(ctx)

		quiet := time.Duration(cfg.Assistant.QuietPeriodMillis) * time.Millisecond
		if chatOpts.plain {
			return chat.RunPlain(ctx, session, cmd.InOrStdin(), cmd.OutOrStdout(), quiet+2*time.Second)
		}
		return chat.RunInteractive(ctx, session, chat.RuntimeInfo{
			Brand:          cfg.Assistant.Brand,
			ConversationID: session.ConversationID(),
			Provider:       cfg.Capability.Provider,
			Store:          cfg.Store.Backend,
			QuietPeriod:    quiet,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatOpts.plain, "plain", false, "line mode: read stdin, print replies")
	chatCmd.Flags().StringVar(&chatOpts.actor, "as", "guest", "customer id for the simulated conversation")
	chatCmd.Flags().BoolVar(&chatOpts.admin, "admin", false, "treat the customer as an admin so /stop, /resume and /status work")
	chatCmd.Flags().BoolVarP(&chatOpts.verbose, "verbose", "v", false, "write logs using the configured logger")
}

// prepareChatConfig keeps the simulator off shared infrastructure.
func prepareChatConfig(cfg *config.Config, opts chatOptions) {
	cfg.Store.Backend = "memory"
	cfg.Leads.SlackWebhookURL = ""
	if opts.admin {
		actor := strings.TrimSpace(opts.actor)
		if actor == "" {
			actor = "guest"
		}
		cfg.Assistant.Admins = append(cfg.Assistant.Admins, chat.ChannelName+":"+actor)
	}
}
