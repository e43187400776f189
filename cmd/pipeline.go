package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tourdesk/pkg/assistant"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/config"
	"tourdesk/pkg/leads"
	"tourdesk/pkg/provider"
	"tourdesk/pkg/store"
	"tourdesk/pkg/store/backends"
)

// runtimeDeps are the collaborators shared by the gateway and chat commands.
type runtimeDeps struct {
	store      store.Store
	capability provider.Client
	notifier   leads.Notifier
}

// openRuntime opens the store, the optional language capability and the
// optional lead notifier.
func openRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (runtimeDeps, error) {
	kv, err := backends.Open(ctx, cfg.Store, log)
	if err != nil {
		return runtimeDeps{}, fmt.Errorf("open store: %w", err)
	}

	deps := runtimeDeps{store: kv}

	client, err := provider.New(ctx, cfg)
	switch {
	case errors.Is(err, provider.ErrDisabled):
		log.Info("Language capability disabled, using pattern rules only")
	case err != nil:
		_ = kv.Close()
		return runtimeDeps{}, fmt.Errorf("initialize provider: %w", err)
	default:
		deps.capability = client
	}

	if url := strings.TrimSpace(cfg.Leads.SlackWebhookURL); url != "" {
		notifier, err := leads.NewSlackNotifier(url)
		if err != nil {
			_ = kv.Close()
			return runtimeDeps{}, fmt.Errorf("configure lead notifier: %w", err)
		}
		deps.notifier = notifier
	}

	return deps, nil
}

func (d runtimeDeps) assistantDeps(mb *bus.MessageBus, log *slog.Logger) assistant.Deps {
	deps := assistant.Deps{
		Store:    d.store,
		Bus:      mb,
		Notifier: d.notifier,
		Log:      log,
	}
	if d.capability != nil {
		deps.Capability = d.capability
	}
	return deps
}
