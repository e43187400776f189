package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tourdesk/pkg/admission"
	"tourdesk/pkg/aggregator"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/config"
	"tourdesk/pkg/dialog"
	"tourdesk/pkg/leads"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/pause"
	"tourdesk/pkg/pricing"
	"tourdesk/pkg/session"
	"tourdesk/pkg/slots"
	"tourdesk/pkg/store"
)

// Deps are the collaborators FromConfig cannot build itself. Capability and
// Notifier are optional.
type Deps struct {
	Store      store.Store
	Bus        *bus.MessageBus
	Catalog    *pricing.Catalog
	Capability slots.Capability
	Notifier   leads.Notifier
	Log        *slog.Logger
}

// FromConfig assembles the full pipeline from configuration.
func FromConfig(ctx context.Context, cfg *config.Config, deps Deps, opts ...Option) (*Assistant, error) {
	log := logger.OrDefault(deps.Log)
	catalog := deps.Catalog
	if catalog == nil {
		var err error
		catalog, err = pricing.Load(cfg.Assistant.PricingFile)
		if err != nil {
			return nil, fmt.Errorf("load pricing catalog: %w", err)
		}
	}

	a := cfg.Assistant
	gate := admission.NewGate(deps.Store,
		admission.WithStaleness(time.Duration(a.StalenessSeconds)*time.Second),
		admission.WithLogger(log),
	)
	sessions := session.NewStore(deps.Store,
		session.WithIdleExpiry(time.Duration(a.IdleExpiryHours)*time.Hour),
		session.WithLogger(log),
	)

	extractorOpts := []slots.Option{slots.WithLogger(log)}
	if deps.Capability != nil {
		extractorOpts = append(extractorOpts,
			slots.WithCapability(deps.Capability),
			slots.WithInferenceTimeout(time.Duration(cfg.Capability.TimeoutSeconds)*time.Second),
		)
	}

	leadOpts := []leads.Option{
		leads.WithRetention(time.Duration(cfg.Leads.RetentionDays) * 24 * time.Hour),
		leads.WithSource(cfg.Leads.Source),
		leads.WithLogger(log),
	}
	if deps.Notifier != nil {
		leadOpts = append(leadOpts, leads.WithNotifier(deps.Notifier))
	}

	ctrl := dialog.New(sessions, slots.New(catalog, extractorOpts...), catalog,
		dialog.WithLeads(leads.NewRecorder(deps.Store, leadOpts...)),
		dialog.WithHotline(a.Hotline),
		dialog.WithBrand(a.Brand),
		dialog.WithLogger(log),
	)

	base := []Option{
		WithAdmins(a.Admins),
		WithWorkers(a.Workers),
		WithAggregatorOptions(
			aggregator.WithQuietPeriod(time.Duration(a.QuietPeriodMillis)*time.Millisecond),
			aggregator.WithMaxMessages(a.MaxBufferedMessages),
			aggregator.WithReplayOnResume(a.ReplayOnResume),
		),
		WithLogger(log),
	}
	return New(ctx, deps.Bus, gate, pause.NewRegistry(deps.Store, log), ctrl, append(base, opts...)...)
}
