package cmd

import (
	"context"
	"testing"

	"tourdesk/pkg/bus"
	channelpkg "tourdesk/pkg/channel"
	"tourdesk/pkg/config"
)

type testAdapter struct{ name string }

func (a testAdapter) Name() string { return a.name }

func (a testAdapter) Run(_ context.Context, _ channelpkg.Handler) error { return nil }

func (a testAdapter) Send(_ context.Context, _ bus.OutboundMessage) error { return nil }

func TestEnabledAdaptersRequiresAtLeastOneChannel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error when no channels are enabled")
	}
}

func TestEnabledAdaptersRejectsZaloWithoutToken(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Channels.Zalo.Enabled = true
	cfg.Channels.Zalo.AccessToken = ""
	if _, err := enabledAdapters(cfg, nil); err == nil {
		t.Fatal("expected error when zalo access token is missing")
	}
}

func TestEnabledAdaptersBuildsBothChannels(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"
	cfg.Channels.Zalo.Enabled = true
	cfg.Channels.Zalo.AccessToken = "oa-token"

	adapters, err := enabledAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("enabledAdapters() error = %v", err)
	}
	if got := enabledChannelNames(adapters); got != "telegram,zalo" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,zalo")
	}
}

func TestEnabledChannelNames(t *testing.T) {
	t.Parallel()

	adapters := []channelpkg.Adapter{testAdapter{name: "telegram"}, testAdapter{name: "zalo"}}
	if got := enabledChannelNames(adapters); got != "telegram,zalo" {
		t.Fatalf("enabledChannelNames = %q, want %q", got, "telegram,zalo")
	}
}
