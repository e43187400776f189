package gateway

import (
	"context"
	"log/slog"

	"tourdesk/pkg/assistant"
	"tourdesk/pkg/channel"
)

// Typing routes typing indicators to the adapters that support them.
func Typing(adapters []channel.Adapter, log *slog.Logger) assistant.TypingFunc {
	typers := make(map[string]channel.Typer, len(adapters))
	for _, adapter := range adapters {
		if typer, ok := adapter.(channel.Typer); ok {
			typers[adapter.Name()] = typer
		}
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "gateway.typing")

	return func(ctx context.Context, channelName, recipientID string) {
		typer, ok := typers[channelName]
		if !ok {
			return
		}
		if err := typer.Typing(ctx, recipientID); err != nil && ctx.Err() == nil {
			log.Warn("Failed to send typing indicator", "channel", channelName, "recipient_id", recipientID, "error", err)
		}
	}
}
