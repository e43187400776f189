package channel

import (
	"context"

	"tourdesk/pkg/bus"
)

// Handler accepts one normalized inbound event. It must return quickly;
// replies are delivered later through Adapter.Send.
type Handler func(context.Context, bus.InboundEvent)

// Adapter bridges one external transport (Telegram, Zalo) into tourdesk.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
	Send(context.Context, bus.OutboundMessage) error
}

// Typer is implemented by adapters that can show a typing indicator.
type Typer interface {
	Typing(ctx context.Context, recipientID string) error
}
