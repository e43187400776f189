// Package assistant wires the turn pipeline: admission, admin commands,
// debounced aggregation and the dialog controller. Replies leave through the
// message bus outbound queue.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"

	"tourdesk/pkg/admission"
	"tourdesk/pkg/aggregator"
	"tourdesk/pkg/apperr"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/dialog"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/pause"
)

const defaultWorkers = 64

// TypingFunc shows a typing indicator to a recipient. Failures are the
// callee's to log.
type TypingFunc func(ctx context.Context, channel, recipientID string)

// Assistant is safe for concurrent use. Receive may be called from any
// adapter goroutine.
type Assistant struct {
	ctx    context.Context
	bus    *bus.MessageBus
	gate   *admission.Gate
	pauses *pause.Registry
	dialog *dialog.Controller
	agg    *aggregator.Aggregator
	pool   *ants.Pool
	lanes  *lanes

	admins  map[string]struct{}
	typing  TypingFunc
	workers int
	aggOpts []aggregator.Option
	base    *slog.Logger
	log     *slog.Logger
}

type Option func(*Assistant)

// WithAdmins sets the actor ids allowed to send pause commands. Entries may
// be bare actor ids or channel-scoped ("zalo:123").
func WithAdmins(ids []string) Option {
	return func(a *Assistant) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				a.admins[id] = struct{}{}
			}
		}
	}
}

func WithTyping(fn TypingFunc) Option {
	return func(a *Assistant) { a.typing = fn }
}

func WithWorkers(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithAggregatorOptions forwards options to the internal aggregator.
func WithAggregatorOptions(opts ...aggregator.Option) Option {
	return func(a *Assistant) { a.aggOpts = append(a.aggOpts, opts...) }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Assistant) {
		a.base = logger.OrDefault(log)
		a.log = a.base.With("component", "assistant")
	}
}

// New builds the pipeline. ctx bounds every flushed turn; cancel it and call
// Close to stop.
func New(ctx context.Context, mb *bus.MessageBus, gate *admission.Gate, pauses *pause.Registry, ctrl *dialog.Controller, opts ...Option) (*Assistant, error) {
	if mb == nil || gate == nil || pauses == nil || ctrl == nil {
		return nil, errors.New("assistant requires bus, gate, pause registry and dialog controller")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a := &Assistant{
		ctx:     ctx,
		bus:     mb,
		gate:    gate,
		pauses:  pauses,
		dialog:  ctrl,
		lanes:   newLanes(),
		admins:  make(map[string]struct{}),
		workers: defaultWorkers,
		base:    slog.Default(),
		log:     slog.Default().With("component", "assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}

	pool, err := ants.NewPool(a.workers, ants.WithPanicHandler(func(p any) {
		a.log.Error("Turn worker panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create turn pool: %w", err)
	}
	a.pool = pool

	aggOpts := append([]aggregator.Option{
		aggregator.WithPausedFunc(func(conversationID string) bool {
			return a.pauses.IsPaused(a.ctx, conversationID)
		}),
		aggregator.WithLogger(a.base),
	}, a.aggOpts...)
	a.agg = aggregator.New(a.onFlush, aggOpts...)

	return a, nil
}

// Receive handles one normalized inbound event.
func (a *Assistant) Receive(ctx context.Context, ev bus.InboundEvent) {
	verdict, err := a.gate.Admit(ctx, ev)
	if err != nil {
		a.degraded(ctx, ev.Channel, ev.ConversationID, err)
	}
	switch verdict {
	case admission.DuplicateRejected:
		a.publish(ctx, bus.Event{Type: bus.EventDuplicate, Channel: ev.Channel, ConversationID: ev.ConversationID})
		return
	case admission.StaleRejected:
		a.publish(ctx, bus.Event{Type: bus.EventStale, Channel: ev.Channel, ConversationID: ev.ConversationID})
		return
	}
	a.publish(ctx, bus.Event{
		Type:           bus.EventAdmitted,
		Channel:        ev.Channel,
		ConversationID: ev.ConversationID,
		Payload:        map[string]string{"kind": string(ev.Kind)},
	})

	if ev.Kind.CarriesText() && a.isAdmin(ev) {
		if cmd, ok := pause.ParseCommand(ev.Text); ok {
			a.command(ctx, ev, cmd)
			return
		}
	}

	switch {
	case ev.Kind.CarriesText():
		a.agg.Add(ev)
	case ev.Kind == bus.KindFollow:
		a.replyDirect(ctx, ev, a.dialog.Welcome())
	case ev.Kind.IsMedia():
		a.replyDirect(ctx, ev, a.dialog.MediaNotice())
	default:
		a.log.Debug("Ignoring event", "conversation_id", ev.ConversationID, "kind", ev.Kind)
	}
}

// replyDirect answers events that bypass aggregation. Paused conversations
// get no automated reply.
func (a *Assistant) replyDirect(ctx context.Context, ev bus.InboundEvent, text string) {
	if a.pauses.IsPaused(ctx, ev.ConversationID) {
		a.log.Debug("Conversation paused, not replying", "conversation_id", ev.ConversationID, "kind", ev.Kind)
		return
	}
	a.send(ctx, ev.Channel, ev.ConversationID, recipientOf(ev.ActorID, ev.Metadata), text)
}

// onFlush hands a turn to the worker pool. It runs on the aggregator's flush
// task goroutine and blocks only while the pool is saturated.
func (a *Assistant) onFlush(turn aggregator.Turn) {
	err := a.pool.Submit(func() {
		a.lanes.run(turn.ConversationID, func() { a.process(turn) })
	})
	if err != nil {
		a.log.Error("Turn dropped", "conversation_id", turn.ConversationID, "turn_id", turn.ID, "error", err)
	}
}

func (a *Assistant) process(turn aggregator.Turn) {
	ctx := a.ctx
	startedAt := time.Now()
	recipient := recipientOf(turn.ActorID, turn.Metadata)

	a.publish(ctx, bus.Event{
		Type:           bus.EventTurnFlushed,
		Channel:        turn.Channel,
		ConversationID: turn.ConversationID,
		Payload: map[string]string{
			"turn_id":  turn.ID,
			"messages": strconv.Itoa(len(turn.Messages)),
			"text":     turn.Text,
		},
	})

	if a.typing != nil {
		a.typing(ctx, turn.Channel, recipient)
	}

	reply, err := a.dialog.Handle(ctx, dialog.Input{
		ConversationID: turn.ConversationID,
		Channel:        turn.Channel,
		Text:           turn.Text,
	})
	for _, d := range reply.Degraded {
		a.degraded(ctx, turn.Channel, turn.ConversationID, d)
	}

	messages := reply.Messages
	outcome := string(reply.State)
	if err != nil {
		a.log.Error("Turn failed", "conversation_id", turn.ConversationID, "turn_id", turn.ID, "category", apperr.CategoryOf(err), "error", err)
		messages = []string{a.dialog.Fallback()}
		outcome = "failed"
	}

	for _, text := range messages {
		a.send(ctx, turn.Channel, turn.ConversationID, recipient, text)
	}

	if reply.Lead != nil {
		a.publish(ctx, bus.Event{
			Type:           bus.EventLeadCaptured,
			Channel:        turn.Channel,
			ConversationID: turn.ConversationID,
			Payload:        map[string]string{"lead_id": reply.Lead.ID},
		})
	}

	a.publish(ctx, bus.Event{
		Type:           bus.EventReplied,
		Channel:        turn.Channel,
		ConversationID: turn.ConversationID,
		Outcome:        outcome,
		Duration:       time.Since(startedAt),
		Payload:        map[string]string{"turn_id": turn.ID, "reply": strings.Join(messages, "\n\n")},
	})
}

func (a *Assistant) send(ctx context.Context, channel, conversationID, recipient, text string) {
	ok := a.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:        channel,
		ConversationID: conversationID,
		RecipientID:    recipient,
		Content:        text,
	})
	if !ok {
		a.log.Warn("Outbound queue closed, reply dropped", "conversation_id", conversationID)
	}
}

func (a *Assistant) degraded(ctx context.Context, channel, conversationID string, err error) {
	category := apperr.CategoryOf(err)
	a.log.Warn("Turn degraded", "conversation_id", conversationID, "category", category, "error", err)
	a.publish(ctx, bus.Event{
		Type:           bus.EventDegraded,
		Channel:        channel,
		ConversationID: conversationID,
		Outcome:        category,
		Error:          err.Error(),
	})
}

func (a *Assistant) publish(ctx context.Context, ev bus.Event) {
	a.bus.PublishEvent(ctx, ev)
}

// Pending reports buffered messages awaiting flush for a conversation.
func (a *Assistant) Pending(conversationID string) int {
	return a.agg.Pending(conversationID)
}

// Close stops pending flush tasks and waits for running turns.
func (a *Assistant) Close() {
	a.agg.Close()
	if err := a.pool.ReleaseTimeout(10 * time.Second); err != nil {
		a.log.Warn("Turn workers did not stop in time", "error", err)
	}
}

func (a *Assistant) isAdmin(ev bus.InboundEvent) bool {
	if len(a.admins) == 0 {
		return false
	}
	if _, ok := a.admins[ev.ActorID]; ok {
		return true
	}
	_, ok := a.admins[ev.Channel+":"+ev.ActorID]
	return ok
}

// recipientOf picks the platform address for replies: the chat id when the
// adapter supplied one, otherwise the actor.
func recipientOf(actorID string, metadata map[string]string) string {
	if chatID := strings.TrimSpace(metadata["chat_id"]); chatID != "" {
		return chatID
	}
	return actorID
}
