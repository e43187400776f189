package bus

import (
	"context"
	"sync"
)

const defaultBufferSize = 100

// MessageBus decouples channel adapters from the assistant pipeline.
type MessageBus struct {
	inbound  chan InboundEvent
	outbound chan OutboundMessage
	senders  map[string]Sender

	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:          make(chan InboundEvent, defaultBufferSize),
		outbound:         make(chan OutboundMessage, defaultBufferSize),
		senders:          make(map[string]Sender),
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
}

func (mb *MessageBus) PublishInbound(ctx context.Context, ev InboundEvent) bool {
	return publish(ctx, mb.done, mb.inbound, ev)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundEvent, bool) {
	return consume(ctx, mb.done, mb.inbound)
}

func (mb *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	return publish(ctx, mb.done, mb.outbound, msg)
}

func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return consume(ctx, mb.done, mb.outbound)
}

func publish[T any](ctx context.Context, done <-chan struct{}, ch chan<- T, value T) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return false
	case ch <- value:
		return true
	}
}

func consume[T any](ctx context.Context, done <-chan struct{}, ch <-chan T) (T, bool) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return zero, false
	case <-done:
		return zero, false
	case value := <-ch:
		return value, true
	}
}

// RegisterSender installs the delivery function for a channel name.
func (mb *MessageBus) RegisterSender(channel string, sender Sender) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.senders[channel] = sender
}

func (mb *MessageBus) Sender(channel string) (Sender, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	sender, ok := mb.senders[channel]
	return sender, ok
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, ch := range mb.eventSubscribers {
			close(ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}
