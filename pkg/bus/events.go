package bus

import (
	"context"
	"sync"
	"time"
)

// EventType names a pipeline lifecycle event. Metrics and the chat
// simulator subscribe to these.
type EventType string

const (
	EventAdmitted     EventType = "admitted"
	EventDuplicate    EventType = "duplicate_rejected"
	EventStale        EventType = "stale_rejected"
	EventTurnFlushed  EventType = "turn_flushed"
	EventReplied      EventType = "replied"
	EventDegraded     EventType = "degraded"
	EventPaused       EventType = "paused"
	EventResumed      EventType = "resumed"
	EventLeadCaptured EventType = "lead_captured"
	EventSendFailed   EventType = "send_failed"
)

type Event struct {
	Type           EventType         `json:"type"`
	At             time.Time         `json:"at"`
	Channel        string            `json:"channel,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Outcome        string            `json:"outcome,omitempty"`
	Duration       time.Duration     `json:"duration,omitempty"`
	Payload        map[string]string `json:"payload,omitempty"`
	Error          string            `json:"error,omitempty"`
}

func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	mb.mu.RLock()
	defer mb.mu.RUnlock()
	for _, ch := range mb.eventSubscribers {
		select {
		case ch <- event:
		default:
			// slow subscriber, drop
		}
	}

	return true
}

func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)

	mb.mu.Lock()
	select {
	case <-mb.done:
		mb.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}

	id := mb.nextEventSubscriberID
	mb.nextEventSubscriberID++
	mb.eventSubscribers[id] = ch
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mb.mu.Lock()
			if eventCh, ok := mb.eventSubscribers[id]; ok {
				delete(mb.eventSubscribers, id)
				close(eventCh)
			}
			mb.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-mb.done:
			unsubscribe()
		}
	}()

	return ch, unsubscribe
}
