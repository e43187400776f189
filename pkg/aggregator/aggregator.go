// Package aggregator coalesces bursts of messages from one conversation into
// a single turn. Each conversation with buffered text owns exactly one flush
// task; new arrivals only move the deadline that task observes.
package aggregator

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/logger"
)

const (
	defaultQuietPeriod = 5 * time.Second
	defaultMaxMessages = 20
)

// Message is one buffered inbound text.
type Message struct {
	MessageID string
	Text      string
	At        time.Time
}

// Turn is the coalesced unit handed downstream on flush.
type Turn struct {
	ID             string
	Channel        string
	ConversationID string
	ActorID        string
	Text           string
	Messages       []Message
	FirstAt        time.Time
	LastAt         time.Time
	Metadata       map[string]string
}

// FlushFunc receives flushed turns. It runs on the flush task goroutine and
// should hand the turn off quickly.
type FlushFunc func(Turn)

// PausedFunc reports whether a conversation is administratively paused.
type PausedFunc func(conversationID string) bool

type buffer struct {
	channel     string
	actorID     string
	metadata    map[string]string
	messages    []Message
	lastArrival time.Time
	scheduled   bool
	heldThrough time.Time
}

// Aggregator is the per-conversation flush task registry.
type Aggregator struct {
	quiet          time.Duration
	maxMessages    int
	replayOnResume bool
	flush          FlushFunc
	paused         PausedFunc
	onDrop         func(conversationID string)
	now            func() time.Time
	log            *slog.Logger

	mu      sync.Mutex
	buffers map[string]*buffer
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type Option func(*Aggregator)

func WithQuietPeriod(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.quiet = d
		}
	}
}

// WithMaxMessages bounds each buffer; the oldest message is dropped first.
func WithMaxMessages(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxMessages = n
		}
	}
}

func WithPausedFunc(fn PausedFunc) Option {
	return func(a *Aggregator) { a.paused = fn }
}

// WithReplayOnResume flushes a paused conversation's buffer on resume
// instead of discarding it.
func WithReplayOnResume(replay bool) Option {
	return func(a *Aggregator) { a.replayOnResume = replay }
}

// WithDropHook is called once for every message dropped by the buffer bound.
func WithDropHook(fn func(conversationID string)) Option {
	return func(a *Aggregator) { a.onDrop = fn }
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) {
		a.log = logger.OrDefault(log).With("component", "aggregator")
	}
}

func New(flush FlushFunc, opts ...Option) *Aggregator {
	a := &Aggregator{
		quiet:       defaultQuietPeriod,
		maxMessages: defaultMaxMessages,
		flush:       flush,
		now:         time.Now,
		log:         slog.Default().With("component", "aggregator"),
		buffers:     make(map[string]*buffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add appends the event text to its conversation buffer and schedules the
// flush task if none is pending. A buffer held during a pause that has since
// lapsed is discarded first unless replay on resume is enabled.
func (a *Aggregator) Add(ev bus.InboundEvent) {
	lapsed := a.lapsedHold(ev.ConversationID)
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	b, ok := a.buffers[ev.ConversationID]
	if ok && b == lapsed && b.held() {
		delete(a.buffers, ev.ConversationID)
		a.log.Info("Discarded buffer held past pause", "conversation_id", ev.ConversationID, "messages", len(b.messages))
		ok = false
	}
	if !ok {
		b = &buffer{channel: ev.Channel, actorID: ev.ActorID}
		a.buffers[ev.ConversationID] = b
	}
	if len(ev.Metadata) > 0 {
		b.metadata = ev.Metadata
	}
	b.messages = append(b.messages, Message{MessageID: ev.MessageID, Text: ev.Text, At: now})
	b.lastArrival = now

	for len(b.messages) > a.maxMessages {
		dropped := b.messages[0]
		b.messages = b.messages[1:]
		a.log.Warn("Dropped buffered message",
			"conversation_id", ev.ConversationID,
			"message_id", dropped.MessageID,
			"limit", a.maxMessages,
		)
		if a.onDrop != nil {
			a.onDrop(ev.ConversationID)
		}
	}

	if !b.scheduled {
		b.scheduled = true
		a.wg.Add(1)
		go a.run(ev.ConversationID, b)
	}
}

// lapsedHold returns the conversation's held buffer when its pause is over.
// The pause lookup runs outside the lock.
func (a *Aggregator) lapsedHold(conversationID string) *buffer {
	if a.replayOnResume || a.paused == nil {
		return nil
	}

	a.mu.Lock()
	b, ok := a.buffers[conversationID]
	held := ok && b.held()
	a.mu.Unlock()

	if !held || a.paused(conversationID) {
		return nil
	}
	return b
}

// Pending returns the number of buffered messages for a conversation.
func (a *Aggregator) Pending(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.buffers[conversationID]; ok {
		return len(b.messages)
	}
	return 0
}

// Discard drops a conversation's buffer and returns how many messages it held.
// A pending flush task finds the buffer gone and exits.
func (a *Aggregator) Discard(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[conversationID]
	if !ok {
		return 0
	}
	delete(a.buffers, conversationID)
	return len(b.messages)
}

// Resumed is called after a conversation is unpaused. Its buffer is discarded
// unless replay on resume is enabled, in which case a flush is scheduled.
func (a *Aggregator) Resumed(conversationID string) {
	if !a.replayOnResume {
		if n := a.Discard(conversationID); n > 0 {
			a.log.Info("Discarded buffer of resumed conversation", "conversation_id", conversationID, "messages", n)
		}
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[conversationID]
	if !ok || a.closed || b.scheduled {
		return
	}
	b.scheduled = true
	a.wg.Add(1)
	go a.run(conversationID, b)
}

// Close stops every pending flush task and drops unflushed buffers.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.done)
	a.mu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	pending := len(a.buffers)
	a.buffers = make(map[string]*buffer)
	a.mu.Unlock()

	if pending > 0 {
		a.log.Info("Dropped unflushed buffers on close", "conversations", pending)
	}
}

func (a *Aggregator) run(conversationID string, b *buffer) {
	defer a.wg.Done()

	timer := time.NewTimer(a.quiet)
	defer timer.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-timer.C:
		}

		paused := a.paused != nil && a.paused(conversationID)

		a.mu.Lock()
		if a.buffers[conversationID] != b {
			a.mu.Unlock()
			return
		}
		if wait := b.lastArrival.Add(a.quiet).Sub(a.now()); wait > 0 {
			a.mu.Unlock()
			timer.Reset(wait)
			continue
		}
		if paused {
			b.scheduled = false
			b.heldThrough = b.lastArrival
			held := len(b.messages)
			a.mu.Unlock()
			a.log.Debug("Holding buffer of paused conversation", "conversation_id", conversationID, "messages", held)
			return
		}

		if b.held() && !a.replayOnResume {
			n := b.dropHeld()
			a.log.Info("Discarded messages held past pause", "conversation_id", conversationID, "messages", n)
			if len(b.messages) == 0 {
				delete(a.buffers, conversationID)
				a.mu.Unlock()
				return
			}
		}

		delete(a.buffers, conversationID)
		turn := b.turn(conversationID)
		a.mu.Unlock()

		a.log.Debug("Flushing turn",
			"conversation_id", conversationID,
			"turn_id", turn.ID,
			"messages", len(turn.Messages),
			"text_preview", preview(turn.Text, 80),
		)
		a.flush(turn)
		return
	}
}

func (b *buffer) held() bool { return !b.heldThrough.IsZero() }

// dropHeld removes messages that arrived before the buffer was last held.
func (b *buffer) dropHeld() int {
	keep := 0
	for keep < len(b.messages) && !b.messages[keep].At.After(b.heldThrough) {
		keep++
	}
	b.messages = b.messages[keep:]
	b.heldThrough = time.Time{}
	return keep
}

func (b *buffer) turn(conversationID string) Turn {
	texts := make([]string, 0, len(b.messages))
	for _, m := range b.messages {
		if t := strings.TrimSpace(m.Text); t != "" {
			texts = append(texts, t)
		}
	}

	t := Turn{
		ID:             uuid.NewString(),
		Channel:        b.channel,
		ConversationID: conversationID,
		ActorID:        b.actorID,
		Text:           strings.Join(texts, " "),
		Messages:       b.messages,
		Metadata:       b.metadata,
	}
	if len(b.messages) > 0 {
		t.FirstAt = b.messages[0].At
		t.LastAt = b.messages[len(b.messages)-1].At
	}
	return t
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
