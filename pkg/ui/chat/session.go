package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"tourdesk/pkg/bus"
)

// ChannelName scopes simulator conversations, e.g. "cli:guest".
const ChannelName = "cli"

// Receiver is the pipeline entry point the simulator feeds.
type Receiver interface {
	Receive(ctx context.Context, ev bus.InboundEvent)
}

// Session plays one customer against the assistant pipeline. Replies
// published on the bus outbound queue are forwarded to Replies.
type Session struct {
	receiver Receiver
	bus      *bus.MessageBus
	actorID  string
	now      func() time.Time
	seq      atomic.Int64
	replies  chan string
}

// NewSession binds a simulated customer named actorID to the pipeline.
func NewSession(receiver Receiver, mb *bus.MessageBus, actorID string) (*Session, error) {
	if receiver == nil || mb == nil {
		return nil, errors.New("receiver and bus are required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "guest"
	}
	return &Session{
		receiver: receiver,
		bus:      mb,
		actorID:  actorID,
		now:      time.Now,
		replies:  make(chan string, 32),
	}, nil
}

func (s *Session) ConversationID() string {
	return ChannelName + ":" + s.actorID
}

// Replies delivers reply text in publish order. It is closed when Run returns.
func (s *Session) Replies() <-chan string {
	return s.replies
}

// Run forwards outbound messages until ctx is done or the bus closes.
func (s *Session) Run(ctx context.Context) {
	defer close(s.replies)
	for {
		msg, ok := s.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}
		if msg.ConversationID != s.ConversationID() {
			continue
		}
		select {
		case s.replies <- msg.Content:
		case <-ctx.Done():
			return
		}
	}
}

// Send delivers one line typed by the customer. "/follow", "/photo",
// "/sticker" and "/file" simulate the matching non-text events.
func (s *Session) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	ev := bus.InboundEvent{
		Channel:        ChannelName,
		Kind:           bus.KindText,
		ConversationID: s.ConversationID(),
		ActorID:        s.actorID,
		MessageID:      ChannelName + "-" + strconv.FormatInt(s.seq.Add(1), 10),
		Text:           text,
		Timestamp:      s.now().UTC(),
	}
	if kind, ok := simulatedKinds[strings.ToLower(text)]; ok {
		ev.Kind = kind
		ev.Text = ""
	}
	s.receiver.Receive(ctx, ev)
}

var simulatedKinds = map[string]bus.EventKind{
	"/follow":  bus.KindFollow,
	"/photo":   bus.KindImage,
	"/sticker": bus.KindSticker,
	"/file":    bus.KindFile,
}
