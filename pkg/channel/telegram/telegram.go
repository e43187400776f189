package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/channel"
	"tourdesk/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	channelName         = "telegram"
	messagePreviewLimit = 240
	messageLimit        = 4096
)

// Adapter bridges Telegram long polling into tourdesk inbound events and
// sends replies back to the chat.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger

	mu  sync.RWMutex
	bot *telego.Bot
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards updates to handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}
	a.mu.Lock()
	a.bot = bot
	a.mu.Unlock()

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			ev, ok := a.toInbound(update)
			if !ok {
				continue
			}
			a.log.Info("Received message",
				"conversation_id", ev.ConversationID,
				"actor_id", ev.ActorID,
				"kind", ev.Kind,
				"content", previewText(ev.Text),
			)
			handler(ctx, ev)
		}
	}
}

// toInbound normalizes one update. Updates without a message or from a
// sender outside allow_from are dropped.
func (a *Adapter) toInbound(update telego.Update) (bus.InboundEvent, bool) {
	message := update.Message
	if message == nil {
		return bus.InboundEvent{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return bus.InboundEvent{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return bus.InboundEvent{}, false
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	ev := bus.InboundEvent{
		Channel:        channelName,
		ConversationID: conversationID(chatID),
		ActorID:        senderID,
		MessageID:      strconv.Itoa(message.MessageID),
		Timestamp:      time.Unix(message.Date, 0).UTC(),
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
			"chat_id":   chatID,
		},
	}

	switch {
	case strings.TrimSpace(message.Text) == "/start":
		ev.Kind = bus.KindFollow
	case strings.TrimSpace(message.Text) != "":
		ev.Kind = bus.KindText
		ev.Text = strings.TrimSpace(message.Text)
	case len(message.Photo) > 0:
		ev.Kind = bus.KindImage
	case message.Sticker != nil:
		ev.Kind = bus.KindSticker
	case message.Document != nil:
		ev.Kind = bus.KindFile
	default:
		return bus.InboundEvent{}, false
	}
	return ev, true
}

// Send delivers msg to the chat named by RecipientID, split to the
// Telegram message limit.
func (a *Adapter) Send(ctx context.Context, msg bus.OutboundMessage) error {
	bot, err := a.currentBot()
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(msg.RecipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram chat id %q: %w", msg.RecipientID, err)
	}

	for _, chunk := range channel.Split(msg.Content, messageLimit) {
		a.log.Info("Sending message", "conversation_id", msg.ConversationID, "content", previewText(chunk))
		if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

// Typing shows the typing action in the chat.
func (a *Adapter) Typing(ctx context.Context, recipientID string) error {
	bot, err := a.currentBot()
	if err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("parse telegram chat id %q: %w", recipientID, err)
	}
	return bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping))
}

func (a *Adapter) currentBot() (*telego.Bot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.bot == nil {
		return nil, errors.New("telegram channel is not running")
	}
	return a.bot, nil
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// conversationID scopes a Telegram chat id to the channel.
func conversationID(chatID string) string {
	return "telegram:" + strings.TrimSpace(chatID)
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
