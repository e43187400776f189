package telegram

import (
	"context"
	"strings"
	"testing"

	"github.com/mymmrac/telego"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/logger"
)

func TestAllowFromSet(t *testing.T) {
	allowed := allowFromSet([]string{" 123 ", "", "456", "123"})
	if len(allowed) != 2 {
		t.Fatalf("allowFromSet len = %d, want 2", len(allowed))
	}
	if _, ok := allowed["123"]; !ok {
		t.Fatal("allowFromSet missing 123")
	}
	if _, ok := allowed["456"]; !ok {
		t.Fatal("allowFromSet missing 456")
	}
}

func TestSenderAllowed(t *testing.T) {
	adapter := &Adapter{allowFrom: map[string]struct{}{"1": {}}}
	if !adapter.senderAllowed("1") {
		t.Fatal("expected sender 1 to be allowed")
	}
	if adapter.senderAllowed("2") {
		t.Fatal("expected sender 2 to be denied")
	}

	adapter.allowFrom = nil
	if !adapter.senderAllowed("any") {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestConversationID(t *testing.T) {
	if got := conversationID(" 42 "); got != "telegram:42" {
		t.Fatalf("conversationID = %q, want %q", got, "telegram:42")
	}
}

func TestToInbound(t *testing.T) {
	adapter := &Adapter{log: logger.Discard()}
	base := func(m telego.Message) telego.Update {
		m.From = &telego.User{ID: 7}
		m.Chat = telego.Chat{ID: 42}
		m.MessageID = 99
		m.Date = 1767225600
		return telego.Update{UpdateID: 5, Message: &m}
	}

	tests := []struct {
		name string
		msg  telego.Message
		kind bus.EventKind
		ok   bool
	}{
		{"text", telego.Message{Text: " đi Nhật 5 người "}, bus.KindText, true},
		{"start", telego.Message{Text: "/start"}, bus.KindFollow, true},
		{"photo", telego.Message{Photo: []telego.PhotoSize{{FileID: "p"}}}, bus.KindImage, true},
		{"sticker", telego.Message{Sticker: &telego.Sticker{FileID: "s"}}, bus.KindSticker, true},
		{"empty", telego.Message{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := adapter.toInbound(base(tt.msg))
			if ok != tt.ok {
				t.Fatalf("toInbound ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.Kind != tt.kind {
				t.Fatalf("kind = %q, want %q", ev.Kind, tt.kind)
			}
			if ev.ConversationID != "telegram:42" || ev.ActorID != "7" || ev.MessageID != "99" {
				t.Fatalf("event ids = %+v", ev)
			}
			if ev.Timestamp.Unix() != 1767225600 {
				t.Fatalf("timestamp = %v", ev.Timestamp)
			}
		})
	}

	ev, _ := adapter.toInbound(base(telego.Message{Text: " đi Nhật 5 người "}))
	if ev.Text != "đi Nhật 5 người" {
		t.Fatalf("text = %q", ev.Text)
	}

	if _, ok := adapter.toInbound(telego.Update{UpdateID: 1}); ok {
		t.Fatal("update without message must be dropped")
	}
}

func TestSendBeforeRunFails(t *testing.T) {
	adapter := &Adapter{log: logger.Discard()}
	if err := adapter.Send(context.Background(), bus.OutboundMessage{RecipientID: "42", Content: "hi"}); err == nil {
		t.Fatal("expected error before the bot is started")
	}
}

func TestPreviewText(t *testing.T) {
	short := " hello "
	if got := previewText(short); got != "hello" {
		t.Fatalf("previewText short = %q, want %q", got, "hello")
	}

	long := strings.Repeat("a", messagePreviewLimit+20)
	got := previewText(long)
	if len(got) != messagePreviewLimit+3 {
		t.Fatalf("previewText long len = %d, want %d", len(got), messagePreviewLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("previewText long = %q, want ellipsis suffix", got)
	}
}
