// Package zalo connects a Zalo Official Account to the assistant: a webhook
// server for inbound events and the OA customer-service API for replies.
package zalo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/channel"
	"tourdesk/pkg/config"
	"tourdesk/pkg/logger"
)

const (
	channelName         = "zalo"
	signatureHeader     = "X-ZaloOA-Signature"
	messagePreviewLimit = 240
	shutdownTimeout     = 5 * time.Second
)

// Adapter serves the Zalo webhook and sends replies through the OA API.
type Adapter struct {
	cfg     config.ZaloConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	log     *slog.Logger
}

// NewAdapter validates Zalo configuration and constructs an adapter instance.
func NewAdapter(cfg config.ZaloConfig, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("channels.zalo.access_token is required")
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("channels.zalo.api_base_url is required")
	}
	if cfg.MessageLimit <= 0 {
		return nil, errors.New("channels.zalo.message_limit must be positive")
	}

	perSec := cfg.SendRatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	a := &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		now:     time.Now,
		log:     logger.OrDefault(log).With("component", "channel.zalo"),
	}
	if strings.TrimSpace(cfg.AppSecret) == "" || cfg.SkipSignature {
		a.log.Warn("Webhook signature verification disabled")
	}
	return a, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run serves the webhook until ctx is canceled.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("Zalo webhook listening", "addr", a.cfg.Listen, "path", a.cfg.WebhookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown zalo webhook: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve zalo webhook: %w", err)
		}
		return nil
	}
}

// Routes builds the webhook engine. GET answers the platform's liveness
// probe; POST carries events.
func (a *Adapter) Routes(handler channel.Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	path := a.cfg.WebhookPath
	if path == "" {
		path = "/webhook"
	}
	engine.GET(path, func(c *gin.Context) {
		c.String(http.StatusOK, "Webhook is active!")
	})
	engine.POST(path, func(c *gin.Context) {
		a.handleWebhook(c, handler)
	})
	return engine
}

func (a *Adapter) handleWebhook(c *gin.Context, handler channel.Handler) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	if !a.verify(body, c.GetHeader(signatureHeader)) {
		a.log.Warn("Rejected webhook with invalid signature", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	ev, ok := a.toInbound(payload)
	if !ok {
		a.log.Debug("Unhandled webhook event", "event_name", payload.EventName)
		c.JSON(http.StatusOK, gin.H{"status": "unhandled_event"})
		return
	}

	a.log.Info("Received message",
		"conversation_id", ev.ConversationID,
		"kind", ev.Kind,
		"content", previewText(ev.Text),
	)
	handler(c.Request.Context(), ev)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// verify checks the hex HMAC-SHA256 of the raw body. Verification is
// skipped when no app secret is configured or skip_signature is set.
func (a *Adapter) verify(body []byte, signature string) bool {
	secret := strings.TrimSpace(a.cfg.AppSecret)
	if secret == "" || a.cfg.SkipSignature {
		return true
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type webhookPayload struct {
	EventName string    `json:"event_name"`
	Timestamp millis    `json:"timestamp"`
	Sender    party     `json:"sender"`
	Follower  party     `json:"follower"`
	Message   oaMessage `json:"message"`
}

type party struct {
	ID string `json:"id"`
}

type oaMessage struct {
	MsgID    string `json:"msg_id"`
	Text     string `json:"text"`
	ButtonID string `json:"button_id"`
	Payload  string `json:"payload"`
}

// millis decodes Zalo timestamps, which arrive as numbers or numeric strings.
type millis int64

func (m *millis) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	*m = millis(v)
	return nil
}

func (a *Adapter) toInbound(p webhookPayload) (bus.InboundEvent, bool) {
	ev := bus.InboundEvent{
		Channel:   channelName,
		MessageID: strings.TrimSpace(p.Message.MsgID),
		Timestamp: a.now().UTC(),
		Metadata:  map[string]string{"event_name": p.EventName},
	}
	if p.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(int64(p.Timestamp)).UTC()
	}

	actor := p.Sender.ID
	switch p.EventName {
	case "user_send_text":
		ev.Kind = bus.KindText
		ev.Text = strings.TrimSpace(p.Message.Text)
		if ev.Text == "" {
			return bus.InboundEvent{}, false
		}
	case "user_click_button":
		ev.Kind = bus.KindButton
		ev.Text = firstNonEmpty(p.Message.Text, p.Message.Payload, p.Message.ButtonID)
		if ev.Text == "" {
			return bus.InboundEvent{}, false
		}
	case "user_follow":
		ev.Kind = bus.KindFollow
		actor = firstNonEmpty(p.Follower.ID, p.Sender.ID)
	case "user_send_image", "user_send_gif":
		ev.Kind = bus.KindImage
	case "user_send_sticker":
		ev.Kind = bus.KindSticker
	case "user_send_file", "user_send_audio", "user_send_video":
		ev.Kind = bus.KindFile
	default:
		return bus.InboundEvent{}, false
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return bus.InboundEvent{}, false
	}
	ev.ActorID = actor
	ev.ConversationID = channelName + ":" + actor
	return ev, true
}

type sendRequest struct {
	Recipient    recipient `json:"recipient"`
	Message      *textBody `json:"message,omitempty"`
	SenderAction string    `json:"sender_action,omitempty"`
}

type recipient struct {
	UserID string `json:"user_id"`
}

type textBody struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// Send delivers msg to the Zalo user named by RecipientID, split to the
// configured message limit. Each chunk waits on the send limiter.
func (a *Adapter) Send(ctx context.Context, msg bus.OutboundMessage) error {
	userID := strings.TrimSpace(msg.RecipientID)
	if userID == "" {
		return errors.New("zalo recipient is required")
	}

	for _, chunk := range channel.Split(msg.Content, a.cfg.MessageLimit) {
		if err := a.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
		a.log.Info("Sending message", "conversation_id", msg.ConversationID, "content", previewText(chunk))
		req := sendRequest{Recipient: recipient{UserID: userID}, Message: &textBody{Text: chunk}}
		if err := a.post(ctx, "/oa/message/cs", req); err != nil {
			return fmt.Errorf("send zalo message: %w", err)
		}
	}
	return nil
}

// Typing shows the typing indicator to the user.
func (a *Adapter) Typing(ctx context.Context, recipientID string) error {
	if !a.cfg.TypingIndicator {
		return nil
	}
	req := sendRequest{Recipient: recipient{UserID: strings.TrimSpace(recipientID)}, SenderAction: "typing"}
	if err := a.post(ctx, "/oa/conversation", req); err != nil {
		return fmt.Errorf("send zalo typing: %w", err)
	}
	return nil
}

func (a *Adapter) post(ctx context.Context, path string, body any) error {
	log := a.log.With("operation", path)
	startedAt := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := strings.TrimRight(a.cfg.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", a.cfg.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		log.Debug("api request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		log.Debug("api request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "status", resp.StatusCode)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result apiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Error != 0 {
		log.Debug("api request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "code", result.Error)
		return fmt.Errorf("zalo error %d: %s", result.Error, result.Message)
	}
	log.Debug("api request completed", "duration_ms", time.Since(startedAt).Milliseconds())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= messagePreviewLimit {
		return trimmed
	}
	return string(runes[:messagePreviewLimit]) + "..."
}
