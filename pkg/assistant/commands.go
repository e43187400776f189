package assistant

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/pause"
)

const timeLayout = "15:04:05, 02/01/2006"

// command executes an admin pause command and answers the admin in the
// conversation the command came from.
func (a *Assistant) command(ctx context.Context, ev bus.InboundEvent, cmd pause.Command) {
	target := commandTarget(ev, cmd.Target)
	log := a.log.With("conversation_id", target, "action", cmd.Action, "admin", ev.ActorID)

	var text string
	switch cmd.Action {
	case pause.ActionStop:
		until, err := a.pauses.Pause(ctx, target, cmd.Duration)
		if err != nil {
			log.Error("Pause failed", "error", err)
			text = fmt.Sprintf("Lỗi khi tạm dừng bot: %v", err)
			break
		}
		a.publish(ctx, bus.Event{Type: bus.EventPaused, Channel: ev.Channel, ConversationID: target})
		text = fmt.Sprintf("Đã tạm dừng bot trong %d phút, tư vấn viên có thể trực tiếp tư vấn khách hàng. Bot sẽ tự động hoạt động lại lúc %s",
			int(cmd.Duration/time.Minute), until.Local().Format(timeLayout))

	case pause.ActionResume:
		wasPaused, err := a.pauses.Resume(ctx, target)
		if err != nil {
			log.Error("Resume failed", "error", err)
			text = fmt.Sprintf("Lỗi khi khôi phục bot: %v", err)
			break
		}
		if !wasPaused {
			text = "Bot không bị tạm dừng cho cuộc hội thoại này"
			break
		}
		a.agg.Resumed(target)
		a.publish(ctx, bus.Event{Type: bus.EventResumed, Channel: ev.Channel, ConversationID: target})
		text = "Bot đã được khôi phục và sẵn sàng phản hồi lại"

	case pause.ActionStatus:
		until, paused, err := a.pauses.Status(ctx, target)
		switch {
		case err != nil:
			log.Error("Status lookup failed", "error", err)
			text = fmt.Sprintf("Lỗi khi kiểm tra trạng thái bot: %v", err)
		case paused:
			remaining := math.Max(0, time.Until(until).Minutes())
			text = fmt.Sprintf("Bot đang tạm dừng, còn %.1f phút nữa sẽ tự động hoạt động lại", remaining)
		default:
			text = "Bot đang hoạt động bình thường trong cuộc hội thoại này"
		}
	}

	log.Info("Admin command handled")
	a.send(ctx, ev.Channel, ev.ConversationID, recipientOf(ev.ActorID, ev.Metadata), text)
}

// commandTarget resolves the conversation a command applies to. A bare id
// is scoped to the admin's channel.
func commandTarget(ev bus.InboundEvent, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ev.ConversationID
	}
	if strings.Contains(target, ":") {
		return target
	}
	return ev.Channel + ":" + target
}
