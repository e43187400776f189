package pause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
)

const DefaultDuration = 30 * time.Minute

// Registry stores pause flags as expiring keys.
type Registry struct {
	kv  store.Store
	now func() time.Time
	log *slog.Logger
}

func NewRegistry(kv store.Store, log *slog.Logger) *Registry {
	return &Registry{
		kv:  kv,
		now: time.Now,
		log: logger.OrDefault(log).With("component", "pause"),
	}
}

// Pause stops automated replies for a conversation until d elapses.
func (r *Registry) Pause(ctx context.Context, conversationID string, d time.Duration) (time.Time, error) {
	if d <= 0 {
		d = DefaultDuration
	}
	until := r.now().Add(d)
	raw := []byte(strconv.FormatInt(until.UnixMilli(), 10))
	if err := r.kv.Put(ctx, store.PauseKey(conversationID), raw, d); err != nil {
		return time.Time{}, fmt.Errorf("pause %s: %w", conversationID, err)
	}
	r.log.Info("Conversation paused", "conversation_id", conversationID, "until", until)
	return until, nil
}

// Resume clears the pause flag. It reports whether the conversation was paused.
func (r *Registry) Resume(ctx context.Context, conversationID string) (bool, error) {
	_, paused, err := r.Status(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if err := r.kv.Delete(ctx, store.PauseKey(conversationID)); err != nil {
		return false, fmt.Errorf("resume %s: %w", conversationID, err)
	}
	if paused {
		r.log.Info("Conversation resumed", "conversation_id", conversationID)
	}
	return paused, nil
}

// Status returns the pause deadline when the conversation is paused.
func (r *Registry) Status(ctx context.Context, conversationID string) (time.Time, bool, error) {
	raw, err := r.kv.Get(ctx, store.PauseKey(conversationID))
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("pause status %s: %w", conversationID, err)
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("pause status %s: malformed value %q", conversationID, raw)
	}
	until := time.UnixMilli(ms)
	if !until.After(r.now()) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// IsPaused is the boolean form of Status. Store errors read as not paused.
func (r *Registry) IsPaused(ctx context.Context, conversationID string) bool {
	_, paused, err := r.Status(ctx, conversationID)
	if err != nil {
		r.log.Warn("Pause lookup failed", "conversation_id", conversationID, "error", err)
		return false
	}
	return paused
}

// Action is an admin command verb.
type Action string

const (
	ActionStop   Action = "stop"
	ActionResume Action = "resume"
	ActionStatus Action = "status"
)

// Command is a parsed admin command. Target is empty when the command
// applies to the conversation it was sent in.
type Command struct {
	Action   Action
	Target   string
	Duration time.Duration
}

// ParseCommand recognizes "/stop [conversation] [minutes]", "/resume
// [conversation]" and "/status [conversation]". The second return value is
// false for anything else.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(verb, '@'); i >= 0 {
		verb = verb[:i]
	}
	args := fields[1:]

	var cmd Command
	switch Action(verb) {
	case ActionStop:
		cmd.Action = ActionStop
		cmd.Duration = DefaultDuration
		for _, arg := range args {
			if minutes, err := strconv.Atoi(arg); err == nil && minutes > 0 {
				cmd.Duration = time.Duration(minutes) * time.Minute
				continue
			}
			if cmd.Target == "" {
				cmd.Target = arg
			}
		}
	case ActionResume, ActionStatus:
		cmd.Action = Action(verb)
		if len(args) > 0 {
			cmd.Target = args[0]
		}
	default:
		return Command{}, false
	}
	return cmd, true
}
