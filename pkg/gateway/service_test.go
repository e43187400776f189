package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tourdesk/pkg/bus"
	"tourdesk/pkg/channel"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store/memstore"
)

type pingStore struct {
	*memstore.Store
	err error
}

func (s pingStore) Ping(context.Context) error { return s.err }

func TestIsReady(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"telegram": {Running: true}}}
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and no capability")
	}

	svc.capability = healthFunc(func(context.Context) error { return nil })
	if svc.isReady() {
		t.Fatal("expected not ready before the capability answered")
	}

	svc.capabilityLastOKAt = time.Now().UTC()
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and healthy capability")
	}

	svc.capabilityLastErr = "boom"
	if svc.isReady() {
		t.Fatal("expected not ready when capability has error")
	}

	svc.capabilityLastErr = ""
	svc.storeLastErr = "connection refused"
	if svc.isReady() {
		t.Fatal("expected not ready when store is unreachable")
	}
}

func TestIsReadyRequiresRunningChannel(t *testing.T) {
	t.Parallel()

	svc := &Service{channelStates: map[string]channelState{"zalo": {Running: false, Error: "bind"}}}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}
}

func TestCheckStoreRecordsPingError(t *testing.T) {
	t.Parallel()

	svc := &Service{kv: pingStore{Store: memstore.New(), err: errors.New("down")}, log: logger.Discard()}
	svc.checkStore(context.Background())
	if got := svc.currentStatus("x").StoreLastErr; got != "down" {
		t.Fatalf("StoreLastErr = %q, want %q", got, "down")
	}
}

type typingAdapter struct {
	mu    sync.Mutex
	calls []string
}

func (a *typingAdapter) Name() string { return "zalo" }
func (a *typingAdapter) Run(context.Context, channel.Handler) error { return nil }
func (a *typingAdapter) Send(context.Context, bus.OutboundMessage) error { return nil }
func (a *typingAdapter) Typing(_ context.Context, recipientID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, recipientID)
	return nil
}

func TestTypingRoutesToTypers(t *testing.T) {
	t.Parallel()

	adapter := &typingAdapter{}
	typing := Typing([]channel.Adapter{adapter}, logger.Discard())

	typing(context.Background(), "zalo", "u1")
	typing(context.Background(), "telegram", "42")

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.calls) != 1 || adapter.calls[0] != "u1" {
		t.Fatalf("typing calls = %v, want [u1]", adapter.calls)
	}
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }
