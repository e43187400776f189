package admission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
	"tourdesk/pkg/store/memstore"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestGate() *Gate {
	kv := memstore.New(memstore.WithClock(func() time.Time { return testNow }))
	return NewGate(kv,
		WithClock(func() time.Time { return testNow }),
		WithStaleness(5*time.Minute),
		WithLogger(logger.Discard()),
	)
}

func textEvent(id string, at time.Time) bus.InboundEvent {
	return bus.InboundEvent{
		Channel:        "zalo",
		Kind:           bus.KindText,
		ConversationID: "zalo:u1",
		ActorID:        "u1",
		MessageID:      id,
		Text:           "xin chào",
		Timestamp:      at,
	}
}

func TestDuplicateWithinWindowIsRejected(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	v, err := g.Admit(ctx, textEvent("m1", testNow))
	require.NoError(t, err)
	require.Equal(t, Accepted, v)

	v, err = g.Admit(ctx, textEvent("m1", testNow))
	require.NoError(t, err)
	require.Equal(t, DuplicateRejected, v)

	v, err = g.Admit(ctx, textEvent("m2", testNow))
	require.NoError(t, err)
	require.Equal(t, Accepted, v)
}

func TestStaleEventIsRejected(t *testing.T) {
	g := newTestGate()

	v, err := g.Admit(context.Background(), textEvent("old", testNow.Add(-6*time.Minute)))
	require.NoError(t, err)
	require.Equal(t, StaleRejected, v)

	v, err = g.Admit(context.Background(), textEvent("recent", testNow.Add(-4*time.Minute)))
	require.NoError(t, err)
	require.Equal(t, Accepted, v)
}

func TestZeroTimestampIsTreatedAsNow(t *testing.T) {
	g := newTestGate()

	v, err := g.Admit(context.Background(), textEvent("m1", time.Time{}))
	require.NoError(t, err)
	require.Equal(t, Accepted, v)
}

func TestConcurrentDuplicatesAdmitOnce(t *testing.T) {
	g := newTestGate()
	ctx := context.Background()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.Admit(ctx, textEvent("same", testNow))
			if err != nil {
				t.Errorf("Admit error: %v", err)
				return
			}
			if v == Accepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := accepted.Load(); got != 1 {
		t.Fatalf("accepted = %d, want 1", got)
	}
}

func TestFingerprintDiscriminators(t *testing.T) {
	t.Parallel()

	at := testNow
	a := Fingerprint(textEvent("m1", at), at)
	b := Fingerprint(textEvent("m1", at.Add(3*time.Second)), at.Add(3*time.Second))
	if a != b {
		t.Fatal("message id fingerprint must not depend on timestamp")
	}

	noID := textEvent("", at)
	c := Fingerprint(noID, at)
	d := Fingerprint(noID, at.Add(2*time.Second))
	if c == d {
		t.Fatal("id-less message fingerprint must include the timestamp bucket")
	}
	other := noID
	other.Text = "tạm biệt"
	if Fingerprint(other, at) == c {
		t.Fatal("id-less message fingerprint must include the text")
	}

	follow := bus.InboundEvent{Channel: "zalo", Kind: bus.KindFollow, ActorID: "u1"}
	follow2 := follow
	follow2.ActorID = "u2"
	if Fingerprint(follow, at) == Fingerprint(follow2, at) {
		t.Fatal("actor events must key on actor id")
	}
	if Fingerprint(follow, at) != Fingerprint(follow, at.Add(200*time.Millisecond)) {
		t.Fatal("actor events within one bucket must collide")
	}
}

type failingStore struct{ store.Store }

func (failingStore) PutIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestStoreFailureAdmitsDegraded(t *testing.T) {
	g := NewGate(failingStore{}, WithClock(func() time.Time { return testNow }), WithLogger(logger.Discard()))

	v, err := g.Admit(context.Background(), textEvent("m1", testNow))
	require.Equal(t, Accepted, v)
	require.True(t, apperr.Is(err, apperr.PersistenceUnavailable))
}

func TestVerdictString(t *testing.T) {
	t.Parallel()

	if DuplicateRejected.String() != "duplicate_rejected" {
		t.Fatalf("String() = %q", DuplicateRejected.String())
	}
}
