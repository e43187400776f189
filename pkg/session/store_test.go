package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/pricing"
	"tourdesk/pkg/store"
	"tourdesk/pkg/store/memstore"
)

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenStore) Put(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b brokenStore) PutIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, b.err
}
func (b brokenStore) Update(context.Context, string, time.Duration, store.UpdateFunc) error {
	return b.err
}
func (b brokenStore) Delete(context.Context, string) error { return b.err }
func (b brokenStore) Ping(context.Context) error           { return b.err }
func (b brokenStore) Close() error                         { return nil }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	kv := memstore.New(memstore.WithClock(c.Now))
	return NewStore(kv, WithClock(c.Now), WithIdleExpiry(24*time.Hour), WithLogger(logger.Discard())), c
}

func TestMergeNeverErasesKnownSlots(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, "c1", Partial{Slots: Slots{Pax: Ptr(4)}})
	require.NoError(t, err)

	merged, err := s.Merge(ctx, "c1", Partial{Slots: Slots{Region: Ptr(pricing.AsiaLow)}})
	require.NoError(t, err)

	require.NotNil(t, merged.Slots.Pax)
	require.Equal(t, 4, *merged.Slots.Pax)
	require.NotNil(t, merged.Slots.Region)
	require.Equal(t, pricing.AsiaLow, *merged.Slots.Region)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, merged.Slots, got.Slots)
}

func TestMergeOverwritesWithNewValues(t *testing.T) {
	t.Parallel()

	base := Slots{Pax: Ptr(4), NoMeal: Ptr(true)}
	merged := base.Merge(Slots{Pax: Ptr(6), NoMeal: Ptr(false)})

	if *merged.Pax != 6 || *merged.NoMeal {
		t.Fatalf("merged = pax %d no_meal %v, want 6 false", *merged.Pax, *merged.NoMeal)
	}
	if *base.Pax != 4 {
		t.Fatal("merge must not mutate the receiver's values")
	}
}

func TestOriginalQueryIsSetOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, "c1", Partial{OriginalQuery: Ptr("đi Nhật 5 người")})
	require.NoError(t, err)
	c, err := s.Merge(ctx, "c1", Partial{OriginalQuery: Ptr("10 ngày")})
	require.NoError(t, err)

	require.Equal(t, "đi Nhật 5 người", c.OriginalQuery)
}

func TestIdleExpiryResetsOnRead(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, "c1", Partial{Slots: Slots{Days: Ptr(7)}})
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	c, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, c.Slots.Days)

	clk.Advance(2 * time.Hour)
	c, err = s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Nil(t, c.Slots.Days, "context idle past expiry should read as fresh")
}

func TestResetKeepsOriginalQuery(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	flow := FlowQuoted
	_, err := s.Merge(ctx, "c1", Partial{
		Slots:         Slots{Pax: Ptr(3), Days: Ptr(5), Region: Ptr(pricing.UK)},
		PendingFlow:   &flow,
		OriginalQuery: Ptr("tour anh quốc"),
	})
	require.NoError(t, err)

	c, err := s.Reset(ctx, "c1", true)
	require.NoError(t, err)
	require.Equal(t, "tour anh quốc", c.OriginalQuery)
	require.False(t, c.Slots.HasCore())
	require.Equal(t, FlowNone, c.PendingFlow)

	c, err = s.Reset(ctx, "c1", false)
	require.NoError(t, err)
	require.Empty(t, c.OriginalQuery)
}

func TestPersistenceFailureDegradesToStateless(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewStore(brokenStore{err: boom}, WithLogger(logger.Discard()))
	ctx := context.Background()

	c, err := s.Get(ctx, "c1")
	require.True(t, apperr.Is(err, apperr.PersistenceUnavailable))
	require.Equal(t, "c1", c.ConversationID)

	merged, err := s.Merge(ctx, "c1", Partial{Slots: Slots{Pax: Ptr(5)}})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, merged.Slots.Pax, "partial is still applied for the current turn")
}

func TestConcurrentMergesAreSerialized(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Merge(ctx, "c1", Partial{CountTurn: true}); err != nil {
				t.Errorf("Merge error: %v", err)
			}
		}()
	}
	wg.Wait()

	c, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 20, c.Turns)
}

func TestMissingOrder(t *testing.T) {
	t.Parallel()

	got := Slots{Pax: Ptr(2)}.Missing()
	want := []string{SlotDestination, SlotDays}
	require.Equal(t, want, got)
	require.True(t, Slots{Region: Ptr(pricing.AsiaHigh), Pax: Ptr(1), Days: Ptr(1)}.Complete())
}
