package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/leads"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/pricing"
	"tourdesk/pkg/session"
	"tourdesk/pkg/slots"
	"tourdesk/pkg/store"
	"tourdesk/pkg/store/memstore"
)

type downStore struct{ store.Store }

var errDown = errors.New("connection refused")

func (downStore) Get(context.Context, string) ([]byte, error) { return nil, errDown }
func (downStore) Update(context.Context, string, time.Duration, store.UpdateFunc) error {
	return errDown
}

type harness struct {
	ctrl     *Controller
	sessions *session.Store
	leads    *leads.Recorder
}

type cannedCapability string

func (c cannedCapability) Complete(context.Context, string, string) (string, error) {
	return string(c), nil
}

func newHarness(t *testing.T, kv store.Store, extractorOpts ...slots.Option) harness {
	t.Helper()
	catalog := pricing.DefaultCatalog()
	sessions := session.NewStore(kv, session.WithLogger(logger.Discard()))
	recorder := leads.NewRecorder(memstore.New(), leads.WithLogger(logger.Discard()))
	extractorOpts = append(extractorOpts, slots.WithLogger(logger.Discard()))
	ctrl := New(sessions, slots.New(catalog, extractorOpts...), catalog,
		WithLeads(recorder),
		WithHotline("1900 636563"),
		WithBrand("Passport Lounge"),
		WithLogger(logger.Discard()),
	)
	return harness{ctrl: ctrl, sessions: sessions, leads: recorder}
}

func (h harness) say(t *testing.T, text string) Reply {
	t.Helper()
	reply, err := h.ctrl.Handle(context.Background(), Input{ConversationID: "zalo:u1", Channel: "zalo", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, reply.Messages)
	return reply
}

func TestQuoteJapanWithLongTripDiscount(t *testing.T) {
	h := newHarness(t, memstore.New())

	reply := h.say(t, "Tôi muốn đi Nhật Bản 5 người 10 ngày")

	require.Equal(t, StateQuoted, reply.State)
	require.NotNil(t, reply.Quote)
	require.True(t, reply.Quote.DiscountApplied)
	require.Equal(t, pricing.Dollars(17100), reply.Quote.Total)

	msg := reply.Messages[0]
	require.Contains(t, msg, "tour Nhật Bản 10 ngày cho 5 người")
	require.Contains(t, msg, "3,420 USD/người")
	require.Contains(t, msg, "tổng 17,100 USD")
	require.Contains(t, msg, "Đã giảm 5%")

	stored, err := h.sessions.Get(context.Background(), "zalo:u1")
	require.NoError(t, err)
	require.Equal(t, session.FlowQuoted, stored.PendingFlow)
	require.NotNil(t, stored.LastQuote)
	require.Equal(t, "Tôi muốn đi Nhật Bản 5 người 10 ngày", stored.OriginalQuery)
}

func TestUnlistedDestinationQuotedAtDefaultRegion(t *testing.T) {
	capability := cannedCapability(`{"destination":"Peru","pax":null,"days":null}`)
	h := newHarness(t, memstore.New(), slots.WithCapability(capability))

	reply := h.say(t, "Tôi muốn đi Peru 5 người 10 ngày")

	require.Equal(t, StateQuoted, reply.State)
	require.Equal(t, pricing.AsiaHigh, reply.Quote.Region)
	require.Equal(t, pricing.Dollars(17100), reply.Quote.Total)
	require.Contains(t, reply.Messages[0], "tour Peru 10 ngày cho 5 người")
	require.Contains(t, reply.Messages[0], "Peru chưa có bảng giá riêng")
}

func TestListedDestinationQuoteHasNoDefaultNotice(t *testing.T) {
	h := newHarness(t, memstore.New())

	reply := h.say(t, "Tôi muốn đi Nhật Bản 5 người 10 ngày")
	require.NotContains(t, reply.Messages[0], "chưa có bảng giá riêng")
}

func TestElicitationNamesMissingSlots(t *testing.T) {
	h := newHarness(t, memstore.New())

	reply := h.say(t, "cho em hỏi tour Thái Lan")
	require.Equal(t, StateEliciting, reply.State)
	require.Contains(t, reply.Messages[0], "tour Thái Lan")
	require.Contains(t, reply.Messages[0], "số ngày đi và số người đi")

	reply = h.say(t, "4 người")
	require.Equal(t, StateEliciting, reply.State)
	require.Contains(t, reply.Messages[0], "số ngày đi")
	require.NotContains(t, reply.Messages[0], "số người đi")

	reply = h.say(t, "6 ngày")
	require.Equal(t, StateQuoted, reply.State)
	require.Equal(t, pricing.AsiaLow, reply.Quote.Region)
}

func TestSpecialCaseShortCircuitsQuote(t *testing.T) {
	h := newHarness(t, memstore.New())

	reply := h.say(t, "Tôi đã từng bị từ chối visa Mỹ, muốn đi 2 người 10 ngày")

	require.Equal(t, StateSpecialCase, reply.State)
	require.Equal(t, slots.CaseRejection, reply.CaseType)
	require.Nil(t, reply.Quote)

	joined := strings.Join(reply.Messages, "\n")
	require.Contains(t, joined, "Mỹ")
	require.Contains(t, joined, "1900 636563")
	require.Contains(t, joined, "Passport Lounge")
}

func TestPhoneHandoffRecordsLead(t *testing.T) {
	h := newHarness(t, memstore.New())

	h.say(t, "chưa có sổ tiết kiệm đi Pháp được không")
	reply := h.say(t, "sđt của mình 0912 345 678")

	require.Equal(t, StateHandoff, reply.State)
	require.Contains(t, reply.Messages[0], "0912345678")
	require.NotNil(t, reply.Lead)
	require.Equal(t, "Pháp", reply.Lead.CountryInterest)
	require.Equal(t, string(slots.CaseFinancial), reply.Lead.SpecialCase)
	require.Equal(t, "zalo", reply.Lead.Channel)

	again := h.say(t, "0912345678")
	require.Equal(t, reply.Lead.ID, again.Lead.ID, "same phone in the same conversation is one lead")
}

func TestModifierOnlyTurnRequotesDelta(t *testing.T) {
	h := newHarness(t, memstore.New())

	h.say(t, "Nhật 5 người 10 ngày")
	reply := h.say(t, "không cần ăn nhé")

	require.Equal(t, StateRequoted, reply.State)
	require.True(t, reply.Quote.Modifiers.NoMeal)
	require.Equal(t, pricing.Dollars(15100), reply.Quote.Total)

	msg := reply.Messages[0]
	require.Contains(t, msg, "Đã giảm 40 USD/khách/ngày do không gồm bữa ăn chính")
	require.Contains(t, msg, "400 USD/khách cho cả chuyến")
	require.Contains(t, msg, "tổng 15,100 USD")
}

func TestCoreChangeAfterQuoteRequotesInFull(t *testing.T) {
	h := newHarness(t, memstore.New())

	h.say(t, "Nhật 5 người 10 ngày")
	reply := h.say(t, "thôi 7 người")

	require.Equal(t, StateQuoted, reply.State)
	require.Equal(t, 7, reply.Quote.Pax)
	require.Contains(t, reply.Messages[0], "Đã gồm:")
}

func TestResetKeepsOriginalQuery(t *testing.T) {
	h := newHarness(t, memstore.New())
	ctx := context.Background()

	h.say(t, "Hàn Quốc 3 người")
	reply := h.say(t, "Bắt đầu lại nhé")
	require.Equal(t, StateReset, reply.State)
	require.Equal(t, "Dạ, em đã reset thông tin. Anh/chị có thể bắt đầu lại nhé!", reply.Messages[0])

	stored, err := h.sessions.Get(ctx, "zalo:u1")
	require.NoError(t, err)
	require.Nil(t, stored.Slots.Region)
	require.Nil(t, stored.Slots.Pax)
	require.Equal(t, "Hàn Quốc 3 người", stored.OriginalQuery)
}

func TestClarifiesAmbiguousDestination(t *testing.T) {
	h := newHarness(t, memstore.New())

	reply := h.say(t, "mình muốn hỏi về Ý")
	require.Equal(t, StateClarify, reply.State)
	require.Contains(t, reply.Messages[0], "đi Ý không ạ")
}

func TestPersistenceOutageDegradesToStateless(t *testing.T) {
	h := newHarness(t, downStore{})

	reply := h.say(t, "đi Nhật 5 người 10 ngày")
	require.Equal(t, StateQuoted, reply.State)
	require.NotEmpty(t, reply.Degraded)
	for _, err := range reply.Degraded {
		if !apperr.Is(err, apperr.PersistenceUnavailable) {
			t.Fatalf("degradation %v is not persistence_unavailable", err)
		}
	}

	reply = h.say(t, "cho em hỏi giá")
	require.Equal(t, StateEliciting, reply.State)
}

func TestFixedTexts(t *testing.T) {
	t.Parallel()

	c := New(nil, nil, pricing.DefaultCatalog(), WithHotline("1900 636563"), WithLogger(logger.Discard()))
	if got, want := c.Fallback(), "Xin lỗi, có lỗi xảy ra. Vui lòng liên hệ hotline 1900 636563 để được hỗ trợ."; got != want {
		t.Fatalf("Fallback() = %q, want %q", got, want)
	}
	if !strings.Contains(c.Welcome(), defaultBrand) {
		t.Fatalf("Welcome() = %q, want brand %q", c.Welcome(), defaultBrand)
	}
	if c.MediaNotice() == "" {
		t.Fatal("MediaNotice() is empty")
	}
}

func TestJoinVietnamese(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":           nil,
		"a":          {"a"},
		"a và b":     {"a", "b"},
		"a, b và c":  {"a", "b", "c"},
	}
	for want, in := range tests {
		if got := joinVietnamese(in); got != want {
			t.Fatalf("joinVietnamese(%v) = %q, want %q", in, got, want)
		}
	}
}
