package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

type MockGranter struct {
	mock.Mock
}

func (m *MockGranter) GrantEntitlement(ctx context.Context, userID int64, plan models.Plan) error {
	args := m.Called(ctx, userID, plan)
	return args.Error(0)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) SaveOrder(ctx context.Context, order models.PendingPaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrders) FindOrder(ctx context.Context, orderID string) (models.PendingPaymentOrder, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(models.PendingPaymentOrder), args.Error(1)
}

func (m *MockOrders) MarkOrderPaid(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreatePaymentLink(ctx context.Context, req paymentprovider.CreatePaymentLinkRequest) (*paymentprovider.PaymentLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.PaymentLink), args.Error(1)
}

type MockDeduper struct {
	mock.Mock
}

func (m *MockDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) Forget(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type sentNote struct {
	userID int64
	text   string
}

type chanNotifier struct {
	ch  chan sentNote
	err error
}

func (n *chanNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.ch <- sentNote{userID: userID, text: text}
	return n.err
}

type stubTokens struct{}

func (stubTokens) GenerateToken(userID int64, plan string) (string, error) {
	return "tok-" + plan, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var testPlans = []models.Plan{
	{Key: "plan_49", Title: "20 minutes", Amount: 4900, Currency: "INR", Duration: 20 * time.Minute},
	{Key: "plan_199", Title: "2 hours", Amount: 19900, Currency: "INR", Duration: 2 * time.Hour},
}

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(testPlans, "plan_49")
	require.NoError(t, err)
	return c
}

func capturedEvent(t *testing.T, notes string, amount int64) *Event {
	t.Helper()
	body := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","amount":` +
		jsonInt(amount) + `,"currency":"INR","status":"captured","notes":` + notes + `}}}}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(body), &ev))
	return &ev
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestService_HandleEvent(t *testing.T) {
	dbErr := errors.New("db down")

	tests := []struct {
		name         string
		eventID      string
		event        func(t *testing.T) *Event
		setupMocks   func(*MockGranter, *MockOrders, *MockDeduper)
		want         Outcome
		wantErr      bool
		wantNotified bool
	}{
		{
			name:    "captured with default plan",
			eventID: "evt_1",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_12345"}`, 4900)
			},
			setupMocks: func(g *MockGranter, _ *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_1", DedupeTTL).Return(true, nil).Once()
				g.On("GrantEntitlement", mock.Anything, int64(12345), testPlans[0]).Return(nil).Once()
			},
			want:         OutcomeUnlocked,
			wantNotified: true,
		},
		{
			name:    "captured with explicit plan and order",
			eventID: "evt_2",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_7_plan_199","order_id":"ord-1"}`, 19900)
			},
			setupMocks: func(g *MockGranter, o *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_2", DedupeTTL).Return(true, nil).Once()
				g.On("GrantEntitlement", mock.Anything, int64(7), testPlans[1]).Return(nil).Once()
				o.On("FindOrder", mock.Anything, "ord-1").
					Return(models.PendingPaymentOrder{OrderID: "ord-1", Amount: 19900, Plan: "plan_199"}, nil).Once()
				o.On("MarkOrderPaid", mock.Anything, "ord-1").Return(nil).Once()
			},
			want:         OutcomeUnlocked,
			wantNotified: true,
		},
		{
			name:    "order amount mismatch still unlocks",
			eventID: "evt_3",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_7_plan_49","order_id":"ord-2"}`, 100)
			},
			setupMocks: func(g *MockGranter, o *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_3", DedupeTTL).Return(true, nil).Once()
				g.On("GrantEntitlement", mock.Anything, int64(7), testPlans[0]).Return(nil).Once()
				o.On("FindOrder", mock.Anything, "ord-2").
					Return(models.PendingPaymentOrder{OrderID: "ord-2", Amount: 4900, Plan: "plan_49"}, nil).Once()
				o.On("MarkOrderPaid", mock.Anything, "ord-2").Return(nil).Once()
			},
			want:         OutcomeUnlocked,
			wantNotified: true,
		},
		{
			name:    "unknown order is fine",
			eventID: "evt_4",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_7","order_id":"gone"}`, 4900)
			},
			setupMocks: func(g *MockGranter, o *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_4", DedupeTTL).Return(true, nil).Once()
				g.On("GrantEntitlement", mock.Anything, int64(7), testPlans[0]).Return(nil).Once()
				o.On("FindOrder", mock.Anything, "gone").Return(models.PendingPaymentOrder{}, storage.ErrOrderNotFound).Once()
			},
			want:         OutcomeUnlocked,
			wantNotified: true,
		},
		{
			name:    "duplicate delivery",
			eventID: "evt_1",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_12345"}`, 4900)
			},
			setupMocks: func(_ *MockGranter, _ *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_1", DedupeTTL).Return(false, nil).Once()
			},
			want: OutcomeDuplicate,
		},
		{
			name: "duplicate without event id falls back to payment id",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_12345"}`, 4900)
			},
			setupMocks: func(_ *MockGranter, _ *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "payment:pay_1", DedupeTTL).Return(false, nil).Once()
			},
			want: OutcomeDuplicate,
		},
		{
			name:    "dedupe failure does not block grant",
			eventID: "evt_5",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_5"}`, 4900)
			},
			setupMocks: func(g *MockGranter, _ *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_5", DedupeTTL).Return(false, errors.New("redis down")).Once()
				g.On("GrantEntitlement", mock.Anything, int64(5), testPlans[0]).Return(nil).Once()
			},
			want:         OutcomeUnlocked,
			wantNotified: true,
		},
		{
			name: "other event type",
			event: func(t *testing.T) *Event {
				ev := capturedEvent(t, `{"receipt":"tg_5"}`, 4900)
				ev.Event = "payment.failed"
				return ev
			},
			setupMocks: func(*MockGranter, *MockOrders, *MockDeduper) {},
			want:       OutcomeIgnored,
		},
		{
			name: "missing notes",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `[]`, 4900)
			},
			setupMocks: func(*MockGranter, *MockOrders, *MockDeduper) {},
			want:       OutcomeIgnored,
		},
		{
			name: "bad prefix",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"user_5"}`, 4900)
			},
			setupMocks: func(*MockGranter, *MockOrders, *MockDeduper) {},
			want:       OutcomeIgnored,
		},
		{
			name: "unknown plan",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_5_plan_999"}`, 4900)
			},
			setupMocks: func(*MockGranter, *MockOrders, *MockDeduper) {},
			want:       OutcomeIgnored,
		},
		{
			name:    "grant failure forgets event",
			eventID: "evt_6",
			event: func(t *testing.T) *Event {
				return capturedEvent(t, `{"receipt":"tg_5"}`, 4900)
			},
			setupMocks: func(g *MockGranter, _ *MockOrders, d *MockDeduper) {
				d.On("MarkOnce", mock.Anything, "webhook:evt_6", DedupeTTL).Return(true, nil).Once()
				g.On("GrantEntitlement", mock.Anything, int64(5), testPlans[0]).Return(dbErr).Once()
				d.On("Forget", mock.Anything, "webhook:evt_6").Return(nil).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, o, d := new(MockGranter), new(MockOrders), new(MockDeduper)
			n := &chanNotifier{ch: make(chan sentNote, 1)}
			tt.setupMocks(g, o, d)

			svc := New(newNoopLogger(), newCatalog(t), g, o, new(MockProvider), stubTokens{}, d, n, Options{UnlockText: "unlocked!"})
			out, err := svc.HandleEvent(context.Background(), tt.eventID, tt.event(t))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, dbErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out)
			}

			if tt.wantNotified {
				select {
				case got := <-n.ch:
					assert.Equal(t, "unlocked!", got.text)
				case <-time.After(time.Second):
					t.Fatal("user was not notified")
				}
			} else {
				select {
				case got := <-n.ch:
					t.Fatalf("unexpected notification to %d", got.userID)
				case <-time.After(20 * time.Millisecond):
				}
			}

			g.AssertExpectations(t)
			o.AssertExpectations(t)
			d.AssertExpectations(t)
		})
	}
}

func TestService_HandleEvent_NotifyFailureKeepsUnlock(t *testing.T) {
	g := new(MockGranter)
	g.On("GrantEntitlement", mock.Anything, int64(12345), testPlans[0]).Return(nil).Once()
	n := &chanNotifier{ch: make(chan sentNote, 1), err: errors.New("telegram down")}

	svc := New(newNoopLogger(), newCatalog(t), g, nil, nil, stubTokens{}, nil, n, Options{})
	out, err := svc.HandleEvent(context.Background(), "", capturedEvent(t, `{"receipt":"tg_12345"}`, 4900))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnlocked, out)

	select {
	case got := <-n.ch:
		assert.Equal(t, int64(12345), got.userID)
	case <-time.After(time.Second):
		t.Fatal("user was not notified")
	}
}

func TestService_AdminGrant(t *testing.T) {
	g := new(MockGranter)
	g.On("GrantEntitlement", mock.Anything, int64(99), testPlans[1]).Return(nil).Once()

	svc := New(newNoopLogger(), newCatalog(t), g, nil, nil, stubTokens{}, nil, nil, Options{})
	plan, err := svc.AdminGrant(context.Background(), 99, "plan_199")
	require.NoError(t, err)
	assert.Equal(t, "plan_199", plan.Key)

	_, err = svc.AdminGrant(context.Background(), 99, "nope")
	assert.ErrorIs(t, err, ErrUnknownPlan)
	g.AssertExpectations(t)
}

func TestService_PayURL(t *testing.T) {
	svc := New(newNoopLogger(), newCatalog(t), nil, nil, nil, stubTokens{}, nil, nil, Options{PublicURL: "https://riya.example.com/"})

	u, err := svc.PayURL(1, "")
	require.NoError(t, err)
	assert.Equal(t, "https://riya.example.com/api/v1/pay/tok-plan_49", u)

	_, err = svc.PayURL(1, "bogus")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestService_CreatePaymentLink(t *testing.T) {
	p, o := new(MockProvider), new(MockOrders)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	p.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(req paymentprovider.CreatePaymentLinkRequest) bool {
		return req.Amount == 19900 &&
			req.Currency == "INR" &&
			req.Notes[NoteReceipt] == "tg_42_plan_199" &&
			req.Notes[NoteOrderID] == req.ReferenceID &&
			req.ExpireBy == now.Add(24*time.Hour).Unix()
	})).Return(&paymentprovider.PaymentLink{ID: "plink_1", ShortURL: "https://rzp.io/i/x"}, nil).Once()
	o.On("SaveOrder", mock.Anything, mock.MatchedBy(func(order models.PendingPaymentOrder) bool {
		return order.LinkID == "plink_1" &&
			order.UserID == 42 &&
			order.Plan == "plan_199" &&
			order.Status == models.OrderStatusPending &&
			order.CreatedAt.Equal(now) &&
			len(order.OrderID) == 36
	})).Return(nil).Once()

	svc := New(newNoopLogger(), newCatalog(t), nil, o, p, stubTokens{}, nil, nil, Options{LinkTTL: 24 * time.Hour})
	svc.now = func() time.Time { return now }

	short, err := svc.CreatePaymentLink(context.Background(), 42, "plan_199")
	require.NoError(t, err)
	assert.Equal(t, "https://rzp.io/i/x", short)
	p.AssertExpectations(t)
	o.AssertExpectations(t)
}

func TestService_CreatePaymentLink_Errors(t *testing.T) {
	tests := []struct {
		name       string
		plan       string
		setupMocks func(*MockProvider, *MockOrders)
		wantErr    string
	}{
		{
			name:       "unknown plan",
			plan:       "gold",
			setupMocks: func(*MockProvider, *MockOrders) {},
			wantErr:    "unknown plan",
		},
		{
			name: "provider failure",
			plan: "plan_49",
			setupMocks: func(p *MockProvider, _ *MockOrders) {
				p.On("CreatePaymentLink", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()
			},
			wantErr: "503",
		},
		{
			name: "order save failure",
			plan: "plan_49",
			setupMocks: func(p *MockProvider, o *MockOrders) {
				p.On("CreatePaymentLink", mock.Anything, mock.Anything).
					Return(&paymentprovider.PaymentLink{ID: "plink_1", ShortURL: "https://rzp.io/i/x"}, nil).Once()
				o.On("SaveOrder", mock.Anything, mock.Anything).Return(storage.ErrOrderExists).Once()
			},
			wantErr: "order already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, o := new(MockProvider), new(MockOrders)
			tt.setupMocks(p, o)
			svc := New(newNoopLogger(), newCatalog(t), nil, o, p, stubTokens{}, nil, nil, Options{})

			_, err := svc.CreatePaymentLink(context.Background(), 1, tt.plan)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
			p.AssertExpectations(t)
			o.AssertExpectations(t)
		})
	}
}

func TestNotes_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Notes
	}{
		{name: "object", raw: `{"receipt":"tg_1","n":5}`, want: Notes{"receipt": "tg_1", "n": "5"}},
		{name: "empty array", raw: `[]`, want: Notes{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Notes
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &n))
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestNewCatalog_UnknownDefault(t *testing.T) {
	_, err := NewCatalog(testPlans, "missing")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}
