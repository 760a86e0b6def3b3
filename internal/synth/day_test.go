package synth

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/mealforge/posgen/internal/commerce"
	"github.com/mealforge/posgen/internal/ledger"
	"github.com/mealforge/posgen/internal/model"
)

var testDate = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC) // a Saturday

func newTestDay(api commerce.API, cfg DayConfig, seed int64) (*Orchestrator, *ledger.MemoryStore) {
	ms := ledger.NewMemoryStore()
	rng := rand.New(rand.NewSource(seed))
	if cfg.MerchantID == "" {
		cfg.MerchantID = "m1"
	}
	return NewOrchestrator(api, ms, rng, nil, nil, cfg), ms
}

func TestRun_TallyAndSummary(t *testing.T) {
	o, ms := newTestDay(commerce.NewStub(), DayConfig{Count: 20}, 1)

	tally, err := o.Run(context.Background(), testDate)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tally.Attempted != 20 || tally.Settled != 20 {
		t.Errorf("tally = %+v, want 20 attempted and settled", tally)
	}
	if tally.Failed != 0 || tally.Skipped != 0 {
		t.Errorf("tally = %+v, want no failures or skips", tally)
	}

	sum, err := ms.GetDailySummary(context.Background(), "m1", "2025-06-14")
	if err != nil {
		t.Fatalf("summary should exist after the run: %v", err)
	}
	if sum.OrderCount != 20 {
		t.Errorf("summary order_count = %d, want 20", sum.OrderCount)
	}
	var wantRevenue int64
	orders, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", "")
	for _, ord := range orders {
		wantRevenue += ord.Total
	}
	if sum.TotalRevenue != wantRevenue {
		t.Errorf("summary revenue = %d, ledger orders sum to %d", sum.TotalRevenue, wantRevenue)
	}
}

func TestRun_RefundsEveryOrder(t *testing.T) {
	o, ms := newTestDay(commerce.NewStub(), DayConfig{Count: 15, RefundPct: 100}, 2)

	tally, err := o.Run(context.Background(), testDate)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tally.Refunded != tally.Settled {
		t.Errorf("refunded %d of %d settled with refund_pct 100", tally.Refunded, tally.Settled)
	}

	refunded, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", model.OrderRefunded)
	if len(refunded) != tally.Refunded {
		t.Errorf("%d refunded orders in ledger, tally says %d", len(refunded), tally.Refunded)
	}
	sum, err := ms.GetDailySummary(context.Background(), "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if sum.RefundCount != tally.Refunded {
		t.Errorf("summary refund_count = %d, want %d", sum.RefundCount, tally.Refunded)
	}
}

func TestRun_PeriodFilter(t *testing.T) {
	o, ms := newTestDay(commerce.NewStub(), DayConfig{Count: 10, Period: model.HappyHour}, 3)

	if _, err := o.Run(context.Background(), testDate); err != nil {
		t.Fatal(err)
	}
	orders, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", "")
	if len(orders) != 10 {
		t.Fatalf("expected 10 orders, got %d", len(orders))
	}
	for _, ord := range orders {
		if ord.MealPeriod != model.HappyHour {
			t.Errorf("order generated in %s with happy_hour filter", ord.MealPeriod)
		}
	}
}

// flakyAPI fails every third order open with a transient provider error.
type flakyAPI struct {
	commerce.API
	calls int
}

func (f *flakyAPI) OpenOrder(ctx context.Context, req commerce.OpenOrderRequest) (*commerce.OrderRef, error) {
	f.calls++
	if f.calls%3 == 0 {
		return nil, &commerce.APIError{Op: "open_order", Status: 503, Message: "sandbox unavailable"}
	}
	return f.API.OpenOrder(ctx, req)
}

func TestRun_FailuresDoNotAbort(t *testing.T) {
	o, ms := newTestDay(&flakyAPI{API: commerce.NewStub()}, DayConfig{Count: 12}, 4)

	tally, err := o.Run(context.Background(), testDate)
	if err != nil {
		t.Fatalf("transient order failures must not abort the run: %v", err)
	}
	if tally.Attempted != 12 {
		t.Errorf("attempted = %d, want 12", tally.Attempted)
	}
	if tally.Failed != 4 {
		t.Errorf("failed = %d, want 4 (every third open)", tally.Failed)
	}
	if tally.Settled != 8 {
		t.Errorf("settled = %d, want 8", tally.Settled)
	}

	orders, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", "")
	if len(orders) != 8 {
		t.Errorf("failed orders must not reach the ledger, got %d rows", len(orders))
	}
}

// cancelMidOrderAPI fires cancel while an order is mid-lifecycle and
// honors context cancellation on the calls that follow, like the real
// HTTP client does.
type cancelMidOrderAPI struct {
	commerce.API
	cancel context.CancelFunc
}

func (a *cancelMidOrderAPI) AddLineItems(ctx context.Context, orderID string, items []commerce.LineItem) error {
	a.cancel()
	if err := ctx.Err(); err != nil {
		return &commerce.APIError{Op: "add_line_items", Err: err}
	}
	return a.API.AddLineItems(ctx, orderID, items)
}

func (a *cancelMidOrderAPI) SubmitPayment(ctx context.Context, req commerce.PaymentRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &commerce.APIError{Op: "submit_payment", Err: err}
	}
	return a.API.SubmitPayment(ctx, req)
}

func TestRun_CancellationFinishesInFlightOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &cancelMidOrderAPI{API: commerce.NewStub(), cancel: cancel}
	o, ms := newTestDay(api, DayConfig{Count: 5}, 6)

	tally, err := o.Run(ctx, testDate)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run should stop on cancellation, got %v", err)
	}
	if tally.Attempted != 1 || tally.Settled != 1 || tally.Failed != 0 {
		t.Errorf("tally = %+v; the in-flight order must settle, no more start", tally)
	}

	// The cancelled order still reached the ledger in full.
	orders, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", "")
	if len(orders) != 1 {
		t.Fatalf("expected 1 ledger order, got %d", len(orders))
	}
	if orders[0].Status != model.OrderPaid {
		t.Errorf("order status = %s, want paid", orders[0].Status)
	}
	payments, _ := ms.QueryPayments(context.Background(), "m1", "2025-06-14")
	if len(payments) == 0 {
		t.Error("settled order must have its payments recorded")
	}
}

func TestRun_Cancellation(t *testing.T) {
	o, _ := newTestDay(commerce.NewStub(), DayConfig{Count: 50}, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tally, err := o.Run(ctx, testDate)
	if err == nil {
		t.Fatal("cancelled run should return the context error")
	}
	if tally.Settled != 0 {
		t.Errorf("pre-cancelled context should settle nothing, got %d", tally.Settled)
	}
}
