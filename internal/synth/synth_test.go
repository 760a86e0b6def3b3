package synth

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/commerce"
	"github.com/mealforge/posgen/internal/ledger"
	"github.com/mealforge/posgen/internal/menu"
	"github.com/mealforge/posgen/internal/model"
)

func newTestSynth(t *testing.T, seed int64) (*Synthesizer, *ledger.MemoryStore) {
	t.Helper()
	api := commerce.NewStub()
	ref, err := LoadRefData(context.Background(), api)
	if err != nil {
		t.Fatalf("load ref data: %v", err)
	}
	ms := ledger.NewMemoryStore()
	rng := rand.New(rand.NewSource(seed))
	return NewSynthesizer(api, ms, rng, "m1", ref), ms
}

func TestSynthesizeOrder_MoneyInvariant(t *testing.T) {
	s, _ := newTestSynth(t, 42)
	ctx := context.Background()

	periods := []model.MealPeriod{
		model.Breakfast, model.Lunch, model.HappyHour, model.Dinner, model.LateNight,
	}
	for i := 0; i < 200; i++ {
		period := periods[i%len(periods)]
		res, err := s.SynthesizeOrder(ctx, "2025-06-14", period)
		if err != nil {
			t.Fatalf("order %d: %v", i, err)
		}
		if res.Outcome != OutcomeSettled {
			t.Fatalf("order %d: outcome = %s", i, res.Outcome)
		}

		o := res.Order
		if err := o.CheckTotals(); err != nil {
			t.Errorf("order %d: %v", i, err)
		}

		var amt, tip, tax int64
		for _, p := range res.Payments {
			amt += p.Amount
			tip += p.TipAmount
			tax += p.TaxAmount
		}
		if amt+tip != o.Total {
			t.Errorf("order %d: payments sum to %d, order total %d", i, amt+tip, o.Total)
		}
		if tip != o.TipAmount {
			t.Errorf("order %d: payment tips sum to %d, order tip %d", i, tip, o.TipAmount)
		}
		if tax != o.TaxAmount {
			t.Errorf("order %d: payment tax sums to %d, order tax %d", i, tax, o.TaxAmount)
		}
		if len(res.Payments) > 1 {
			for _, p := range res.Payments[1:] {
				if p.TaxAmount != 0 {
					t.Errorf("order %d: tax attributed outside the first payment", i)
				}
			}
		}
	}
}

func TestSynthesizeOrder_RecordsLedger(t *testing.T) {
	s, ms := newTestSynth(t, 7)
	ctx := context.Background()

	res, err := s.SynthesizeOrder(ctx, "2025-06-14", model.Lunch)
	if err != nil {
		t.Fatal(err)
	}

	orders, err := ms.QueryOrders(ctx, "m1", "2025-06-14", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 ledger order, got %d", len(orders))
	}
	if orders[0].Status != model.OrderPaid {
		t.Errorf("status = %s, want paid", orders[0].Status)
	}
	if orders[0].ProviderOrderID != res.Order.ProviderOrderID {
		t.Errorf("provider order ID mismatch")
	}

	payments, err := ms.QueryPayments(ctx, "m1", "2025-06-14")
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != len(res.Payments) {
		t.Fatalf("expected %d payments, got %d", len(res.Payments), len(payments))
	}
	for _, p := range payments {
		if p.MerchantID != "m1" || p.BusinessDate != "2025-06-14" {
			t.Errorf("payment missing denormalized fields: %+v", p)
		}
		if p.PaymentType == "" {
			t.Errorf("payment type not classified: %+v", p)
		}
	}
}

func TestSynthesizeOrder_SkipsOnEmptyCatalog(t *testing.T) {
	s, ms := newTestSynth(t, 1)
	s.ref.Catalog = nil

	res, err := s.SynthesizeOrder(context.Background(), "2025-06-14", model.Lunch)
	if err != nil {
		t.Fatalf("missing preconditions should skip, not fail: %v", err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", res.Outcome)
	}
	orders, _ := ms.QueryOrders(context.Background(), "m1", "2025-06-14", "")
	if len(orders) != 0 {
		t.Errorf("skipped order must not reach the ledger")
	}
}

// emptyCatalogAPI simulates a merchant sandbox with no items configured.
type emptyCatalogAPI struct {
	commerce.API
}

func (emptyCatalogAPI) ListCatalog(context.Context) ([]menu.Item, error) { return nil, nil }

func TestLoadRefData_Precondition(t *testing.T) {
	_, err := LoadRefData(context.Background(), emptyCatalogAPI{commerce.NewStub()})
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if pe.Missing != "catalog items" {
		t.Errorf("missing = %q, want catalog items", pe.Missing)
	}
}

func TestTipPercent(t *testing.T) {
	s, _ := newTestSynth(t, 99)

	sawZero := false
	for i := 0; i < 500; i++ {
		pct := s.tipPercent(model.Takeout, 2)
		if pct < 0 || pct > 15 {
			t.Fatalf("takeout tip %d%% outside band [0,15]", pct)
		}
		if pct == 0 {
			sawZero = true
		}
	}
	if !sawZero {
		t.Error("takeout should sometimes tip zero")
	}

	for i := 0; i < 500; i++ {
		if pct := s.tipPercent(model.DineIn, 6); pct < 18 {
			t.Fatalf("party of 6 dine-in tip %d%% below the 18%% floor", pct)
		}
	}

	for i := 0; i < 500; i++ {
		if pct := s.tipPercent(model.Delivery, 2); pct < 10 || pct > 20 {
			t.Fatalf("delivery tip %d%% outside band [10,20]", pct)
		}
	}
}

func TestRoundRate(t *testing.T) {
	rate := decimal.RequireFromString("8.25")
	tests := []struct {
		amount int64
		want   int64
	}{
		{1000, 83},  // 82.5 rounds half-up
		{2000, 165}, // exact
		{0, 0},
		{1, 0}, // 0.0825 rounds down
	}
	for _, tt := range tests {
		if got := roundRate(tt.amount, rate); got != tt.want {
			t.Errorf("roundRate(%d, 8.25) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		name     string
		d        commerce.Discount
		subtotal int64
		want     int64
	}{
		{"ten percent", commerce.Discount{Percentage: decimal.NewFromInt(10)}, 1183, 118},
		{"twenty percent", commerce.Discount{Percentage: decimal.NewFromInt(20)}, 1000, 200},
		{"fixed", commerce.Discount{AmountOff: 500}, 2000, 500},
		{"fixed capped at subtotal", commerce.Discount{AmountOff: 500}, 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := discountAmount(tt.d, tt.subtotal); got != tt.want {
				t.Errorf("discountAmount = %d, want %d", got, tt.want)
			}
		})
	}
}
