package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/mealforge/posgen/internal/metrics"
	"github.com/mealforge/posgen/internal/model"
)

// Aggregate recomputes the (merchant, date) daily summary from scratch
// from current order and payment rows, then upserts it. Recomputing
// rather than incrementing makes the operation idempotent and safe to
// re-run. A lost insert race (ErrSummaryConflict) is retried exactly once:
// the expected cause is a concurrent aggregation for the same key, which
// on retry finds the row created by the winner and updates it.
func Aggregate(ctx context.Context, st Store, merchantID, date string) (*model.DailySummary, error) {
	sum, err := computeSummary(ctx, st, merchantID, date)
	if err != nil {
		return nil, err
	}

	err = st.UpsertDailySummary(ctx, sum)
	if errors.Is(err, ErrSummaryConflict) {
		sum, err = computeSummary(ctx, st, merchantID, date)
		if err != nil {
			return nil, err
		}
		err = st.UpsertDailySummary(ctx, sum)
	}
	if err != nil {
		return nil, err
	}

	metrics.AggregationsTotal.Inc()
	return sum, nil
}

// computeSummary derives every summary field from the rows for the key.
// Failed orders are excluded from counts and revenue; refunded orders stay
// in revenue (the refund is tracked by refund_count, not netted out).
func computeSummary(ctx context.Context, st Store, merchantID, date string) (*model.DailySummary, error) {
	orders, err := st.QueryOrders(ctx, merchantID, date, "")
	if err != nil {
		return nil, err
	}
	payments, err := st.QueryPayments(ctx, merchantID, date)
	if err != nil {
		return nil, err
	}

	sum := &model.DailySummary{
		MerchantID:     merchantID,
		BusinessDate:   date,
		ByPeriod:       make(map[model.MealPeriod]model.Bucket),
		ByDiningOption: make(map[model.DiningOption]model.Bucket),
		ByTender:       make(map[string]model.Bucket),
		ComputedAt:     time.Now().UTC(),
	}

	for _, o := range orders {
		if o.Status == model.OrderFailed || o.Status == model.OrderOpen {
			continue
		}
		sum.OrderCount++
		if o.Status == model.OrderRefunded {
			sum.RefundCount++
		}
		sum.TotalRevenue += o.Total
		sum.TotalTax += o.TaxAmount
		sum.TotalTips += o.TipAmount
		sum.TotalDiscounts += o.DiscountAmount

		p := sum.ByPeriod[o.MealPeriod]
		p.Count++
		p.Revenue += o.Total
		sum.ByPeriod[o.MealPeriod] = p

		d := sum.ByDiningOption[o.DiningOption]
		d.Count++
		d.Revenue += o.Total
		sum.ByDiningOption[o.DiningOption] = d
	}

	for _, pay := range payments {
		if pay.Status == model.PaymentFailed || pay.Status == model.PaymentPending {
			continue
		}
		sum.PaymentCount++

		t := sum.ByTender[pay.TenderName]
		t.Count++
		t.Revenue += pay.Amount + pay.TipAmount
		sum.ByTender[pay.TenderName] = t
	}

	return sum, nil
}
