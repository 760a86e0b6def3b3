package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/commerce"
	"github.com/mealforge/posgen/internal/dist"
	"github.com/mealforge/posgen/internal/feed"
	"github.com/mealforge/posgen/internal/ledger"
	"github.com/mealforge/posgen/internal/metrics"
	"github.com/mealforge/posgen/internal/model"
	"github.com/mealforge/posgen/internal/pace"
)

const (
	fullRefundProb   = 0.60
	partialFloorFrac = 0.25
	partialSpanFrac  = 0.50 // partial refunds take 25–75% of the charge
)

// DayConfig shapes one generated business day for a merchant.
type DayConfig struct {
	MerchantID string

	// Count is the explicit order target; 0 means sample from the
	// weekday's volume range.
	Count int

	// Multiplier scales the sampled volume. Ignored when Count is set;
	// 0 means 1.0.
	Multiplier float64

	// RefundPct is the percentage of settled orders to refund, 0–100.
	RefundPct float64

	// Period restricts generation to a single meal period when non-empty
	// (rush-style partial runs). The whole order target lands in it.
	Period model.MealPeriod
}

// Tally summarizes one day run.
type Tally struct {
	Attempted int `json:"attempted"`
	Settled   int `json:"settled"`
	Refunded  int `json:"refunded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Orchestrator runs a full business day of generation for one merchant:
// volume sampling, per-period apportionment, sequential synthesis with
// pacing, refund injection, and a closing aggregation pass.
type Orchestrator struct {
	api   commerce.API
	store ledger.Store
	rng   *rand.Rand
	pacer *pace.Pacer // nil disables pacing
	hub   *feed.Hub   // nil disables the live feed
	cfg   DayConfig
}

// NewOrchestrator wires a day orchestrator. pacer and hub may be nil.
func NewOrchestrator(api commerce.API, store ledger.Store, rng *rand.Rand, pacer *pace.Pacer, hub *feed.Hub, cfg DayConfig) *Orchestrator {
	return &Orchestrator{api: api, store: store, rng: rng, pacer: pacer, hub: hub, cfg: cfg}
}

// Run generates the day. Individual order failures are logged and counted
// but do not abort the run; reference-data failures and cancellation do.
// The tally reflects whatever completed before any early return.
func (o *Orchestrator) Run(ctx context.Context, date time.Time) (Tally, error) {
	var tally Tally
	dateStr := date.Format(model.DateFormat)
	log := slog.With("merchant_id", o.cfg.MerchantID, "business_date", dateStr)

	ref, err := LoadRefData(ctx, o.api)
	if err != nil {
		return tally, fmt.Errorf("load reference data: %w", err)
	}

	target := o.cfg.Count
	if target <= 0 {
		target = dist.SampleVolume(o.rng, date.Weekday())
		if o.cfg.Multiplier > 0 {
			target = int(math.Round(float64(target) * o.cfg.Multiplier))
		}
	}
	counts := dist.Apportion(target)
	if o.cfg.Period != "" {
		counts = map[model.MealPeriod]int{o.cfg.Period: target}
	}

	log.Info("day run starting", "target", target, "refund_pct", o.cfg.RefundPct)

	synth := NewSynthesizer(o.api, o.store, o.rng, o.cfg.MerchantID, ref)

	// Cancellation lands between orders only: an in-flight lifecycle runs
	// on a shielded context so a signal never strands a partially paid
	// provider-side order without its ledger record. Every provider call
	// stays bounded by the client's per-call timeout regardless.
	orderCtx := context.WithoutCancel(ctx)

	for _, spec := range dist.Periods {
		n := counts[spec.Period]
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return tally, ctx.Err()
			default:
			}
			if err := o.pacer.Wait(ctx); err != nil {
				return tally, err
			}

			tally.Attempted++
			res, err := synth.SynthesizeOrder(orderCtx, dateStr, spec.Period)
			if err != nil {
				tally.Failed++
				metrics.OrdersTotal.WithLabelValues("failed").Inc()
				switch {
				case commerce.IsRejected(err):
					// Provider rejected the payload: a generator bug, not
					// an infrastructure blip. Log loud, keep going.
					log.Error("order rejected by provider", "period", spec.Period, "err", err)
				case commerce.IsTransient(err):
					log.Warn("order failed on transient provider error", "period", spec.Period, "err", err)
				default:
					log.Warn("order failed", "period", spec.Period, "err", err)
				}
				continue
			}
			if res.Outcome == OutcomeSkipped {
				tally.Skipped++
				continue
			}
			tally.Settled++
			o.publish(feed.Event{
				Type:         feed.EventOrderSettled,
				MerchantID:   o.cfg.MerchantID,
				BusinessDate: dateStr,
				OrderID:      res.Order.ProviderOrderID,
				MealPeriod:   string(res.Order.MealPeriod),
				DiningOption: string(res.Order.DiningOption),
				Total:        res.Order.Total,
			})

			if o.rng.Float64() < o.cfg.RefundPct/100 {
				if err := o.refund(orderCtx, res, dateStr); err != nil {
					log.Warn("refund failed", "order_id", res.Order.ProviderOrderID, "err", err)
					continue
				}
				tally.Refunded++
			}
		}
	}

	if _, err := ledger.Aggregate(orderCtx, o.store, o.cfg.MerchantID, dateStr); err != nil {
		return tally, fmt.Errorf("aggregate day: %w", err)
	}
	o.publish(feed.Event{
		Type:         feed.EventDayCompleted,
		MerchantID:   o.cfg.MerchantID,
		BusinessDate: dateStr,
		OrderCount:   tally.Settled,
	})

	log.Info("day run complete",
		"attempted", tally.Attempted, "settled", tally.Settled,
		"refunded", tally.Refunded, "failed", tally.Failed, "skipped", tally.Skipped)
	return tally, nil
}

// refund issues a provider refund against one of the order's payments and
// moves the ledger order to refunded. Full refunds dominate 60/40; partial
// refunds take 25–75% of the payment's charge.
func (o *Orchestrator) refund(ctx context.Context, res *Result, dateStr string) error {
	pay := res.Payments[o.rng.Intn(len(res.Payments))]
	charged := pay.Amount + pay.TipAmount

	kind := "full"
	var amount int64 // 0 requests a full refund
	if o.rng.Float64() >= fullRefundProb {
		kind = "partial"
		frac := partialFloorFrac + o.rng.Float64()*partialSpanFrac
		amount = decimal.NewFromInt(charged).
			Mul(decimal.NewFromFloat(frac)).
			Round(0).
			IntPart()
		if amount < 1 {
			amount = 1
		}
	}

	if _, err := o.api.CreateRefund(ctx, commerce.RefundRequest{
		PaymentID: pay.ProviderPaymentID,
		Amount:    amount,
	}); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}

	if err := o.store.UpdateOrderStatus(ctx, o.cfg.MerchantID, dateStr, res.Order.ProviderOrderID, model.OrderRefunded); err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	if err := o.store.UpdatePaymentStatus(ctx, o.cfg.MerchantID, dateStr, pay.ProviderPaymentID, model.PaymentRefunded); err != nil {
		return fmt.Errorf("mark payment refunded: %w", err)
	}

	metrics.RefundsTotal.WithLabelValues(kind).Inc()
	o.publish(feed.Event{
		Type:         feed.EventOrderRefunded,
		MerchantID:   o.cfg.MerchantID,
		BusinessDate: dateStr,
		OrderID:      res.Order.ProviderOrderID,
		Total:        amount,
		RefundKind:   kind,
	})
	return nil
}

func (o *Orchestrator) publish(ev feed.Event) {
	if o.hub != nil {
		o.hub.Broadcast(ev)
	}
}
