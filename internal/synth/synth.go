// Package synth drives synthetic order generation: it walks each order
// through the provider lifecycle (open, items, discount, price, pay,
// settle) and records the outcome in the ledger.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/alloc"
	"github.com/mealforge/posgen/internal/commerce"
	"github.com/mealforge/posgen/internal/dist"
	"github.com/mealforge/posgen/internal/ledger"
	"github.com/mealforge/posgen/internal/menu"
	"github.com/mealforge/posgen/internal/metrics"
	"github.com/mealforge/posgen/internal/model"
)

const (
	customerAttachProb       = 0.60
	itemNoteProb             = 0.15
	discountProbWithCustomer = 0.20
	discountProbWalkIn       = 0.10
	happyHourDiscountBias    = 0.50
	takeoutZeroTipProb       = 0.30
	largePartyTipFloor       = 18 // percent, parties of 6+
	largePartyForTipFloor    = 6
)

// itemNotes is the phrase pool for occasional line-item notes.
var itemNotes = []string{
	"no onions",
	"extra sauce on the side",
	"allergy: peanuts",
	"dressing on the side",
	"well done",
	"split between two plates",
	"light ice",
	"gluten free if possible",
}

// RefData is the merchant reference data every order draws from. Loaded
// once per run, not per order.
type RefData struct {
	Employees []commerce.Employee
	Customers []commerce.Customer
	Tenders   []model.Tender
	Discounts []commerce.Discount
	Catalog   []menu.Item
	TaxRate   decimal.Decimal // percentage, e.g. 8.25
}

// PreconditionError reports merchant reference data too sparse to generate
// orders against. The run aborts rather than producing degenerate output.
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("synth: merchant has no %s", e.Missing)
}

// LoadRefData fetches the merchant's reference data and validates that the
// resources every order requires are present. Customers and discounts are
// optional; catalog, employees, and tenders are not.
func LoadRefData(ctx context.Context, api commerce.API) (*RefData, error) {
	ref := &RefData{}
	var err error

	if ref.Employees, err = api.ListEmployees(ctx); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	if ref.Customers, err = api.ListCustomers(ctx); err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	if ref.Tenders, err = api.ListTenders(ctx); err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	if ref.Discounts, err = api.ListDiscounts(ctx); err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	if ref.Catalog, err = api.ListCatalog(ctx); err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	if ref.TaxRate, err = api.GetTaxRate(ctx); err != nil {
		return nil, fmt.Errorf("get tax rate: %w", err)
	}

	switch {
	case len(ref.Catalog) == 0:
		return nil, &PreconditionError{Missing: "catalog items"}
	case len(ref.Employees) == 0:
		return nil, &PreconditionError{Missing: "employees"}
	case len(ref.Tenders) == 0:
		return nil, &PreconditionError{Missing: "tenders"}
	}
	return ref, nil
}

// Outcome classifies a single synthesis attempt.
type Outcome string

const (
	OutcomeSettled Outcome = "settled"
	OutcomeSkipped Outcome = "skipped"
)

// Result is the product of one synthesis attempt. Order and Payments are
// set only when the outcome is settled.
type Result struct {
	Outcome  Outcome
	Order    *model.SimulatedOrder
	Payments []model.SimulatedPayment
}

// Synthesizer generates one order at a time against a merchant sandbox.
// Not safe for concurrent use: it owns its rng.
type Synthesizer struct {
	api        commerce.API
	store      ledger.Store
	rng        *rand.Rand
	merchantID string
	ref        *RefData
}

// NewSynthesizer creates a synthesizer bound to one merchant's reference
// data.
func NewSynthesizer(api commerce.API, store ledger.Store, rng *rand.Rand, merchantID string, ref *RefData) *Synthesizer {
	return &Synthesizer{api: api, store: store, rng: rng, merchantID: merchantID, ref: ref}
}

// SynthesizeOrder runs one order through the full provider lifecycle and
// records it in the ledger. A missing-precondition condition yields a
// skipped result with no error; provider failures return an error with the
// failing stage wrapped in, and nothing is written to the ledger.
func (s *Synthesizer) SynthesizeOrder(ctx context.Context, date string, period model.MealPeriod) (*Result, error) {
	if len(s.ref.Catalog) == 0 || len(s.ref.Employees) == 0 || len(s.ref.Tenders) == 0 {
		metrics.OrdersTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return &Result{Outcome: OutcomeSkipped}, nil
	}

	spec := dist.SpecFor(period)
	option := dist.PickDiningOption(s.rng, period)
	party := dist.PartySize(s.rng, period)
	employee := s.ref.Employees[s.rng.Intn(len(s.ref.Employees))]

	openReq := commerce.OpenOrderRequest{
		EmployeeID:   employee.ID,
		DiningOption: string(option),
	}
	var customerID string
	if len(s.ref.Customers) > 0 && s.rng.Float64() < customerAttachProb {
		customerID = s.ref.Customers[s.rng.Intn(len(s.ref.Customers))].ID
		openReq.CustomerID = customerID
	}

	ref, err := s.api.OpenOrder(ctx, openReq)
	if err != nil {
		return nil, fmt.Errorf("open order: %w", err)
	}

	// Larger parties order more: half an extra item per seat.
	itemCount := dist.BaseItemCount(s.rng, period) + party/2
	if itemCount < 1 {
		itemCount = 1
	}
	items := menu.Select(s.rng, spec.PreferredCategories, s.ref.Catalog, itemCount, party)
	lines := make([]commerce.LineItem, len(items))
	for i, it := range items {
		lines[i] = commerce.LineItem{
			ItemID:   it.ID,
			Name:     it.Name,
			Quantity: 1,
			Price:    it.Price,
		}
		if s.rng.Float64() < itemNoteProb {
			lines[i].Note = itemNotes[s.rng.Intn(len(itemNotes))]
		}
	}
	if err := s.api.AddLineItems(ctx, ref.ID, lines); err != nil {
		return nil, fmt.Errorf("add line items: %w", err)
	}

	discount, applied := s.maybeDiscount(period, customerID != "")
	if applied {
		if err := s.api.ApplyDiscount(ctx, ref.ID, discount.ID); err != nil {
			return nil, fmt.Errorf("apply discount: %w", err)
		}
		metrics.DiscountsTotal.Inc()
	}

	subtotal, err := s.api.GetOrderTotal(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("get order total: %w", err)
	}

	var discountAmt int64
	if applied {
		discountAmt = discountAmount(discount, subtotal)
	}
	taxable := subtotal - discountAmt
	tax := roundRate(taxable, s.ref.TaxRate)
	tipPct := s.tipPercent(option, party)
	tip := (subtotal*int64(tipPct) + 50) / 100
	total := subtotal + tax + tip - discountAmt
	charge := total - tip // amount split across tenders, tip rides separately

	shares, err := alloc.Plan(s.rng, alloc.Input{
		Total:     charge,
		Tip:       tip,
		Tax:       tax,
		Option:    option,
		PartySize: party,
		Tenders:   s.ref.Tenders,
	})
	switch {
	case errors.Is(err, alloc.ErrNoSplit):
		t := s.ref.Tenders[s.rng.Intn(len(s.ref.Tenders))]
		shares = []alloc.Share{{Tender: t, Pct: 100, Amount: charge, Tip: tip, Tax: tax}}
	case err != nil:
		return nil, fmt.Errorf("plan payment: %w", err)
	default:
		metrics.SplitPaymentsTotal.Inc()
	}

	now := time.Now().UTC()
	payments := make([]model.SimulatedPayment, len(shares))
	for i, sh := range shares {
		payID, err := s.api.SubmitPayment(ctx, commerce.PaymentRequest{
			OrderID:  ref.ID,
			TenderID: sh.Tender.ID,
			Amount:   sh.Amount,
			Tip:      sh.Tip,
			Tax:      sh.Tax,
		})
		if err != nil {
			return nil, fmt.Errorf("submit payment %d/%d: %w", i+1, len(shares), err)
		}
		ptype := model.ClassifyTender(sh.Tender.Name)
		metrics.PaymentsTotal.WithLabelValues(string(ptype)).Inc()
		payments[i] = model.SimulatedPayment{
			ID:                uuid.New().String(),
			MerchantID:        s.merchantID,
			ProviderOrderID:   ref.ID,
			ProviderPaymentID: payID,
			BusinessDate:      date,
			TenderName:        sh.Tender.Name,
			PaymentType:       ptype,
			Amount:            sh.Amount,
			TipAmount:         sh.Tip,
			TaxAmount:         sh.Tax,
			Status:            model.PaymentPaid,
			CreatedAt:         now,
		}
	}

	if err := s.api.SetOrderState(ctx, ref.ID, commerce.StatePaid); err != nil {
		return nil, fmt.Errorf("set order state: %w", err)
	}

	order := &model.SimulatedOrder{
		ID:              uuid.New().String(),
		MerchantID:      s.merchantID,
		ProviderOrderID: ref.ID,
		BusinessDate:    date,
		Status:          model.OrderPaid,
		Subtotal:        subtotal,
		TaxAmount:       tax,
		TipAmount:       tip,
		DiscountAmount:  discountAmt,
		Total:           total,
		MealPeriod:      period,
		DiningOption:    option,
		Metadata: map[string]string{
			"employee_id": employee.ID,
			"party_size":  strconv.Itoa(party),
			"item_count":  strconv.Itoa(len(items)),
		},
		CreatedAt: now,
	}
	for i := range payments {
		payments[i].OrderID = order.ID
	}
	if customerID != "" {
		order.Metadata["customer_id"] = customerID
	}
	if applied {
		order.Metadata["discount"] = discount.Name
	}
	if err := order.CheckTotals(); err != nil {
		return nil, err
	}

	if err := s.store.RecordOrder(ctx, order, payments); err != nil {
		return nil, fmt.Errorf("record order: %w", err)
	}

	metrics.OrdersTotal.WithLabelValues(string(OutcomeSettled)).Inc()
	return &Result{Outcome: OutcomeSettled, Order: order, Payments: payments}, nil
}

// maybeDiscount draws the discount decision. Orders with an attached
// customer discount at 0.20, walk-ins at 0.10. During happy hour, half the
// draws prefer a discount named for it when the merchant has one.
func (s *Synthesizer) maybeDiscount(period model.MealPeriod, hasCustomer bool) (commerce.Discount, bool) {
	if len(s.ref.Discounts) == 0 {
		return commerce.Discount{}, false
	}
	p := discountProbWalkIn
	if hasCustomer {
		p = discountProbWithCustomer
	}
	if s.rng.Float64() >= p {
		return commerce.Discount{}, false
	}

	if period == model.HappyHour && s.rng.Float64() < happyHourDiscountBias {
		for _, d := range s.ref.Discounts {
			if strings.Contains(strings.ToLower(d.Name), "happy hour") {
				return d, true
			}
		}
	}
	return s.ref.Discounts[s.rng.Intn(len(s.ref.Discounts))], true
}

// tipPercent draws a tip rate: the dining option's band, raised to a floor
// for large parties, then sometimes zeroed for takeout (counter pickups
// frequently skip the tip screen).
func (s *Synthesizer) tipPercent(option model.DiningOption, party int) int {
	band := dist.TipBandFor(option)
	pct := band.Min + s.rng.Intn(band.Max-band.Min+1)
	if party >= largePartyForTipFloor && pct < largePartyTipFloor {
		pct = largePartyTipFloor
	}
	if option == model.Takeout && s.rng.Float64() < takeoutZeroTipProb {
		pct = 0
	}
	return pct
}

// discountAmount converts a provider discount into minor units against a
// subtotal. Percentage discounts round half-up; fixed discounts cap at the
// subtotal so the taxable base never goes negative.
func discountAmount(d commerce.Discount, subtotal int64) int64 {
	if d.AmountOff > 0 {
		if d.AmountOff > subtotal {
			return subtotal
		}
		return d.AmountOff
	}
	return decimal.NewFromInt(subtotal).
		Mul(d.Percentage).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// roundRate applies a percentage rate to an amount, rounding half-up.
func roundRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).
		Mul(rate).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
