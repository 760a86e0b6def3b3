// Package model defines the core domain types shared across the generator.
// All monetary amounts are int64 minor currency units (cents) — never
// float64 for money.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical business-date layout used throughout the
// ledger (keys, queries, summaries).
const DateFormat = "2006-01-02"

// MealPeriod is a named time-of-day bucket driving item and dining-option
// distributions.
type MealPeriod string

const (
	Breakfast MealPeriod = "breakfast"
	Lunch     MealPeriod = "lunch"
	HappyHour MealPeriod = "happy_hour"
	Dinner    MealPeriod = "dinner"
	LateNight MealPeriod = "late_night"
)

// DiningOption is how the guest receives the order.
type DiningOption string

const (
	DineIn   DiningOption = "dine_in"
	Takeout  DiningOption = "takeout"
	Delivery DiningOption = "delivery"
)

// OrderStatus is the ledger-side lifecycle state of a simulated order.
// Transitions are monotonic: open→paid→refunded, or open→failed.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderPaid     OrderStatus = "paid"
	OrderRefunded OrderStatus = "refunded"
	OrderFailed   OrderStatus = "failed"
)

// PaymentStatus is the lifecycle state of a simulated payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentType is the derived classification of a free-text tender name.
type PaymentType string

const (
	TypeCash     PaymentType = "cash"
	TypeCard     PaymentType = "card"
	TypeGiftCard PaymentType = "gift_card"
	TypeCheck    PaymentType = "check"
	TypeOther    PaymentType = "other"
)

var (
	// ErrBadTransition is returned when an order status update would move
	// backwards (e.g. paid→open) or out of a terminal state.
	ErrBadTransition = errors.New("model: invalid order status transition")

	// ErrTotalsMismatch is returned when an order's monetary fields do not
	// satisfy total == subtotal + tax + tip − discount.
	ErrTotalsMismatch = errors.New("model: order totals do not reconcile")
)

// CanTransition reports whether an order may move from one status to
// another. Only forward transitions are allowed.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderOpen:
		return to == OrderPaid || to == OrderFailed
	case OrderPaid:
		return to == OrderRefunded
	default:
		// refunded and failed are terminal.
		return false
	}
}

// ClassifyTender derives a payment type from a provider's free-text tender
// name ("Cash", "Credit Card", "Visa Gift Card", ...).
func ClassifyTender(name string) PaymentType {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "gift"):
		return TypeGiftCard
	case strings.Contains(n, "cash"):
		return TypeCash
	case strings.Contains(n, "card"),
		strings.Contains(n, "credit"),
		strings.Contains(n, "debit"),
		strings.Contains(n, "visa"),
		strings.Contains(n, "mastercard"),
		strings.Contains(n, "amex"):
		return TypeCard
	case strings.Contains(n, "check"), strings.Contains(n, "cheque"):
		return TypeCheck
	default:
		return TypeOther
	}
}

// Tender is a named payment method accepted by the provider.
type Tender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SimulatedOrder is the ledger record of one synthesized order.
// Identity is the (MerchantID, ProviderOrderID) pair. Created at
// order-completion time; mutated only by refund tracking.
type SimulatedOrder struct {
	ID              string            `json:"id" db:"id"`
	MerchantID      string            `json:"merchant_id" db:"merchant_id"`
	ProviderOrderID string            `json:"provider_order_id" db:"provider_order_id"`
	BusinessDate    string            `json:"business_date" db:"business_date"` // DateFormat
	Status          OrderStatus       `json:"status" db:"status"`
	Subtotal        int64             `json:"subtotal" db:"subtotal"`
	TaxAmount       int64             `json:"tax_amount" db:"tax_amount"`
	TipAmount       int64             `json:"tip_amount" db:"tip_amount"`
	DiscountAmount  int64             `json:"discount_amount" db:"discount_amount"`
	Total           int64             `json:"total" db:"total"`
	MealPeriod      MealPeriod        `json:"meal_period" db:"meal_period"`
	DiningOption    DiningOption      `json:"dining_option" db:"dining_option"`
	Metadata        map[string]string `json:"metadata" db:"metadata"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
}

// CheckTotals validates the order money invariant:
// total == subtotal + tax + tip − discount, all fields non-negative.
func (o *SimulatedOrder) CheckTotals() error {
	for _, v := range []int64{o.Subtotal, o.TaxAmount, o.TipAmount, o.DiscountAmount, o.Total} {
		if v < 0 {
			return fmt.Errorf("%w: negative amount", ErrTotalsMismatch)
		}
	}
	want := o.Subtotal + o.TaxAmount + o.TipAmount - o.DiscountAmount
	if o.Total != want {
		return fmt.Errorf("%w: total=%d want=%d", ErrTotalsMismatch, o.Total, want)
	}
	return nil
}

// SimulatedPayment is the ledger record of one tender submission against a
// simulated order. Immutable once created except for status on refund.
// MerchantID, ProviderOrderID, and BusinessDate are denormalized so
// payments can be queried without joining through orders.
type SimulatedPayment struct {
	ID                string        `json:"id" db:"id"`
	OrderID           string        `json:"order_id" db:"order_id"`
	MerchantID        string        `json:"merchant_id" db:"merchant_id"`
	ProviderOrderID   string        `json:"provider_order_id" db:"provider_order_id"`
	ProviderPaymentID string        `json:"provider_payment_id" db:"provider_payment_id"`
	BusinessDate      string        `json:"business_date" db:"business_date"`
	TenderName        string        `json:"tender_name" db:"tender_name"`
	PaymentType       PaymentType   `json:"payment_type" db:"payment_type"`
	Amount            int64         `json:"amount" db:"amount"`
	TipAmount         int64         `json:"tip_amount" db:"tip_amount"`
	TaxAmount         int64         `json:"tax_amount" db:"tax_amount"`
	Status            PaymentStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// Bucket is one breakdown cell in a daily summary.
type Bucket struct {
	Count   int   `json:"count"`
	Revenue int64 `json:"revenue"`
}

// DailySummary is the derived (merchant, date) aggregate. It is recomputed
// from scratch from order/payment rows on every aggregation — never
// incrementally updated — which makes aggregation idempotent.
type DailySummary struct {
	MerchantID     string                  `json:"merchant_id" db:"merchant_id"`
	BusinessDate   string                  `json:"business_date" db:"business_date"`
	OrderCount     int                     `json:"order_count" db:"order_count"`
	PaymentCount   int                     `json:"payment_count" db:"payment_count"`
	RefundCount    int                     `json:"refund_count" db:"refund_count"`
	TotalRevenue   int64                   `json:"total_revenue" db:"total_revenue"`
	TotalTax       int64                   `json:"total_tax" db:"total_tax"`
	TotalTips      int64                   `json:"total_tips" db:"total_tips"`
	TotalDiscounts int64                   `json:"total_discounts" db:"total_discounts"`
	ByPeriod       map[MealPeriod]Bucket   `json:"by_period"`
	ByDiningOption map[DiningOption]Bucket `json:"by_dining_option"`
	ByTender       map[string]Bucket       `json:"by_tender"`
	ComputedAt     time.Time               `json:"computed_at" db:"computed_at"`
}
