// Package commerce is the typed client for the sandboxed merchant API.
// Every call is a synchronous request/response with a bounded timeout;
// failures carry a transient/rejected classification so callers can decide
// whether to skip and continue or treat the failure as a logic bug.
package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/menu"
	"github.com/mealforge/posgen/internal/model"
)

// API is the surface the generation engine consumes. The production
// implementation is Client; tests use scripted fakes or the Stub sandbox.
type API interface {
	// OpenOrder creates a new order shell and returns its provider ID.
	OpenOrder(ctx context.Context, req OpenOrderRequest) (*OrderRef, error)

	// AddLineItems appends line items to an open order.
	AddLineItems(ctx context.Context, orderID string, items []LineItem) error

	// ApplyDiscount attaches a discount to an open order.
	ApplyDiscount(ctx context.Context, orderID, discountID string) error

	// GetOrderTotal returns the order's pre-discount, pre-tax subtotal in
	// minor units: the sum of its line items. Discounts and tax are
	// applied by the caller when pricing the order.
	GetOrderTotal(ctx context.Context, orderID string) (int64, error)

	// SubmitPayment charges one tender against the order and returns the
	// provider payment ID. Never retried automatically — a timeout here
	// risks double-charging.
	SubmitPayment(ctx context.Context, req PaymentRequest) (string, error)

	// SetOrderState moves the provider-side order to a terminal state.
	SetOrderState(ctx context.Context, orderID, state string) error

	// CreateRefund refunds a payment, fully (amount 0) or partially.
	CreateRefund(ctx context.Context, req RefundRequest) (string, error)

	// --- Reference data reads ---

	ListEmployees(ctx context.Context) ([]Employee, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	ListTenders(ctx context.Context) ([]model.Tender, error)
	ListDiscounts(ctx context.Context) ([]Discount, error)
	ListCatalog(ctx context.Context) ([]menu.Item, error)
	GetTaxRate(ctx context.Context) (decimal.Decimal, error)
}

// Provider-side order states.
const (
	StateOpen = "OPEN"
	StatePaid = "PAID"
)

// ErrInvalidRequest is returned when a request fails client-side
// validation before any network call is made.
var ErrInvalidRequest = errors.New("commerce: invalid request")

// APIError is a typed provider error. Status 0 means the request never got
// a response (network failure or timeout).
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("commerce: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("commerce: %s: status %d: %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Transient reports whether the failure is infrastructure-level (network,
// timeout, 5xx) — the caller may skip the current order and continue.
func (e *APIError) Transient() bool { return e.Status == 0 || e.Status >= 500 }

// Rejected reports a provider validation failure (4xx) — the caller must
// not retry the same payload.
func (e *APIError) Rejected() bool { return e.Status >= 400 && e.Status < 500 }

// IsTransient reports whether err is a transient APIError.
func IsTransient(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Transient()
}

// IsRejected reports whether err is a rejected APIError.
func IsRejected(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Rejected()
}

// OpenOrderRequest opens an order shell for an employee, optionally
// attached to a customer.
type OpenOrderRequest struct {
	EmployeeID   string `json:"employee_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	DiningOption string `json:"dining_option"`
}

// Validate checks required fields before the request leaves the client.
func (r OpenOrderRequest) Validate() error {
	if r.EmployeeID == "" {
		return fmt.Errorf("%w: employee_id is required", ErrInvalidRequest)
	}
	return nil
}

// OrderRef identifies a provider-side order.
type OrderRef struct {
	ID string `json:"id"`
}

// LineItem is one catalog item added to an order.
type LineItem struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Note     string `json:"note,omitempty"`
}

// PaymentRequest submits one tender against an order.
type PaymentRequest struct {
	OrderID  string `json:"order_id"`
	TenderID string `json:"tender_id"`
	Amount   int64  `json:"amount"`
	Tip      int64  `json:"tip"`
	Tax      int64  `json:"tax"`
}

// Validate checks required fields before the request leaves the client.
func (r PaymentRequest) Validate() error {
	if r.OrderID == "" || r.TenderID == "" {
		return fmt.Errorf("%w: order_id and tender_id are required", ErrInvalidRequest)
	}
	if r.Amount < 0 || r.Tip < 0 || r.Tax < 0 {
		return fmt.Errorf("%w: negative payment amount", ErrInvalidRequest)
	}
	return nil
}

// RefundRequest refunds a payment. Amount 0 means a full refund.
type RefundRequest struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount,omitempty"`
}

// Validate checks required fields before the request leaves the client.
func (r RefundRequest) Validate() error {
	if r.PaymentID == "" {
		return fmt.Errorf("%w: payment_id is required", ErrInvalidRequest)
	}
	if r.Amount < 0 {
		return fmt.Errorf("%w: negative refund amount", ErrInvalidRequest)
	}
	return nil
}

// Employee is a sandbox staff member orders are opened under.
type Employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Customer is an optional sandbox guest attached to an order.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Discount is a provider discount. Exactly one of Percentage or AmountOff
// is meaningful; percentage discounts carry a decimal rate like "10".
type Discount struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	AmountOff  int64           `json:"amount_off"`
}
