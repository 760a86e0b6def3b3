// Package ledger defines the durable audit-trail store for synthesized
// orders, payments, and daily summaries. Implementations include
// PostgreSQL (source of truth), Redis (read-through summary cache), and
// in-memory (for testing and dry runs).
package ledger

import (
	"context"
	"errors"

	"github.com/mealforge/posgen/internal/model"
)

var (
	// ErrNotFound is returned when a queried row does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrSummaryConflict signals a uniqueness race while inserting a daily
	// summary — another aggregation for the same (merchant, date) won the
	// insert. The aggregator retries the read-then-upsert cycle once.
	ErrSummaryConflict = errors.New("ledger: concurrent summary insert")
)

// Store is the persistence interface for the audit trail.
type Store interface {
	// RecordOrder durably records a synthesized order together with its
	// payment set. A duplicate (merchant_id, provider_order_id) write is
	// an idempotency signal and succeeds as a no-op.
	RecordOrder(ctx context.Context, order *model.SimulatedOrder, payments []model.SimulatedPayment) error

	// UpdateOrderStatus moves an order forward through its lifecycle.
	// Backward transitions are rejected with model.ErrBadTransition.
	// businessDate scopes the write and lets cached implementations
	// invalidate the affected day's summary.
	UpdateOrderStatus(ctx context.Context, merchantID, businessDate, providerOrderID string, status model.OrderStatus) error

	// UpdatePaymentStatus updates one payment's status (refund tracking).
	UpdatePaymentStatus(ctx context.Context, merchantID, businessDate, providerPaymentID string, status model.PaymentStatus) error

	// QueryOrders returns orders for a merchant and business date,
	// optionally filtered by status ("" matches all).
	QueryOrders(ctx context.Context, merchantID, date string, status model.OrderStatus) ([]model.SimulatedOrder, error)

	// QueryPayments returns all payments for a merchant and business date.
	QueryPayments(ctx context.Context, merchantID, date string) ([]model.SimulatedPayment, error)

	// UpsertDailySummary overwrites the (merchant, date) summary with
	// freshly computed fields, creating the row if absent. A lost insert
	// race surfaces as ErrSummaryConflict.
	UpsertDailySummary(ctx context.Context, sum *model.DailySummary) error

	// GetDailySummary returns the stored summary for (merchant, date).
	GetDailySummary(ctx context.Context, merchantID, date string) (*model.DailySummary, error)
}
