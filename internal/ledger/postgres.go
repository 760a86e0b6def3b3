package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealforge/posgen/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All amounts are stored as BIGINT minor currency units.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

func (s *PostgresStore) RecordOrder(ctx context.Context, o *model.SimulatedOrder, payments []model.SimulatedPayment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record order: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	meta, err := json.Marshal(o.Metadata)
	if err != nil {
		return fmt.Errorf("record order: marshal metadata: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO simulated_orders
		   (id, merchant_id, provider_order_id, business_date, status,
		    subtotal, tax_amount, tip_amount, discount_amount, total,
		    meal_period, dining_option, metadata, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (merchant_id, provider_order_id) DO NOTHING`,
		o.ID, o.MerchantID, o.ProviderOrderID, o.BusinessDate, o.Status,
		o.Subtotal, o.TaxAmount, o.TipAmount, o.DiscountAmount, o.Total,
		o.MealPeriod, o.DiningOption, meta, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Duplicate identity — idempotent no-op, payments already recorded.
		return nil
	}

	for _, p := range payments {
		_, err := tx.Exec(ctx,
			`INSERT INTO simulated_payments
			   (id, order_id, merchant_id, provider_order_id, provider_payment_id,
			    business_date, tender_name, payment_type,
			    amount, tip_amount, tax_amount, status, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			p.ID, p.OrderID, p.MerchantID, p.ProviderOrderID, p.ProviderPaymentID,
			p.BusinessDate, p.TenderName, p.PaymentType,
			p.Amount, p.TipAmount, p.TaxAmount, p.Status, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, merchantID, _, providerOrderID string, status model.OrderStatus) error {
	var current model.OrderStatus
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM simulated_orders
		 WHERE merchant_id = $1 AND provider_order_id = $2`,
		merchantID, providerOrderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: order %s/%s", ErrNotFound, merchantID, providerOrderID)
	}
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if !model.CanTransition(current, status) {
		return fmt.Errorf("%w: %s→%s", model.ErrBadTransition, current, status)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE simulated_orders SET status = $3
		 WHERE merchant_id = $1 AND provider_order_id = $2`,
		merchantID, providerOrderID, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, merchantID, _, providerPaymentID string, status model.PaymentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE simulated_payments SET status = $3
		 WHERE merchant_id = $1 AND provider_payment_id = $2`,
		merchantID, providerPaymentID, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s", ErrNotFound, providerPaymentID)
	}
	return nil
}

func (s *PostgresStore) QueryOrders(ctx context.Context, merchantID, date string, status model.OrderStatus) ([]model.SimulatedOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, merchant_id, provider_order_id, business_date, status,
		        subtotal, tax_amount, tip_amount, discount_amount, total,
		        meal_period, dining_option, metadata, created_at
		 FROM simulated_orders
		 WHERE merchant_id = $1 AND business_date = $2
		   AND ($3 = '' OR status = $3)
		 ORDER BY created_at`,
		merchantID, date, string(status))
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.SimulatedOrder
	for rows.Next() {
		var o model.SimulatedOrder
		var meta []byte
		if err := rows.Scan(&o.ID, &o.MerchantID, &o.ProviderOrderID, &o.BusinessDate, &o.Status,
			&o.Subtotal, &o.TaxAmount, &o.TipAmount, &o.DiscountAmount, &o.Total,
			&o.MealPeriod, &o.DiningOption, &meta, &o.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &o.Metadata); err != nil {
				return nil, fmt.Errorf("query orders: metadata: %w", err)
			}
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) QueryPayments(ctx context.Context, merchantID, date string) ([]model.SimulatedPayment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, merchant_id, provider_order_id, provider_payment_id,
		        business_date, tender_name, payment_type,
		        amount, tip_amount, tax_amount, status, created_at
		 FROM simulated_payments
		 WHERE merchant_id = $1 AND business_date = $2
		 ORDER BY created_at`,
		merchantID, date)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []model.SimulatedPayment
	for rows.Next() {
		var p model.SimulatedPayment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.MerchantID, &p.ProviderOrderID, &p.ProviderPaymentID,
			&p.BusinessDate, &p.TenderName, &p.PaymentType,
			&p.Amount, &p.TipAmount, &p.TaxAmount, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *PostgresStore) UpsertDailySummary(ctx context.Context, sum *model.DailySummary) error {
	byPeriod, err := json.Marshal(sum.ByPeriod)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	byOption, err := json.Marshal(sum.ByDiningOption)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	byTender, err := json.Marshal(sum.ByTender)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE daily_summaries SET
		   order_count = $3, payment_count = $4, refund_count = $5,
		   total_revenue = $6, total_tax = $7, total_tips = $8, total_discounts = $9,
		   by_period = $10, by_dining_option = $11, by_tender = $12, computed_at = $13
		 WHERE merchant_id = $1 AND business_date = $2`,
		sum.MerchantID, sum.BusinessDate,
		sum.OrderCount, sum.PaymentCount, sum.RefundCount,
		sum.TotalRevenue, sum.TotalTax, sum.TotalTips, sum.TotalDiscounts,
		byPeriod, byOption, byTender, sum.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO daily_summaries
		   (merchant_id, business_date, order_count, payment_count, refund_count,
		    total_revenue, total_tax, total_tips, total_discounts,
		    by_period, by_dining_option, by_tender, computed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sum.MerchantID, sum.BusinessDate,
		sum.OrderCount, sum.PaymentCount, sum.RefundCount,
		sum.TotalRevenue, sum.TotalTax, sum.TotalTips, sum.TotalDiscounts,
		byPeriod, byOption, byTender, sum.ComputedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost the insert race to a concurrent aggregation.
			return ErrSummaryConflict
		}
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDailySummary(ctx context.Context, merchantID, date string) (*model.DailySummary, error) {
	var sum model.DailySummary
	var byPeriod, byOption, byTender []byte

	err := s.pool.QueryRow(ctx,
		`SELECT merchant_id, business_date, order_count, payment_count, refund_count,
		        total_revenue, total_tax, total_tips, total_discounts,
		        by_period, by_dining_option, by_tender, computed_at
		 FROM daily_summaries
		 WHERE merchant_id = $1 AND business_date = $2`,
		merchantID, date).
		Scan(&sum.MerchantID, &sum.BusinessDate, &sum.OrderCount, &sum.PaymentCount, &sum.RefundCount,
			&sum.TotalRevenue, &sum.TotalTax, &sum.TotalTips, &sum.TotalDiscounts,
			&byPeriod, &byOption, &byTender, &sum.ComputedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: summary %s/%s", ErrNotFound, merchantID, date)
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	if err := json.Unmarshal(byPeriod, &sum.ByPeriod); err != nil {
		return nil, fmt.Errorf("get summary: by_period: %w", err)
	}
	if err := json.Unmarshal(byOption, &sum.ByDiningOption); err != nil {
		return nil, fmt.Errorf("get summary: by_dining_option: %w", err)
	}
	if err := json.Unmarshal(byTender, &sum.ByTender); err != nil {
		return nil, fmt.Errorf("get summary: by_tender: %w", err)
	}
	return &sum, nil
}
