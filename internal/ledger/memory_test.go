package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealforge/posgen/internal/model"
)

func testOrder(providerID string, status model.OrderStatus) *model.SimulatedOrder {
	return &model.SimulatedOrder{
		ID:              "led-" + providerID,
		MerchantID:      "m1",
		ProviderOrderID: providerID,
		BusinessDate:    "2025-06-14",
		Status:          status,
		Subtotal:        1000,
		TaxAmount:       83,
		TipAmount:       200,
		Total:           1283,
		MealPeriod:      model.Lunch,
		DiningOption:    model.DineIn,
		CreatedAt:       time.Now().UTC(),
	}
}

func testPayment(providerOrderID, providerPaymentID string, amount int64) model.SimulatedPayment {
	return model.SimulatedPayment{
		ID:                "pl-" + providerPaymentID,
		OrderID:           "led-" + providerOrderID,
		MerchantID:        "m1",
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: providerPaymentID,
		BusinessDate:      "2025-06-14",
		TenderName:        "Credit Card",
		PaymentType:       model.TypeCard,
		Amount:            amount,
		Status:            model.PaymentPaid,
		CreatedAt:         time.Now().UTC(),
	}
}

func TestRecordOrder_DuplicateIsNoOp(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	o := testOrder("p1", model.OrderPaid)
	pays := []model.SimulatedPayment{testPayment("p1", "pay1", 1283)}

	if err := ms.RecordOrder(ctx, o, pays); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := ms.RecordOrder(ctx, o, pays); err != nil {
		t.Fatalf("duplicate record should be a no-op, got %v", err)
	}

	orders, _ := ms.QueryOrders(ctx, "m1", "2025-06-14", "")
	if len(orders) != 1 {
		t.Errorf("expected 1 order after duplicate write, got %d", len(orders))
	}
	payments, _ := ms.QueryPayments(ctx, "m1", "2025-06-14")
	if len(payments) != 1 {
		t.Errorf("expected 1 payment after duplicate write, got %d", len(payments))
	}
}

func TestUpdateOrderStatus_ForwardOnly(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if err := ms.RecordOrder(ctx, testOrder("p1", model.OrderPaid), nil); err != nil {
		t.Fatal(err)
	}

	if err := ms.UpdateOrderStatus(ctx, "m1", "2025-06-14", "p1", model.OrderRefunded); err != nil {
		t.Fatalf("paid→refunded should succeed: %v", err)
	}

	err := ms.UpdateOrderStatus(ctx, "m1", "2025-06-14", "p1", model.OrderPaid)
	if !errors.Is(err, model.ErrBadTransition) {
		t.Errorf("refunded→paid should be rejected, got %v", err)
	}

	err = ms.UpdateOrderStatus(ctx, "m1", "2025-06-14", "missing", model.OrderPaid)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing order, got %v", err)
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	pays := []model.SimulatedPayment{testPayment("p1", "pay1", 1283)}
	if err := ms.RecordOrder(ctx, testOrder("p1", model.OrderPaid), pays); err != nil {
		t.Fatal(err)
	}

	if err := ms.UpdatePaymentStatus(ctx, "m1", "2025-06-14", "pay1", model.PaymentRefunded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := ms.QueryPayments(ctx, "m1", "2025-06-14")
	if got[0].Status != model.PaymentRefunded {
		t.Errorf("payment status = %s, want refunded", got[0].Status)
	}
}

func TestQueryOrders_StatusFilter(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	ms.RecordOrder(ctx, testOrder("p1", model.OrderPaid), nil)
	ms.RecordOrder(ctx, testOrder("p2", model.OrderFailed), nil)

	all, _ := ms.QueryOrders(ctx, "m1", "2025-06-14", "")
	if len(all) != 2 {
		t.Errorf("expected 2 orders, got %d", len(all))
	}
	paid, _ := ms.QueryOrders(ctx, "m1", "2025-06-14", model.OrderPaid)
	if len(paid) != 1 {
		t.Errorf("expected 1 paid order, got %d", len(paid))
	}
}
