package commerce

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/menu"
	"github.com/mealforge/posgen/internal/model"
)

// Stub is an in-process sandbox implementing API. Used by dry runs and
// tests: orders, discounts, and totals behave like the real sandbox but
// nothing leaves the process.
type Stub struct {
	mu       sync.Mutex
	orders   map[string]*stubOrder
	payments map[string]int64 // payment ID → charged amount

	employees []Employee
	customers []Customer
	tenders   []model.Tender
	discounts []Discount
	catalog   []menu.Item
	taxRate   decimal.Decimal
}

type stubOrder struct {
	items    []LineItem
	discount *Discount
	state    string
}

// NewStub creates a sandbox stub seeded with a plausible merchant setup.
func NewStub() *Stub {
	return &Stub{
		orders:   make(map[string]*stubOrder),
		payments: make(map[string]int64),
		employees: []Employee{
			{ID: "emp-1", Name: "Dana Whitfield"},
			{ID: "emp-2", Name: "Marcus Oyelaran"},
			{ID: "emp-3", Name: "Priya Natarajan"},
		},
		customers: []Customer{
			{ID: "cus-1", Name: "Jordan Blake"},
			{ID: "cus-2", Name: "Sam Reyes"},
			{ID: "cus-3", Name: "Alex Kim"},
			{ID: "cus-4", Name: "Taylor Morgan"},
		},
		tenders: []model.Tender{
			{ID: "tnd-cash", Name: "Cash"},
			{ID: "tnd-card", Name: "Credit Card"},
			{ID: "tnd-gift", Name: "Gift Card"},
		},
		discounts: []Discount{
			{ID: "dsc-10", Name: "10% Off", Percentage: decimal.NewFromInt(10)},
			{ID: "dsc-hh", Name: "Happy Hour Special", Percentage: decimal.NewFromInt(20)},
			{ID: "dsc-5", Name: "$5 Off", AmountOff: 500},
		},
		catalog: []menu.Item{
			{ID: "itm-1", Name: "Buttermilk Pancakes", Category: "Breakfast", Price: 1150},
			{ID: "itm-2", Name: "Garden Omelette", Category: "Breakfast", Price: 1250},
			{ID: "itm-3", Name: "Oat Milk Latte", Category: "Coffee & Tea", Price: 550},
			{ID: "itm-4", Name: "Almond Croissant", Category: "Pastries", Price: 425},
			{ID: "itm-5", Name: "Turkey Club", Category: "Sandwiches", Price: 1395},
			{ID: "itm-6", Name: "Kale Caesar", Category: "Salads", Price: 1195},
			{ID: "itm-7", Name: "Grilled Salmon", Category: "Entrees", Price: 2650},
			{ID: "itm-8", Name: "Braised Short Rib", Category: "Entrees", Price: 2895},
			{ID: "itm-9", Name: "Truffle Fries", Category: "Sides", Price: 695},
			{ID: "itm-10", Name: "Flourless Chocolate Cake", Category: "Desserts", Price: 895},
			{ID: "itm-11", Name: "Crispy Calamari", Category: "Appetizers", Price: 1295},
			{ID: "itm-12", Name: "House IPA", Category: "Beer & Wine", Price: 750},
			{ID: "itm-13", Name: "Smoked Old Fashioned", Category: "Cocktails", Price: 1400},
		},
		taxRate: decimal.RequireFromString("8.25"),
	}
}

func (s *Stub) OpenOrder(_ context.Context, req OpenOrderRequest) (*OrderRef, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "ord-" + uuid.New().String()
	s.orders[id] = &stubOrder{state: StateOpen}
	return &OrderRef{ID: id}, nil
}

func (s *Stub) AddLineItems(_ context.Context, orderID string, items []LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(orderID, "add_line_items")
	if err != nil {
		return err
	}
	o.items = append(o.items, items...)
	return nil
}

func (s *Stub) ApplyDiscount(_ context.Context, orderID, discountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(orderID, "apply_discount")
	if err != nil {
		return err
	}
	for i := range s.discounts {
		if s.discounts[i].ID == discountID {
			o.discount = &s.discounts[i]
			return nil
		}
	}
	return &APIError{Op: "apply_discount", Status: 404, Message: "discount not found"}
}

func (s *Stub) GetOrderTotal(_ context.Context, orderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(orderID, "get_order_total")
	if err != nil {
		return 0, err
	}
	var subtotal int64
	for _, it := range o.items {
		subtotal += it.Price * int64(it.Quantity)
	}
	return subtotal, nil
}

func (s *Stub) SubmitPayment(_ context.Context, req PaymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.order(req.OrderID, "submit_payment"); err != nil {
		return "", err
	}
	id := "pay-" + uuid.New().String()
	s.payments[id] = req.Amount + req.Tip
	return id, nil
}

func (s *Stub) SetOrderState(_ context.Context, orderID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.order(orderID, "set_order_state")
	if err != nil {
		return err
	}
	o.state = state
	return nil
}

func (s *Stub) CreateRefund(_ context.Context, req RefundRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	charged, ok := s.payments[req.PaymentID]
	if !ok {
		return "", &APIError{Op: "create_refund", Status: 404, Message: "payment not found"}
	}
	if req.Amount > charged {
		return "", &APIError{Op: "create_refund", Status: 400,
			Message: fmt.Sprintf("refund %d exceeds charge %d", req.Amount, charged)}
	}
	return "rfd-" + uuid.New().String(), nil
}

func (s *Stub) ListEmployees(_ context.Context) ([]Employee, error) { return s.employees, nil }

func (s *Stub) ListCustomers(_ context.Context) ([]Customer, error) { return s.customers, nil }

func (s *Stub) ListTenders(_ context.Context) ([]model.Tender, error) { return s.tenders, nil }

func (s *Stub) ListDiscounts(_ context.Context) ([]Discount, error) { return s.discounts, nil }

func (s *Stub) ListCatalog(_ context.Context) ([]menu.Item, error) { return s.catalog, nil }

func (s *Stub) GetTaxRate(_ context.Context) (decimal.Decimal, error) { return s.taxRate, nil }

// order looks up an order under the lock held by the caller.
func (s *Stub) order(id, op string) (*stubOrder, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, &APIError{Op: op, Status: 404, Message: "order not found"}
	}
	return o, nil
}
