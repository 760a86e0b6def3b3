package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mealforge/posgen/internal/menu"
	"github.com/mealforge/posgen/internal/metrics"
	"github.com/mealforge/posgen/internal/model"
)

// Config is the immutable client configuration. No ambient globals — the
// merchant credentials travel with the client instance.
type Config struct {
	BaseURL     string
	Token       string
	MerchantID  string
	CallTimeout time.Duration // per-call bound; default 10s
}

// Client implements API over HTTP against the sandbox merchant API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a sandbox API client.
func NewClient(cfg Config) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.CallTimeout},
	}
}

func (c *Client) OpenOrder(ctx context.Context, req OpenOrderRequest) (*OrderRef, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var ref OrderRef
	if err := c.do(ctx, "open_order", http.MethodPost, "/v2/orders", req, &ref, false); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (c *Client) AddLineItems(ctx context.Context, orderID string, items []LineItem) error {
	if orderID == "" || len(items) == 0 {
		return fmt.Errorf("%w: order_id and items are required", ErrInvalidRequest)
	}
	body := struct {
		Items []LineItem `json:"items"`
	}{Items: items}
	path := fmt.Sprintf("/v2/orders/%s/line-items", orderID)
	return c.do(ctx, "add_line_items", http.MethodPost, path, body, nil, false)
}

func (c *Client) ApplyDiscount(ctx context.Context, orderID, discountID string) error {
	if orderID == "" || discountID == "" {
		return fmt.Errorf("%w: order_id and discount_id are required", ErrInvalidRequest)
	}
	body := struct {
		DiscountID string `json:"discount_id"`
	}{DiscountID: discountID}
	path := fmt.Sprintf("/v2/orders/%s/discounts", orderID)
	return c.do(ctx, "apply_discount", http.MethodPost, path, body, nil, false)
}

func (c *Client) GetOrderTotal(ctx context.Context, orderID string) (int64, error) {
	var resp struct {
		Subtotal int64 `json:"subtotal"`
	}
	path := fmt.Sprintf("/v2/orders/%s/total", orderID)
	if err := c.do(ctx, "get_order_total", http.MethodGet, path, nil, &resp, false); err != nil {
		return 0, err
	}
	return resp.Subtotal, nil
}

func (c *Client) SubmitPayment(ctx context.Context, req PaymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	// Idempotency key guards against double-charging on provider-side
	// retries; the client itself never retries payment submissions.
	if err := c.do(ctx, "submit_payment", http.MethodPost, "/v2/payments", req, &resp, true); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) SetOrderState(ctx context.Context, orderID, state string) error {
	if orderID == "" || state == "" {
		return fmt.Errorf("%w: order_id and state are required", ErrInvalidRequest)
	}
	body := struct {
		State string `json:"state"`
	}{State: state}
	path := fmt.Sprintf("/v2/orders/%s/state", orderID)
	return c.do(ctx, "set_order_state", http.MethodPut, path, body, nil, false)
}

func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "create_refund", http.MethodPost, "/v2/refunds", req, &resp, true); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) ListEmployees(ctx context.Context) ([]Employee, error) {
	var resp struct {
		Employees []Employee `json:"employees"`
	}
	if err := c.do(ctx, "list_employees", http.MethodGet, "/v2/employees", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Employees, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	var resp struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.do(ctx, "list_customers", http.MethodGet, "/v2/customers", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

func (c *Client) ListTenders(ctx context.Context) ([]model.Tender, error) {
	var resp struct {
		Tenders []model.Tender `json:"tenders"`
	}
	if err := c.do(ctx, "list_tenders", http.MethodGet, "/v2/tenders", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Tenders, nil
}

func (c *Client) ListDiscounts(ctx context.Context) ([]Discount, error) {
	var resp struct {
		Discounts []Discount `json:"discounts"`
	}
	if err := c.do(ctx, "list_discounts", http.MethodGet, "/v2/discounts", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Discounts, nil
}

func (c *Client) ListCatalog(ctx context.Context) ([]menu.Item, error) {
	var resp struct {
		Items []menu.Item `json:"items"`
	}
	if err := c.do(ctx, "list_catalog", http.MethodGet, "/v2/catalog/items", nil, &resp, false); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) GetTaxRate(ctx context.Context) (decimal.Decimal, error) {
	var resp struct {
		Rate decimal.Decimal `json:"rate"` // percentage, e.g. "8.25"
	}
	if err := c.do(ctx, "get_tax_rate", http.MethodGet, "/v2/tax-rates/default", nil, &resp, false); err != nil {
		return decimal.Zero, err
	}
	return resp.Rate, nil
}

// do executes one request/response cycle. Non-2xx responses become
// APIErrors carrying the provider's error message; transport failures
// become APIErrors with status 0.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any, idempotent bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Err: err}
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("X-Merchant-ID", c.cfg.MerchantID)
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.APILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Op: op, Status: resp.StatusCode, Message: payload.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
