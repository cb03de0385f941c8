// Package backend is the REST client for the external order/payment backend.
// All catalog, cart, and order state lives there; this client only moves
// requests and authoritative snapshots across the wire.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/cart"
	"github.com/go-resty/resty/v2"
)

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

type OrderRequest struct {
	PhoneNumber   string `json:"phoneNumber"`
	Address       string `json:"address"`
	Note          string `json:"note,omitempty"`
	PaymentMethod string `json:"paymentMethod"`
}

type orderResponse struct {
	OrderID string `json:"orderId"`
}

type settlementResponse struct {
	Settled bool `json:"settled"`
}

// CreateOrder places an order from the user's current cart and returns the
// backend-issued order id.
func (c *Client) CreateOrder(ctx context.Context, creds auth.TokenProvider, req OrderRequest) (string, error) {
	r, err := c.request(ctx, creds)
	if err != nil {
		return "", err
	}

	var out orderResponse
	resp, err := r.SetBody(req).SetResult(&out).Post("/order")
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if resp.IsError() {
		return "", apiError("create order", resp)
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("create order: backend returned no order id")
	}
	return out.OrderID, nil
}

// OrderSettled reports whether the bank transfer for an order has been
// reconciled. The call is idempotent and side-effect free.
func (c *Client) OrderSettled(ctx context.Context, creds auth.TokenProvider, orderID string) (bool, error) {
	return c.settled(ctx, creds, "/payment-status/{id}", orderID)
}

// ChatPaymentSettled is the same contract for a payment QR embedded in a
// chat message; only the subject type differs.
func (c *Client) ChatPaymentSettled(ctx context.Context, creds auth.TokenProvider, messageID string) (bool, error) {
	return c.settled(ctx, creds, "/chat-payment-status/{id}", messageID)
}

func (c *Client) settled(ctx context.Context, creds auth.TokenProvider, path, id string) (bool, error) {
	r, err := c.request(ctx, creds)
	if err != nil {
		return false, err
	}

	var out settlementResponse
	resp, err := r.SetPathParam("id", id).SetResult(&out).Get(path)
	if err != nil {
		return false, fmt.Errorf("settlement check: %w", err)
	}
	if resp.IsError() {
		return false, apiError("settlement check", resp)
	}
	return out.Settled, nil
}

// UpdateCartQuantity sends a relative quantity delta for one cart line. The
// caller must follow a successful call with GetCart; the response body here
// is not authoritative and is discarded.
func (c *Client) UpdateCartQuantity(ctx context.Context, creds auth.TokenProvider, d cart.Delta) error {
	r, err := c.request(ctx, creds)
	if err != nil {
		return err
	}

	resp, err := r.SetBody(d).Put("/cart")
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	if resp.IsError() {
		return apiError("update cart", resp)
	}
	return nil
}

// GetCart fetches the complete authoritative cart snapshot.
func (c *Client) GetCart(ctx context.Context, creds auth.TokenProvider) (*cart.Snapshot, error) {
	r, err := c.request(ctx, creds)
	if err != nil {
		return nil, err
	}

	var snap cart.Snapshot
	resp, err := r.SetResult(&snap).Get("/cart")
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if resp.IsError() {
		return nil, apiError("get cart", resp)
	}
	return &snap, nil
}

// ClearCart empties the user's cart. Clearing an already-empty cart is not
// an error on the backend side.
func (c *Client) ClearCart(ctx context.Context, creds auth.TokenProvider) error {
	r, err := c.request(ctx, creds)
	if err != nil {
		return err
	}

	resp, err := r.Delete("/cart")
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if resp.IsError() {
		return apiError("clear cart", resp)
	}
	return nil
}

func (c *Client) request(ctx context.Context, creds auth.TokenProvider) (*resty.Request, error) {
	token, err := creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func apiError(op string, resp *resty.Response) error {
	return fmt.Errorf("%s: backend returned %s", op, resp.Status())
}
