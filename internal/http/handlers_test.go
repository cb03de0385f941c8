package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/backend"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/cart"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/notify"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/payqr"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/paywatch"
	"github.com/go-chi/chi/v5"
)

// mockCarts implements CartOperations for handler tests.
type mockCarts struct {
	mu      sync.Mutex
	snap    *cart.Snapshot
	err     error
	cleared int
	lastOp  string
	lastRef cart.LineRef
	lastQty int
}

func (m *mockCarts) Get(_ context.Context, _ auth.TokenProvider, _ string) (*cart.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.err
}

func (m *mockCarts) Increment(_ context.Context, _ auth.TokenProvider, _ string, ref cart.LineRef) (*cart.Snapshot, error) {
	return m.record("increment", ref, 0)
}

func (m *mockCarts) Decrement(_ context.Context, _ auth.TokenProvider, _ string, ref cart.LineRef) (*cart.Snapshot, error) {
	return m.record("decrement", ref, 0)
}

func (m *mockCarts) Remove(_ context.Context, _ auth.TokenProvider, _ string, ref cart.LineRef, currentQty int) (*cart.Snapshot, error) {
	return m.record("remove", ref, currentQty)
}

func (m *mockCarts) Clear(_ context.Context, _ auth.TokenProvider, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	return nil
}

func (m *mockCarts) record(op string, ref cart.LineRef, qty int) (*cart.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOp, m.lastRef, m.lastQty = op, ref, qty
	return m.snap, m.err
}

func (m *mockCarts) clearedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// mockOrders implements OrderAPI for handler tests.
type mockOrders struct {
	mu          sync.Mutex
	orderID     string
	createErr   error
	settled     bool
	settleErr   error
	lastRequest backend.OrderRequest
	checkTokens []string
}

func (m *mockOrders) CreateOrder(_ context.Context, _ auth.TokenProvider, req backend.OrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRequest = req
	return m.orderID, m.createErr
}

func (m *mockOrders) OrderSettled(ctx context.Context, creds auth.TokenProvider, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token, err := creds.Token(ctx); err == nil {
		m.checkTokens = append(m.checkTokens, token)
	}
	return m.settled, m.settleErr
}

func (m *mockOrders) ChatPaymentSettled(_ context.Context, _ auth.TokenProvider, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settled, m.settleErr
}

func (m *mockOrders) tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.checkTokens...)
}

// mockNotifier records settlement events.
type mockNotifier struct {
	mu     sync.Mutex
	events []notify.SettledEvent
}

func (m *mockNotifier) PaymentSettled(_ context.Context, e notify.SettledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockNotifier) recorded() []notify.SettledEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.SettledEvent(nil), m.events...)
}

var testQR = payqr.Config{BankCode: "MB", AccountNumber: "123456789", AccountName: "SMARTMALL"}

func newTestRouter(carts CartOperations, orders OrderAPI, notifier notify.Notifier) (chi.Router, *paywatch.Registry) {
	registry := paywatch.NewRegistry(5 * time.Millisecond)
	cartHandler := NewCartHandler(carts, 2*time.Second)
	checkoutHandler := NewCheckoutHandler(orders, carts, testQR, 2*time.Second)
	paymentHandler := NewPaymentHandler(registry, orders, carts, notifier, 5*time.Millisecond)
	return NewRouter(cartHandler, checkoutHandler, paymentHandler, 2*time.Second), registry
}

func authorized(r *http.Request) *http.Request {
	return authorizedAs(r, "test-token")
}

func authorizedAs(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
