package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/backend"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/payqr"
)

const (
	PaymentMethodCashOnDelivery = "CASH_ON_DELIVERY"
	PaymentMethodBankTransfer   = "BANK_TRANSFER"
)

// OrderAPI is the slice of the backend client the checkout and payment
// handlers use.
type OrderAPI interface {
	CreateOrder(ctx context.Context, creds auth.TokenProvider, req backend.OrderRequest) (string, error)
	OrderSettled(ctx context.Context, creds auth.TokenProvider, orderID string) (bool, error)
	ChatPaymentSettled(ctx context.Context, creds auth.TokenProvider, messageID string) (bool, error)
}

type CheckoutHandler struct {
	orders  OrderAPI
	carts   CartOperations
	qr      payqr.Config
	timeout time.Duration
}

func NewCheckoutHandler(orders OrderAPI, carts CartOperations, qr payqr.Config, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		orders:  orders,
		carts:   carts,
		qr:      qr,
		timeout: timeout,
	}
}

type PlaceOrderRequestDTO struct {
	PhoneNumber   string `json:"phone_number"`
	Address       string `json:"address"`
	Note          string `json:"note,omitempty"`
	PaymentMethod string `json:"payment_method"`
}

type PlaceOrderResponseDTO struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	QRURL         string `json:"qr_url,omitempty"`
}

// PlaceOrder creates an order from the current cart. For bank transfers the
// response carries the amount and QR URL the settlement stream needs.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" {
		respondError(w, http.StatusBadRequest, "invalid_phone_number", "phone_number is required")
		return
	}
	if req.Address == "" {
		respondError(w, http.StatusBadRequest, "invalid_address", "address is required")
		return
	}
	if req.PaymentMethod != PaymentMethodCashOnDelivery && req.PaymentMethod != PaymentMethodBankTransfer {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", "payment_method must be CASH_ON_DELIVERY or BANK_TRANSFER")
		return
	}

	snap, err := h.carts.Get(ctx, creds, user)
	if err != nil {
		handleCartError(w, err)
		return
	}
	if len(snap.Lines) == 0 || snap.TotalPrice <= 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty, nothing to order")
		return
	}

	orderID, err := h.orders.CreateOrder(ctx, creds, backend.OrderRequest{
		PhoneNumber:   req.PhoneNumber,
		Address:       req.Address,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "order_failed", err.Error())
		return
	}

	resp := PlaceOrderResponseDTO{
		OrderID:       orderID,
		Amount:        snap.TotalPrice,
		PaymentMethod: req.PaymentMethod,
	}
	switch req.PaymentMethod {
	case PaymentMethodBankTransfer:
		// cart survives until the transfer settles; the settlement
		// stream's side effect clears it
		resp.QRURL = h.qr.PaymentURL(orderID, snap.TotalPrice)
	case PaymentMethodCashOnDelivery:
		if err := h.carts.Clear(ctx, creds, user); err != nil {
			log.Printf("cart clear after order %s failed: %v", orderID, err)
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}
