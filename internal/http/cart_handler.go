package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/cart"
	"github.com/go-chi/chi/v5"
)

// CartOperations is the slice of the cart mutator the handlers use.
type CartOperations interface {
	Get(ctx context.Context, creds auth.TokenProvider, user string) (*cart.Snapshot, error)
	Increment(ctx context.Context, creds auth.TokenProvider, user string, ref cart.LineRef) (*cart.Snapshot, error)
	Decrement(ctx context.Context, creds auth.TokenProvider, user string, ref cart.LineRef) (*cart.Snapshot, error)
	Remove(ctx context.Context, creds auth.TokenProvider, user string, ref cart.LineRef, currentQty int) (*cart.Snapshot, error)
	Clear(ctx context.Context, creds auth.TokenProvider, user string) error
}

type CartHandler struct {
	carts   CartOperations
	timeout time.Duration
}

func NewCartHandler(carts CartOperations, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	snap, err := h.carts.Get(ctx, creds, user)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, creds auth.TokenProvider, user string, ref cart.LineRef) (*cart.Snapshot, error) {
		return h.carts.Increment(ctx, creds, user, ref)
	})
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, creds auth.TokenProvider, user string, ref cart.LineRef) (*cart.Snapshot, error) {
		return h.carts.Decrement(ctx, creds, user, ref)
	})
}

// RemoveLine deletes a cart line. The client supplies the line's last-known
// quantity so the mutator can form the full negative delta.
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	ref := cart.LineRef(chi.URLParam(r, "line_ref"))
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be a positive integer")
		return
	}

	snap, err := h.carts.Remove(ctx, creds, user, ref, quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, auth.TokenProvider, string, cart.LineRef) (*cart.Snapshot, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	ref := cart.LineRef(chi.URLParam(r, "line_ref"))
	snap, err := op(ctx, creds, user, ref)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func requestIdentity(w http.ResponseWriter, r *http.Request) (auth.TokenProvider, string, bool) {
	creds, ok := auth.CredentialsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, "", false
	}
	user, ok := auth.SubjectKeyFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, "", false
	}
	return creds, user, true
}
