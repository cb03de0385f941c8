package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/cart"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleCartError maps mutator and backend failures to HTTP responses.
func handleCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrLineBusy):
		respondError(w, http.StatusConflict, "line_busy", "an update for this cart line is already in flight")
	case errors.Is(err, cart.ErrInvalidLineRef):
		respondError(w, http.StatusBadRequest, "invalid_line_ref", "line reference is required")
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be a positive integer")
	case errors.Is(err, auth.ErrNoCredentials):
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	default:
		respondError(w, http.StatusBadGateway, "backend_unavailable", err.Error())
	}
}
