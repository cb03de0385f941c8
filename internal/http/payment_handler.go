package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Hieu4tuoii/smartmall-storefront/internal/auth"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/notify"
	"github.com/Hieu4tuoii/smartmall-storefront/internal/paywatch"
	"github.com/go-chi/chi/v5"
)

const sideEffectTimeout = 10 * time.Second

// PaymentHandler streams settlement confirmation for bank-transfer subjects
// over SSE. The watcher registry owns the polling; a stream only subscribes,
// so one user's reconnects and multiple tabs share one poll loop per subject.
// Subjects are keyed per user: a watcher polls with the credentials of the
// user it was created for and is never handed to another user's stream.
type PaymentHandler struct {
	registry  *paywatch.Registry
	orders    OrderAPI
	carts     CartOperations
	notifier  notify.Notifier
	heartbeat time.Duration
}

func NewPaymentHandler(registry *paywatch.Registry, orders OrderAPI, carts CartOperations, notifier notify.Notifier, heartbeat time.Duration) *PaymentHandler {
	if heartbeat <= 0 {
		heartbeat = paywatch.DefaultInterval
	}
	return &PaymentHandler{
		registry:  registry,
		orders:    orders,
		carts:     carts,
		notifier:  notifier,
		heartbeat: heartbeat,
	}
}

type settlementStatusDTO struct {
	SubjectID string `json:"subject_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// StreamOrderSettlement opens the SSE stream for an order's bank transfer.
// Confirmation clears the cart exactly once and publishes a settled event.
func (h *PaymentHandler) StreamOrderSettlement(w http.ResponseWriter, r *http.Request) {
	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		h.rejectSubject(w, paywatch.ErrInvalidSubject)
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		amount = 0 // the watcher rejects it as an invalid subject
	}

	check := func(ctx context.Context) (bool, error) {
		return h.orders.OrderSettled(ctx, creds, orderID)
	}
	onConfirmed := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		defer cancel()

		if err := h.carts.Clear(ctx, creds, user); err != nil {
			log.Printf("cart clear after settlement of %s failed: %v", orderID, err)
		}
		h.publish(ctx, notify.SettledEvent{
			SubjectID: orderID,
			Kind:      notify.SubjectKindOrder,
			Amount:    amount,
		})
	}

	watcher, release, err := h.registry.Watch("order:"+user+":"+orderID, check,
		paywatch.WithAmount(amount),
		paywatch.WithOnConfirmed(onConfirmed),
	)
	if err != nil {
		h.rejectSubject(w, err)
		return
	}
	defer release()

	h.stream(w, r, orderID, watcher)
}

// StreamChatSettlement is the same protocol for a payment QR embedded in a
// chat message. Chat subjects carry no amount and clear no cart; the side
// effect is the settled notification only.
func (h *PaymentHandler) StreamChatSettlement(w http.ResponseWriter, r *http.Request) {
	creds, user, ok := requestIdentity(w, r)
	if !ok {
		return
	}

	messageID := chi.URLParam(r, "message_id")
	if messageID == "" {
		h.rejectSubject(w, paywatch.ErrInvalidSubject)
		return
	}
	check := func(ctx context.Context) (bool, error) {
		return h.orders.ChatPaymentSettled(ctx, creds, messageID)
	}
	onConfirmed := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
		defer cancel()
		h.publish(ctx, notify.SettledEvent{
			SubjectID: messageID,
			Kind:      notify.SubjectKindChatMessage,
		})
	}

	watcher, release, err := h.registry.Watch("chat:"+user+":"+messageID, check,
		paywatch.WithOnConfirmed(onConfirmed),
	)
	if err != nil {
		h.rejectSubject(w, err)
		return
	}
	defer release()

	h.stream(w, r, messageID, watcher)
}

// CheckOrderSettlement is the single-shot check, for clients that cannot
// hold an SSE connection open.
func (h *PaymentHandler) CheckOrderSettlement(w http.ResponseWriter, r *http.Request) {
	h.checkOnce(w, r, chi.URLParam(r, "order_id"), h.orders.OrderSettled)
}

func (h *PaymentHandler) CheckChatSettlement(w http.ResponseWriter, r *http.Request) {
	h.checkOnce(w, r, chi.URLParam(r, "message_id"), h.orders.ChatPaymentSettled)
}

func (h *PaymentHandler) checkOnce(
	w http.ResponseWriter,
	r *http.Request,
	subjectID string,
	check func(context.Context, auth.TokenProvider, string) (bool, error),
) {
	creds, _, ok := requestIdentity(w, r)
	if !ok {
		return
	}
	if subjectID == "" {
		h.rejectSubject(w, paywatch.ErrInvalidSubject)
		return
	}

	settled, err := check(r.Context(), creds, subjectID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "check_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"settled": settled})
}

func (h *PaymentHandler) stream(w http.ResponseWriter, r *http.Request, subjectID string, watcher *paywatch.Watcher) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeStatus := func() {
		dto := settlementStatusDTO{
			SubjectID: subjectID,
			Status:    string(watcher.Status()),
		}
		if err := watcher.LastError(); err != nil {
			dto.Error = err.Error()
		}
		writeEvent(w, "settlement", dto)
		flusher.Flush()
	}

	writeStatus()
	if watcher.Status() == paywatch.StatusConfirmed {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-watcher.Confirmed():
			writeStatus()
			return
		case <-heartbeat.C:
			// pending heartbeat carries the last advisory error, if any
			writeStatus()
		}
	}
}

func (h *PaymentHandler) rejectSubject(w http.ResponseWriter, err error) {
	if errors.Is(err, paywatch.ErrInvalidSubject) {
		respondError(w, http.StatusBadRequest, "invalid_subject", "order id or amount is missing; return to the cart and check out again")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func (h *PaymentHandler) publish(ctx context.Context, e notify.SettledEvent) {
	if e.SettledAt.IsZero() {
		e.SettledAt = time.Now()
	}
	if err := h.notifier.PaymentSettled(ctx, e); err != nil {
		log.Printf("settlement event publish failed subject=%s: %v", e.SubjectID, err)
	}
}

func writeEvent(w http.ResponseWriter, name string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to encode event payload: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}
