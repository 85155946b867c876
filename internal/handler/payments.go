package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mmeshcher/carsharing-system/internal/model"
)

type checkoutRequest struct {
	RentalID int64  `json:"rental_id"`
	Type     string `json:"type"`
}

type paymentResponse struct {
	ID         int64   `json:"id"`
	RentalID   int64   `json:"rental_id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	SessionID  string  `json:"session_id"`
	SessionURL string  `json:"session_url"`
	Amount     float64 `json:"amount_to_pay"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:         p.ID,
		RentalID:   p.RentalID,
		Type:       string(p.Type),
		Status:     string(p.Status),
		SessionID:  p.SessionID,
		SessionURL: p.SessionURL,
		Amount:     float64(p.AmountCents) / 100,
	}
}

// Checkout создаёт PENDING-платёж и возвращает 303 со ссылкой на платёжную
// сессию провайдера в заголовке Location.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RentalID <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	pType := model.PaymentType(req.Type)
	if pType != model.PaymentTypePayment && pType != model.PaymentTypeFine {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.Checkout(r.Context(), actor, req.RentalID, pType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Location", payment.SessionURL)
	h.writeJSON(w, http.StatusSeeOther, toPaymentResponse(payment))
}

// PaymentSuccess — callback провайдера после успешной оплаты.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.HandleSuccess(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Payment successful! Session ID: %s", payment.SessionID)
}

// PaymentCancel — callback провайдера после отказа от оплаты.
func (h *Handler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.service.HandleCancel(r.Context(), sessionID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Payment was canceled. You can try again later.")
}

// RenewPayment открывает новую платёжную сессию для отменённого или истёкшего платежа.
func (h *Handler) RenewPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.RenewSession(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// GetPayment возвращает платёж по идентификатору.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := idFromURL(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.GetPaymentByID(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// ListPayments возвращает страницу платежей. Менеджер может фильтровать по user_id,
// остальные видят только свои платежи.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var userID *int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		userID = &id
	}

	page, size := parsePagination(r)

	payments, total, err := h.service.ListPayments(r.Context(), actor, userID, page, size)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPaymentResponse(&payments[i]))
	}

	h.writeJSON(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page, Size: size})
}
