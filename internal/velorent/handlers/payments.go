package handlers

import (
	"io"
	"net/http"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/service"
)

// maxWebhookBody caps gateway notifications
const maxWebhookBody = 1 << 20

// CreatePayment starts an interactive payment
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.CreatePaymentInput
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.CreatePayment(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Webhook applies a gateway notification. The raw body is stored verbatim.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, r, apperr.Validation("Invalid request body"))
		return
	}

	detail, err := h.Payments.HandleWebhook(r.Context(), r.Header.Get("Authorization"), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: detail})
}

// EnableAutopay turns autopay on
func (h *Handler) EnableAutopay(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		PaymentMethodID *string `json:"payment_method_id"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.EnableAutopay(r.Context(), userID, req.PaymentMethodID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DisableAutopay turns autopay off
func (h *Handler) DisableAutopay(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.DisableAutopay(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ChargeAutopay charges the stored payment method
func (h *Handler) ChargeAutopay(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.AutopayChargeInput
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.ChargeAutopay(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RecalcOrder compares a new order total with what was paid
func (h *Handler) RecalcOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req service.RecalcInput
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.Recalc(r.Context(), userID, orderID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetOrder returns the caller's order with its payments
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.Payments.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// RefundOrder refunds the overpaid part of an order
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.Payments.RefundOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
