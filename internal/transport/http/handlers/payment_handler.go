package handlers

import (
	"errors"
	"net/http"

	paymentsvc "github.com/parfum314159/pi-backend/internal/services/payments"
	"github.com/parfum314159/pi-backend/internal/transport/http/dto"
	httperrors "github.com/parfum314159/pi-backend/internal/transport/http/errors"
)

type PaymentHandler struct {
	payments *paymentsvc.Service
}

func NewPaymentHandler(payments *paymentsvc.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.ApprovePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	err := h.payments.Approve(r.Context(), paymentsvc.ApproveInput{
		PaymentID: req.PaymentID,
		BookID:    req.BookID,
		UserUID:   req.UserUID,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "missing payment fields")
		case writeProviderError(w, err):
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to approve payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ApprovePaymentResponse{Success: true})
}

func (h *PaymentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.CompletePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.payments.Complete(r.Context(), paymentsvc.CompleteInput{
		PaymentID: req.PaymentID,
		TxID:      req.TxID,
		BookID:    req.BookID,
		UserUID:   req.UserUID,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "missing payment fields")
		case errors.Is(err, paymentsvc.ErrBookNotFound):
			writeNotFound(w, "BOOK_NOT_FOUND", "paid book not found")
		case writeProviderError(w, err):
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to complete payment")
		}
		return
	}

	resp := dto.CompletePaymentResponse{Success: true, PDFURL: result.PDFURL}
	if result.Outcome == paymentsvc.OutcomeAlreadyCompleted {
		resp.Message = "Payment already completed"
	}
	httperrors.Write(w, http.StatusOK, resp)
}

// ResolvePending always answers success when the sweep itself ran; a
// payment that is still pending or abandoned is not a caller error.
func (h *PaymentHandler) ResolvePending(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.ResolvePendingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.PaymentID == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "missing paymentId")
		return
	}

	_, err := h.payments.ResolvePending(r.Context(), req.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "missing paymentId")
		case errors.Is(err, paymentsvc.ErrBookNotFound):
			writeNotFound(w, "BOOK_NOT_FOUND", "paid book not found")
		case writeProviderError(w, err):
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to resolve pending payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ResolvePendingResponse{Success: true})
}
