package handlers

import (
	"errors"
	"net/http"

	payoutsvc "github.com/parfum314159/pi-backend/internal/services/payouts"
	"github.com/parfum314159/pi-backend/internal/transport/http/dto"
	httperrors "github.com/parfum314159/pi-backend/internal/transport/http/errors"
)

type PayoutHandler struct {
	payouts *payoutsvc.Service
}

func NewPayoutHandler(payouts *payoutsvc.Service) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

func (h *PayoutHandler) Request(w http.ResponseWriter, r *http.Request) {
	if h.payouts == nil {
		writeInternal(w, "PAYOUTS_SERVICE_UNAVAILABLE", "payouts service is unavailable")
		return
	}

	var req dto.RequestPayoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.payouts.Request(r.Context(), payoutsvc.RequestInput{
		Username:      req.Username,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, payoutsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "missing username or walletAddress")
		case errors.Is(err, payoutsvc.ErrNoBooks):
			writeBadRequest(w, "NO_BOOKS", "no books found")
		case errors.Is(err, payoutsvc.ErrBelowMinimum):
			writeBadRequest(w, "BELOW_MINIMUM", "payout amount below minimum")
		case errors.Is(err, payoutsvc.ErrDuplicate):
			writeBadRequest(w, "DUPLICATE_PAYOUT", "duplicate payout attempt")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to request payout")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RequestPayoutResponse{
		Success: true,
		Payout:  dto.PayoutFromRecord(record),
	})
}
