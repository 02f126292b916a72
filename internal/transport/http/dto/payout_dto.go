package dto

import (
	"time"

	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

type RequestPayoutRequest struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
}

type PayoutRequest struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	RequestedAt   time.Time `json:"requestedAt"`
}

type RequestPayoutResponse struct {
	Success bool          `json:"success"`
	Payout  PayoutRequest `json:"payout"`
}

func PayoutFromRecord(record pgrepo.PayoutRequestRecord) PayoutRequest {
	return PayoutRequest{
		ID:            record.ID,
		Username:      record.Username,
		WalletAddress: record.WalletAddress,
		Amount:        record.Amount,
		Currency:      record.Currency,
		Status:        record.Status,
		RequestedAt:   record.RequestedAt,
	}
}
