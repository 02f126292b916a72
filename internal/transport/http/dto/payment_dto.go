package dto

type ApprovePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	BookID    string `json:"bookId"`
	UserUID   string `json:"userUid"`
}

type ApprovePaymentResponse struct {
	Success bool `json:"success"`
}

type CompletePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	TxID      string `json:"txid"`
	BookID    string `json:"bookId"`
	UserUID   string `json:"userUid"`
}

type CompletePaymentResponse struct {
	Success bool   `json:"success"`
	PDFURL  string `json:"pdfUrl,omitempty"`
	Message string `json:"message,omitempty"`
}

type ResolvePendingRequest struct {
	PaymentID string `json:"paymentId"`
}

type ResolvePendingResponse struct {
	Success bool `json:"success"`
}
