package dto

type MyPurchasesRequest struct {
	UserUID string `json:"userUid"`
}

type GetPDFRequest struct {
	BookID  string `json:"bookId"`
	UserUID string `json:"userUid"`
}

type GetPDFResponse struct {
	Success bool   `json:"success"`
	PDFURL  string `json:"pdfUrl"`
}
