package handlers

import (
	"errors"
	"net/http"

	librarysvc "github.com/parfum314159/pi-backend/internal/services/library"
	"github.com/parfum314159/pi-backend/internal/transport/http/dto"
	httperrors "github.com/parfum314159/pi-backend/internal/transport/http/errors"
)

type LibraryHandler struct {
	library *librarysvc.Service
}

func NewLibraryHandler(library *librarysvc.Service) *LibraryHandler {
	return &LibraryHandler{library: library}
}

func (h *LibraryHandler) MyPurchases(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		writeInternal(w, "LIBRARY_SERVICE_UNAVAILABLE", "library service is unavailable")
		return
	}

	var req dto.MyPurchasesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	records, err := h.library.MyPurchases(r.Context(), req.UserUID)
	if err != nil {
		if errors.Is(err, librarysvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "missing userUid")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to list purchases")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BookListResponse{
		Success: true,
		Books:   dto.BooksFromRecords(records),
	})
}

func (h *LibraryHandler) GetPDF(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		writeInternal(w, "LIBRARY_SERVICE_UNAVAILABLE", "library service is unavailable")
		return
	}

	var req dto.GetPDFRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	url, err := h.library.GetPDF(r.Context(), req.UserUID, req.BookID)
	if err != nil {
		switch {
		case errors.Is(err, librarysvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "missing bookId or userUid")
		case errors.Is(err, librarysvc.ErrNotPurchased):
			writeForbidden(w, "NOT_PURCHASED", "book not purchased")
		case errors.Is(err, librarysvc.ErrBookNotFound):
			writeNotFound(w, "BOOK_NOT_FOUND", "book not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load pdf")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.GetPDFResponse{Success: true, PDFURL: url})
}
