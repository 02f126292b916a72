package handlers

import (
	"errors"
	"net/http"

	bookssvc "github.com/parfum314159/pi-backend/internal/services/books"
	"github.com/parfum314159/pi-backend/internal/transport/http/dto"
	httperrors "github.com/parfum314159/pi-backend/internal/transport/http/errors"
)

type BookHandler struct {
	books *bookssvc.Service
}

func NewBookHandler(books *bookssvc.Service) *BookHandler {
	return &BookHandler{books: books}
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	records, err := h.books.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list books")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BookListResponse{
		Success: true,
		Books:   dto.BooksFromRecords(records),
	})
}

func (h *BookHandler) Save(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	var req dto.SaveBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.books.Save(r.Context(), bookssvc.SaveInput{
		Title:       req.Title,
		Price:       req.Price,
		Description: req.Description,
		Language:    req.Language,
		PageCount:   req.PageCount,
		CoverURL:    req.Cover,
		PDFURL:      req.PDF,
		Owner:       req.Owner,
		OwnerUID:    req.OwnerUID,
	})
	if err != nil {
		if errors.Is(err, bookssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "missing or invalid book fields")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to save book")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SaveBookResponse{Success: true, BookID: record.ID})
}

func (h *BookHandler) Rate(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	var req dto.RateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	err := h.books.Rate(r.Context(), bookssvc.RateInput{
		BookID:  req.BookID,
		UserUID: req.UserUID,
		Vote:    req.VoteType,
	})
	if err != nil {
		switch {
		case errors.Is(err, bookssvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid vote payload")
		case errors.Is(err, bookssvc.ErrBookNotFound):
			writeNotFound(w, "BOOK_NOT_FOUND", "book not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to record vote")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.RateBookResponse{Success: true})
}

func (h *BookHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	var req dto.BookRatingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	tally, err := h.books.Ratings(r.Context(), req.BookID, req.UserUID)
	if err != nil {
		if errors.Is(err, bookssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "missing bookId")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load ratings")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BookRatingsResponse{
		Success:  true,
		Likes:    tally.Likes,
		Dislikes: tally.Dislikes,
		UserVote: tally.UserVote,
	})
}

func (h *BookHandler) MySales(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	var req dto.MySalesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	records, err := h.books.MySales(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, bookssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "missing username")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to list sales")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.BookListResponse{
		Success: true,
		Books:   dto.BooksFromRecords(records),
	})
}

func (h *BookHandler) ResetSales(w http.ResponseWriter, r *http.Request) {
	if h.books == nil {
		writeInternal(w, "BOOKS_SERVICE_UNAVAILABLE", "books service is unavailable")
		return
	}

	var req dto.ResetSalesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	affected, err := h.books.ResetSales(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, bookssvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "missing username")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to reset sales")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ResetSalesResponse{Success: true, Books: affected})
}
