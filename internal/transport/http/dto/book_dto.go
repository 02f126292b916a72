package dto

import (
	"time"

	pgrepo "github.com/parfum314159/pi-backend/internal/repo/postgres"
)

// Book mirrors the catalog document shape the web client already
// consumes: cover and pdf keep their short legacy names.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	PageCount   string    `json:"pageCount"`
	Cover       string    `json:"cover"`
	PDF         string    `json:"pdf"`
	Owner       string    `json:"owner"`
	OwnerUID    string    `json:"ownerUid"`
	SalesCount  int64     `json:"salesCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func BookFromRecord(record pgrepo.BookRecord) Book {
	return Book{
		ID:          record.ID,
		Title:       record.Title,
		Price:       record.Price,
		Description: record.Description,
		Language:    record.Language,
		PageCount:   record.PageCount,
		Cover:       record.CoverURL,
		PDF:         record.PDFURL,
		Owner:       record.Owner,
		OwnerUID:    record.OwnerUID,
		SalesCount:  record.SalesCount,
		CreatedAt:   record.CreatedAt,
	}
}

func BooksFromRecords(records []pgrepo.BookRecord) []Book {
	books := make([]Book, 0, len(records))
	for _, record := range records {
		books = append(books, BookFromRecord(record))
	}
	return books
}

type BookListResponse struct {
	Success bool   `json:"success"`
	Books   []Book `json:"books"`
}

type SaveBookRequest struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Language    string  `json:"language"`
	PageCount   string  `json:"pageCount"`
	Cover       string  `json:"cover"`
	PDF         string  `json:"pdf"`
	Owner       string  `json:"owner"`
	OwnerUID    string  `json:"ownerUid"`
}

type SaveBookResponse struct {
	Success bool   `json:"success"`
	BookID  string `json:"bookId"`
}

type RateBookRequest struct {
	BookID   string `json:"bookId"`
	VoteType string `json:"voteType"`
	UserUID  string `json:"userUid"`
}

type RateBookResponse struct {
	Success bool `json:"success"`
}

type BookRatingsRequest struct {
	BookID  string `json:"bookId"`
	UserUID string `json:"userUid"`
}

type BookRatingsResponse struct {
	Success  bool    `json:"success"`
	Likes    int     `json:"likes"`
	Dislikes int     `json:"dislikes"`
	UserVote *string `json:"userVote"`
}

type MySalesRequest struct {
	Username string `json:"username"`
}

type ResetSalesRequest struct {
	Username string `json:"username"`
}

type ResetSalesResponse struct {
	Success bool  `json:"success"`
	Books   int64 `json:"books"`
}
