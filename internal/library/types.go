package library

import "strings"

// Library is a named collection of books on the backend.
type Library struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at,omitempty"`
	BookCount int      `json:"book_count"`
}

// Book is either a search result (ID == 0) or a book stored in a library.
type Book struct {
	ID            int      `json:"id,omitempty"`
	BookID        string   `json:"book_id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Genres        []string `json:"genres"`
	Description   string   `json:"description,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Rating        int      `json:"rating,omitempty"`
	IsRead        bool     `json:"is_read,omitempty"`
	AddedAt       string   `json:"added_at,omitempty"`
}

// Byline joins the authors for display.
func (b Book) Byline() string {
	return strings.Join(b.Authors, ", ")
}

// BookFilter narrows a library listing. Zero fields are not sent.
type BookFilter struct {
	Search string
	Genre  string
	Rating int
	Read   *bool
	Sort   string
}

// AddResult reports the outcome of adding a book to a library.
type AddResult struct {
	Message string
	// Duplicate is set when the backend already had the book in the library.
	Duplicate bool
}

type messageBody struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Thumbnail string `json:"thumbnail,omitempty"`
}
