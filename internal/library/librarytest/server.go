// Package librarytest provides an in-memory fake of the library backend for
// tests.
package librarytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/bamsammich/shelfscan/internal/library"
)

// Backend is an in-memory library backend served over httptest.
type Backend struct {
	URL string

	mu        sync.Mutex
	catalogue map[string][]library.Book // search query -> results
	libraries []library.Library
	books     map[int][]library.Book // library ID -> books
	nextLib   int
	nextBook  int
	requests  []string
	failNext  int // status to return for the next request, 0 = none
}

// New starts a fake backend that is shut down when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		catalogue: make(map[string][]library.Book),
		books:     make(map[int][]library.Book),
		nextLib:   1,
		nextBook:  1,
	}
	srv := httptest.NewServer(b.router())
	t.Cleanup(srv.Close)
	b.URL = srv.URL
	return b
}

// AddCatalogue registers the results returned for a search query.
func (b *Backend) AddCatalogue(query string, books ...library.Book) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalogue[query] = append(b.catalogue[query], books...)
}

// AddLibrary creates a library directly and returns its ID.
func (b *Backend) AddLibrary(name string, tags ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLibraryLocked(name, tags)
}

// Books returns the books stored in a library.
func (b *Backend) Books(libraryID int) []library.Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.books[libraryID])
}

// Requests returns "METHOD path?query" for every request served.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.requests)
}

// FailNext makes the next request fail with status.
func (b *Backend) FailNext(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = status
}

func (b *Backend) addLibraryLocked(name string, tags []string) int {
	if tags == nil {
		tags = []string{}
	}
	id := b.nextLib
	b.nextLib++
	b.libraries = append(b.libraries, library.Library{
		ID:        id,
		Name:      name,
		Tags:      tags,
		CreatedAt: "2024-01-01",
	})
	return id
}

func (b *Backend) router() http.Handler {
	r := mux.NewRouter()
	r.Use(b.record)
	r.HandleFunc("/search", b.search).Methods("GET")
	r.HandleFunc("/libraries", b.listLibraries).Methods("GET")
	r.HandleFunc("/library", b.createLibrary).Methods("POST")
	r.HandleFunc("/library/{id:[0-9]+}", b.deleteLibrary).Methods("DELETE")
	r.HandleFunc("/library/{id:[0-9]+}/add", b.addBook).Methods("POST")
	r.HandleFunc("/library/{id:[0-9]+}/books", b.listBooks).Methods("GET")
	r.HandleFunc("/library/{id:[0-9]+}/book/{book:[0-9]+}", b.removeBook).Methods("DELETE")
	r.HandleFunc("/book/{book:[0-9]+}/tags", b.updateBook(func(bk *library.Book, in map[string]any) {
		bk.Tags = nil
		for _, t := range in["tags"].([]any) {
			bk.Tags = append(bk.Tags, t.(string))
		}
	})).Methods("POST")
	r.HandleFunc("/book/{book:[0-9]+}/update_rating", b.updateBook(func(bk *library.Book, in map[string]any) {
		bk.Rating = int(in["rating"].(float64))
	})).Methods("POST")
	r.HandleFunc("/book/{book:[0-9]+}/update_status", b.updateBook(func(bk *library.Book, in map[string]any) {
		bk.IsRead = in["is_read"].(bool)
	})).Methods("POST")
	r.HandleFunc("/book/{book:[0-9]+}/refresh_image", b.updateBook(func(bk *library.Book, _ map[string]any) {
		bk.Thumbnail = "https://covers.example/" + bk.BookID + ".jpg"
	})).Methods("POST")
	r.HandleFunc("/export", b.export).Methods("GET")
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		entry := r.Method + " " + r.URL.Path
		if r.URL.RawQuery != "" {
			entry += "?" + r.URL.RawQuery
		}
		b.requests = append(b.requests, entry)
		status := b.failNext
		b.failNext = 0
		b.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No query provided"})
		return
	}
	b.mu.Lock()
	results := slices.Clone(b.catalogue[q])
	b.mu.Unlock()
	if results == nil {
		results = []library.Book{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (b *Backend) listLibraries(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]library.Library, 0, len(b.libraries))
	for _, l := range b.libraries {
		l.BookCount = len(b.books[l.ID])
		out = append(out, l)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createLibrary(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Library name is required"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.libraries {
		if strings.EqualFold(l.Name, in.Name) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Library already exists"})
			return
		}
	}
	b.addLibraryLocked(in.Name, in.Tags)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Library '%s' created!", in.Name)})
}

func (b *Backend) deleteLibrary(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.libraryIndexLocked(id)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Library does not exist"})
		return
	}
	name := b.libraries[i].Name
	b.libraries = slices.Delete(b.libraries, i, i+1)
	delete(b.books, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Library '%s' deleted!", name)})
}

func (b *Backend) addBook(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	var in library.Book
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.libraryIndexLocked(id)
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Library does not exist"})
		return
	}
	for _, bk := range b.books[id] {
		if bk.BookID == in.BookID {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Book already exists in the library."})
			return
		}
	}
	in.ID = b.nextBook
	b.nextBook++
	b.books[id] = append(b.books[id], in)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Book '%s' added to library '%s'!", in.Title, b.libraries[i].Name),
	})
}

func (b *Backend) listBooks(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	search := strings.ToLower(r.URL.Query().Get("search"))
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.libraryIndexLocked(id) < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Library does not exist"})
		return
	}
	out := []library.Book{}
	for _, bk := range b.books[id] {
		if search == "" ||
			strings.Contains(strings.ToLower(bk.Title), search) ||
			strings.Contains(strings.ToLower(bk.Byline()), search) {
			out = append(out, bk)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) removeBook(w http.ResponseWriter, r *http.Request) {
	id, bookID := pathInt(r, "id"), pathInt(r, "book")
	b.mu.Lock()
	defer b.mu.Unlock()
	books := b.books[id]
	for i, bk := range books {
		if bk.ID == bookID {
			b.books[id] = slices.Delete(books, i, i+1)
			writeJSON(w, http.StatusOK, map[string]string{
				"message": fmt.Sprintf("Book '%s' deleted from library.", bk.Title),
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Book not found in the library."})
}

func (b *Backend) updateBook(apply func(*library.Book, map[string]any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := pathInt(r, "book")
		in := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty body is valid for refresh_image

		b.mu.Lock()
		defer b.mu.Unlock()
		for libID, books := range b.books {
			for i := range books {
				if books[i].ID == bookID {
					apply(&b.books[libID][i], in)
					writeJSON(w, http.StatusOK, map[string]string{
						"message":   "Book updated successfully.",
						"thumbnail": b.books[libID][i].Thumbnail,
					})
					return
				}
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Book not found"})
	}
}

func (b *Backend) export(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "text/csv")
	fmt.Fprintln(w, "Library Name,Book ID,ISBN,Title")
	for _, l := range b.libraries {
		for _, bk := range b.books[l.ID] {
			fmt.Fprintf(w, "%s,%s,%s,%s\n", l.Name, bk.BookID, bk.ISBN, bk.Title)
		}
	}
}

func (b *Backend) libraryIndexLocked(id int) int {
	return slices.IndexFunc(b.libraries, func(l library.Library) bool { return l.ID == id })
}

func pathInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(mux.Vars(r)[key]) //nolint:errcheck // route regexp guarantees digits
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}
