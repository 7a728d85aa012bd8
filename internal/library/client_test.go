package library_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/library/librarytest"
)

var dune = library.Book{
	BookID:  "B1",
	Title:   "Dune",
	Authors: []string{"Frank Herbert"},
	Genres:  []string{"Fiction"},
	ISBN:    "9780441013593",
}

func newClient(t *testing.T) (*library.Client, *librarytest.Backend) {
	t.Helper()
	backend := librarytest.New(t)
	c, err := library.New(library.Options{BaseURL: backend.URL})
	require.NoError(t, err)
	return c, backend
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := library.New(library.Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := library.New(library.Options{})
	require.NoError(t, err)
	assert.Equal(t, library.DefaultBaseURL, c.BaseURL())
}

func TestSearch(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	backend.AddCatalogue(dune.ISBN, dune)

	books, err := c.Search(context.Background(), dune.ISBN)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "Frank Herbert", books[0].Byline())
	assert.Equal(t, []string{"GET /search?q=" + dune.ISBN}, backend.Requests())
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)

	books, err := c.Search(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)

	_, err := c.Search(context.Background(), "  ")
	assert.Error(t, err)
	assert.Empty(t, backend.Requests())
}

func TestSearch_ServerError(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	backend.FailNext(http.StatusInternalServerError)

	_, err := c.Search(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrServer)

	var apiErr *library.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
}

func TestLibraryLifecycle(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t)
	ctx := context.Background()

	msg, err := c.CreateLibrary(ctx, "Home", []string{"fiction"})
	require.NoError(t, err)
	assert.Equal(t, "Library 'Home' created!", msg)

	_, err = c.CreateLibrary(ctx, "home", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrBadRequest)
	assert.Contains(t, err.Error(), "Library already exists")

	libs, err := c.Libraries(ctx)
	require.NoError(t, err)
	require.Len(t, libs, 1)
	assert.Equal(t, "Home", libs[0].Name)
	assert.Equal(t, []string{"fiction"}, libs[0].Tags)

	byName, err := c.FindLibrary(ctx, "HOME")
	require.NoError(t, err)
	byID, err := c.FindLibrary(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, byName, byID)

	_, err = c.FindLibrary(ctx, "Office")
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = c.DeleteLibrary(ctx, byID.ID)
	require.NoError(t, err)

	_, err = c.DeleteLibrary(ctx, byID.ID)
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestCreateLibrary_RequiresName(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)

	_, err := c.CreateLibrary(context.Background(), " ", nil)
	assert.Error(t, err)
	assert.Empty(t, backend.Requests())
}

func TestAddBook(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	ctx := context.Background()
	id := backend.AddLibrary("Home")

	res, err := c.AddBook(ctx, id, dune)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "Book 'Dune' added to library 'Home'!", res.Message)

	res, err = c.AddBook(ctx, id, dune)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	stored := backend.Books(id)
	require.Len(t, stored, 1)
	assert.Equal(t, dune.ISBN, stored[0].ISBN)

	_, err = c.AddBook(ctx, 99, dune)
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestLibraryBooks_Filter(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	ctx := context.Background()
	id := backend.AddLibrary("Home")

	_, err := c.AddBook(ctx, id, dune)
	require.NoError(t, err)
	_, err = c.AddBook(ctx, id, library.Book{BookID: "B2", Title: "Emma", Authors: []string{"Jane Austen"}})
	require.NoError(t, err)

	read := true
	books, err := c.LibraryBooks(ctx, id, library.BookFilter{Search: "austen", Rating: 4, Read: &read, Genre: "Classic"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title)

	reqs := backend.Requests()
	assert.Equal(t, "GET /library/1/books?genre=Classic&rating=4&read=true&search=austen", reqs[len(reqs)-1])
}

func TestBookUpdates(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	ctx := context.Background()
	id := backend.AddLibrary("Home")
	_, err := c.AddBook(ctx, id, dune)
	require.NoError(t, err)
	bookID := backend.Books(id)[0].ID

	_, err = c.UpdateTags(ctx, bookID, []string{"scifi", "classic"})
	require.NoError(t, err)
	_, err = c.UpdateRating(ctx, bookID, 5)
	require.NoError(t, err)
	_, err = c.UpdateReadStatus(ctx, bookID, true)
	require.NoError(t, err)
	thumb, err := c.RefreshImage(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "https://covers.example/B1.jpg", thumb)

	stored := backend.Books(id)[0]
	assert.Equal(t, []string{"scifi", "classic"}, stored.Tags)
	assert.Equal(t, 5, stored.Rating)
	assert.True(t, stored.IsRead)

	_, err = c.UpdateRating(ctx, bookID, 6)
	assert.Error(t, err)

	_, err = c.UpdateTags(ctx, 404, nil)
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = c.RemoveBook(ctx, id, bookID)
	require.NoError(t, err)
	assert.Empty(t, backend.Books(id))
}

func TestExport(t *testing.T) {
	t.Parallel()
	c, backend := newClient(t)
	ctx := context.Background()
	id := backend.AddLibrary("Home")
	_, err := c.AddBook(ctx, id, dune)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := c.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "Library Name,Book ID,ISBN,Title\nHome,B1,9780441013593,Dune\n", buf.String())
}

func TestErrorBodyWithOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "Failed to fetch data"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := library.New(library.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "x")
	var apiErr *library.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Failed to fetch data", apiErr.Message)
}

func TestRequestLimiter(t *testing.T) {
	t.Parallel()

	unlimited := library.NewRequestLimiter(0)
	for range 100 {
		assert.True(t, unlimited.Allow())
	}

	limited := library.NewRequestLimiter(2)
	assert.True(t, limited.Allow())
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())

	fractional := library.NewRequestLimiter(0.5)
	assert.Equal(t, 1, fractional.Burst())
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	backend := librarytest.New(t)
	c, err := library.New(library.Options{BaseURL: backend.URL, RequestsPerSecond: 0.001})
	require.NoError(t, err)

	// First request consumes the burst, the second must wait and gets cancelled.
	_, err = c.Libraries(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Libraries(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, library.ErrServer))
}
