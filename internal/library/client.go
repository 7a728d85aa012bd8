// Package library is a client for the book-library REST backend.
package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is where the backend listens when run locally.
const DefaultBaseURL = "http://127.0.0.1:5000"

// DefaultTimeout bounds a single backend request.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles requests; <= 0 means unlimited.
	RequestsPerSecond float64
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the library backend. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", raw)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:    base,
		http:    hc,
		limiter: NewRequestLimiter(opts.RequestsPerSecond),
	}, nil
}

// NewRequestLimiter creates a token bucket allowing perSec requests per
// second with a burst of the same size (at least one).
func NewRequestLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(int(perSec), 1)
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.base.String() }

// Search queries the backend's catalogue search. Scanned codes are passed
// through unchanged as the query.
func (c *Client) Search(ctx context.Context, query string) ([]Book, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is empty")
	}
	var books []Book
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &books); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return books, nil
}

// Libraries lists every library.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var libs []Library
	if err := c.do(ctx, http.MethodGet, "/libraries", nil, nil, &libs); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	return libs, nil
}

// FindLibrary resolves ref as a numeric ID or, failing that, a
// case-insensitive library name.
func (c *Client) FindLibrary(ctx context.Context, ref string) (Library, error) {
	libs, err := c.Libraries(ctx)
	if err != nil {
		return Library{}, err
	}
	if id, convErr := strconv.Atoi(ref); convErr == nil {
		for _, l := range libs {
			if l.ID == id {
				return l, nil
			}
		}
	}
	for _, l := range libs {
		if strings.EqualFold(l.Name, ref) {
			return l, nil
		}
	}
	return Library{}, fmt.Errorf("library %q: %w", ref, ErrNotFound)
}

// CreateLibrary creates a library and returns the backend's message.
func (c *Client) CreateLibrary(ctx context.Context, name string, tags []string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("library name is required")
	}
	if tags == nil {
		tags = []string{}
	}
	body := map[string]any{"name": name, "tags": tags}
	var msg messageBody
	if err := c.do(ctx, http.MethodPost, "/library", nil, body, &msg); err != nil {
		return "", fmt.Errorf("create library %q: %w", name, err)
	}
	return msg.Message, nil
}

// DeleteLibrary removes a library and all its books.
func (c *Client) DeleteLibrary(ctx context.Context, id int) (string, error) {
	var msg messageBody
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/library/%d", id), nil, nil, &msg); err != nil {
		return "", fmt.Errorf("delete library %d: %w", id, err)
	}
	return msg.Message, nil
}

// LibraryBooks lists the books of a library, newest first.
func (c *Client) LibraryBooks(ctx context.Context, id int, f BookFilter) ([]Book, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Genre != "" {
		q.Set("genre", f.Genre)
	}
	if f.Rating > 0 {
		q.Set("rating", strconv.Itoa(f.Rating))
	}
	if f.Read != nil {
		q.Set("read", strconv.FormatBool(*f.Read))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	var books []Book
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/library/%d/books", id), q, nil, &books); err != nil {
		return nil, fmt.Errorf("list books of library %d: %w", id, err)
	}
	return books, nil
}

// AddBook adds a search result to a library. Adding a book the library
// already holds is not an error; the result is marked Duplicate.
func (c *Client) AddBook(ctx context.Context, libraryID int, b Book) (AddResult, error) {
	var msg messageBody
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/library/%d/add", libraryID), nil, b, &msg); err != nil {
		return AddResult{}, fmt.Errorf("add %q to library %d: %w", b.Title, libraryID, err)
	}
	return AddResult{
		Message:   msg.Message,
		Duplicate: strings.Contains(strings.ToLower(msg.Message), "already exists"),
	}, nil
}

// RemoveBook deletes a stored book from a library.
func (c *Client) RemoveBook(ctx context.Context, libraryID, bookID int) (string, error) {
	var msg messageBody
	path := fmt.Sprintf("/library/%d/book/%d", libraryID, bookID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, &msg); err != nil {
		return "", fmt.Errorf("remove book %d from library %d: %w", bookID, libraryID, err)
	}
	return msg.Message, nil
}

// UpdateTags replaces the tags of a stored book.
func (c *Client) UpdateTags(ctx context.Context, bookID int, tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	var msg messageBody
	body := map[string]any{"tags": tags}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/book/%d/tags", bookID), nil, body, &msg); err != nil {
		return "", fmt.Errorf("update tags of book %d: %w", bookID, err)
	}
	return msg.Message, nil
}

// MaxRating is the highest star rating a book can carry.
const MaxRating = 5

// UpdateRating sets the star rating (0 clears it).
func (c *Client) UpdateRating(ctx context.Context, bookID, rating int) (string, error) {
	if rating < 0 || rating > MaxRating {
		return "", fmt.Errorf("rating %d out of range 0..%d", rating, MaxRating)
	}
	var msg messageBody
	body := map[string]any{"rating": rating}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/book/%d/update_rating", bookID), nil, body, &msg); err != nil {
		return "", fmt.Errorf("update rating of book %d: %w", bookID, err)
	}
	return msg.Message, nil
}

// UpdateReadStatus marks a stored book as read or unread.
func (c *Client) UpdateReadStatus(ctx context.Context, bookID int, isRead bool) (string, error) {
	var msg messageBody
	body := map[string]any{"is_read": isRead}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/book/%d/update_status", bookID), nil, body, &msg); err != nil {
		return "", fmt.Errorf("update read status of book %d: %w", bookID, err)
	}
	return msg.Message, nil
}

// RefreshImage asks the backend to refetch the cover and returns the new
// thumbnail URL.
func (c *Client) RefreshImage(ctx context.Context, bookID int) (string, error) {
	var msg messageBody
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/book/%d/refresh_image", bookID), nil, nil, &msg); err != nil {
		return "", fmt.Errorf("refresh image of book %d: %w", bookID, err)
	}
	return msg.Thumbnail, nil
}

// Export streams the backend's CSV export of every library into w.
func (c *Client) Export(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/export", nil, nil)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("export: read body: %w", err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, q, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// The backend reports some failures as {"error": ...} with a 200.
	if len(data) > 0 && data[0] == '{' {
		var mb messageBody
		if json.Unmarshal(data, &mb) == nil && mb.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: mb.Error}
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send performs a throttled request and returns the response when the
// status is 2xx. Error statuses are turned into *APIError.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort error detail
	var mb messageBody
	if json.Unmarshal(data, &mb) == nil && mb.Error != "" {
		apiErr.Message = mb.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return nil, apiErr
}
