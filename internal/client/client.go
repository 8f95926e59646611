// Package client provides a Go client for the ideaboard API.
package client

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

	"golang.org/x/net/websocket"
)

// Client is an ideaboard API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserID     string
	Token      string
	TokenExp   time.Time
}

// Credentials is what the server hands out on anonymous sign-in.
type Credentials struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New creates a new ideaboard client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Use sets previously saved credentials.
func (c *Client) Use(creds Credentials) {
	c.UserID = creds.UserID
	c.Token = creds.Token
	c.TokenExp = creds.ExpiresAt
}

// IsAuthenticated returns true if the client has a valid token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

// SignIn gets an anonymous identity. With a token already set it refreshes
// the token and keeps the identity.
func (c *Client) SignIn(ctx context.Context) (Credentials, error) {
	var creds Credentials
	if err := c.call(ctx, http.MethodPost, "/api/auth/anonymous", nil, &creds, "sign in"); err != nil {
		return Credentials{}, err
	}
	c.Use(creds)
	return creds, nil
}

// Attributes are the optional planning fields of an idea.
type Attributes struct {
	MemberCount        *int `json:"member_count,omitempty"`
	TimeConsumingHours *int `json:"time_consuming_hours,omitempty"`
	TimeToMakeDays     *int `json:"time_to_make_days,omitempty"`
	RequiresFunds      bool `json:"requires_funds,omitempty"`
}

type Votes struct {
	Upvotes    int      `json:"upvotes"`
	Downvotes  int      `json:"downvotes"`
	Upvoters   []string `json:"upvoters"`
	Downvoters []string `json:"downvoters"`
}

type Rating struct {
	Ratings map[string]int `json:"ratings"`
	Count   int            `json:"count"`
	Mean    float64        `json:"mean"`
}

// Item is an idea or problem as returned by the API.
type Item struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Content       string     `json:"content"`
	ContentHTML   string     `json:"content_html"`
	Answer        string     `json:"answer,omitempty"`
	SubmitterName string     `json:"submitter_name,omitempty"`
	OwnerID       string     `json:"owner_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Attributes    Attributes `json:"attributes"`
	Votes         Votes      `json:"votes"`
	Rating        Rating     `json:"rating"`
	Net           int        `json:"net"`
	Difficulty    string     `json:"difficulty,omitempty"`
	Mine          bool       `json:"mine"`
	MyVote        string     `json:"my_vote,omitempty"`
	MyRating      int        `json:"my_rating,omitempty"`
}

// Page is one sorted window of a board.
type Page struct {
	Board      string   `json:"board"`
	Items      []Item   `json:"items"`
	Sort       string   `json:"sort"`
	SortKeys   []string `json:"sort_keys"`
	Total      int      `json:"total"`
	TotalPages int      `json:"total_pages"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	HasPrev    bool     `json:"has_prev"`
	HasNext    bool     `json:"has_next"`
	Summary    string   `json:"summary"`
}

// ItemInput is the body of submit and edit calls.
type ItemInput struct {
	Content       string `json:"content"`
	Answer        string `json:"answer,omitempty"`
	SubmitterName string `json:"submitter_name,omitempty"`
	Attributes
}

// ListOptions selects the view. Zero values mean server defaults.
type ListOptions struct {
	Sort     string
	Page     int
	PageSize int
}

func (o ListOptions) query() string {
	q := url.Values{}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// List fetches one page of a board ("ideas" or "problems").
func (c *Client) List(ctx context.Context, board string, opts ListOptions) (*Page, error) {
	var page Page
	if err := c.call(ctx, http.MethodGet, "/api/"+board+"/items"+opts.query(), nil, &page, "list"); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get fetches a single item.
func (c *Client) Get(ctx context.Context, board, id string) (*Item, error) {
	var item Item
	if err := c.call(ctx, http.MethodGet, itemPath(board, id), nil, &item, "get item"); err != nil {
		return nil, err
	}
	return &item, nil
}

// Submit creates a new idea or problem.
func (c *Client) Submit(ctx context.Context, board string, in ItemInput) (*Item, error) {
	var item Item
	if err := c.call(ctx, http.MethodPost, "/api/"+board+"/items", in, &item, "submit"); err != nil {
		return nil, err
	}
	return &item, nil
}

// Edit replaces the content of an item you own.
func (c *Client) Edit(ctx context.Context, board, id string, in ItemInput) (*Item, error) {
	var item Item
	if err := c.call(ctx, http.MethodPatch, itemPath(board, id), in, &item, "edit"); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete deletes an item you own.
func (c *Client) Delete(ctx context.Context, board, id string) error {
	return c.call(ctx, http.MethodDelete, itemPath(board, id), nil, nil, "delete")
}

// Vote casts, switches or withdraws a vote on an idea.
func (c *Client) Vote(ctx context.Context, id, voteType string) (*Votes, error) {
	var votes Votes
	body := map[string]string{"type": voteType}
	if err := c.call(ctx, http.MethodPost, itemPath("ideas", id)+"/vote", body, &votes, "vote"); err != nil {
		return nil, err
	}
	return &votes, nil
}

// Rate sets your difficulty rating for a problem.
func (c *Client) Rate(ctx context.Context, id string, rating int) (*Rating, error) {
	var out Rating
	body := map[string]int{"rating": rating}
	if err := c.call(ctx, http.MethodPost, itemPath("problems", id)+"/rating", body, &out, "rate"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watch streams pages of a board until ctx is done or the connection
// drops. fn is called for every page the server sends.
func (c *Client) Watch(ctx context.Context, board string, opts ListOptions, fn func(*Page)) error {
	wsURL, err := url.Parse(c.BaseURL + "/api/" + board + "/watch" + opts.query())
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	if c.Token != "" {
		q := wsURL.Query()
		q.Set("token", c.Token)
		wsURL.RawQuery = q.Encode()
	}

	cfg, err := websocket.NewConfig(wsURL.String(), c.BaseURL)
	if err != nil {
		return err
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var frame struct {
			Type  string `json:"type"`
			Page  *Page  `json:"page"`
			Error string `json:"error"`
		}
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("watch: %w", err)
		}
		switch frame.Type {
		case "page":
			if frame.Page != nil {
				fn(frame.Page)
			}
		case "error":
			return &APIError{Op: "watch", Message: frame.Error}
		}
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func itemPath(board, id string) string {
	return "/api/" + board + "/items/" + url.PathEscape(id)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, op string) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// doRequest performs an HTTP request, authenticated when a token is set.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTPClient.Do(req)
}

// TestHelper provides utilities for creating authenticated clients in tests.
type TestHelper struct {
	BaseURL string
}

// NewTestHelper creates a new test helper for the given base URL.
func NewTestHelper(baseURL string) *TestHelper {
	return &TestHelper{BaseURL: baseURL}
}

// CreateAuthenticatedClient signs in a fresh anonymous identity.
func (h *TestHelper) CreateAuthenticatedClient(ctx context.Context) (*Client, error) {
	c := New(h.BaseURL)
	if _, err := c.SignIn(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// GetToken returns the bearer token of a fresh anonymous identity.
func (h *TestHelper) GetToken(ctx context.Context) (string, error) {
	c, err := h.CreateAuthenticatedClient(ctx)
	if err != nil {
		return "", err
	}
	return c.Token, nil
}
